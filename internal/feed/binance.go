// Binance 拉取源：bookTicker 中间价作为读数，klines 作为 K 线历史。
// 价格字段为字符串，经 fastparse 转换。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/util/fastparse"
)

// binanceSymbol 现货交易对
const binanceSymbol = "BTCUSDT"

// BinanceFeed Binance 拉取价格源
// 同时实现 Feed 和 CandleSource
type BinanceFeed struct {
	// client REST 客户端
	client *resty.Client
	// logger 日志记录器
	logger *zap.Logger
}

// NewBinanceFeed 创建 Binance 价格源
// 参数 baseURL: REST API 基地址
// 参数 timeoutSecs: 请求超时（秒）
// 参数 logger: 日志记录器
func NewBinanceFeed(baseURL string, timeoutSecs int, logger *zap.Logger) *BinanceFeed {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Duration(timeoutSecs) * time.Second).
		SetHeader("User-Agent", "btc-updown-bot/1.0")

	return &BinanceFeed{
		client: client,
		logger: logger.Named("binance"),
	}
}

// Name 源名称
func (f *BinanceFeed) Name() string {
	return model.SourceBinance
}

// bookTickerResponse bookTicker 接口响应
type bookTickerResponse struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// BidPrice 最优买价（字符串）
	BidPrice string `json:"bidPrice"`
	// AskPrice 最优卖价（字符串）
	AskPrice string `json:"askPrice"`
}

// Fetch 获取一次 Binance 读数
// 读数取最优买卖价的中间价
func (f *BinanceFeed) Fetch(ctx context.Context) (*model.PriceReading, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", binanceSymbol).
		Get("/ticker/bookTicker")
	if err != nil {
		return nil, fmt.Errorf("请求 Binance bookTicker 失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("Binance bookTicker 返回状态 %d", resp.StatusCode())
	}

	var ticker bookTickerResponse
	if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
		return nil, fmt.Errorf("解析 Binance bookTicker 失败: %w", err)
	}

	bid, err := fastparse.ParseFloat(ticker.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("解析买价失败: %w", err)
	}
	ask, err := fastparse.ParseFloat(ticker.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("解析卖价失败: %w", err)
	}
	if bid <= 0 || ask <= 0 {
		return nil, fmt.Errorf("Binance 买卖价非法: bid=%f ask=%f", bid, ask)
	}

	return &model.PriceReading{
		Source:    model.SourceBinance,
		Price:     (bid + ask) / 2,
		Timestamp: time.Now(),
		Bid:       bid,
		Ask:       ask,
	}, nil
}

// Candles 获取历史 K 线
// klines 每项为混合类型数组: [openTime, open, high, low, close, volume, ...]
func (f *BinanceFeed) Candles(ctx context.Context, interval string, limit int) ([]model.Candle, error) {
	if limit > 1000 {
		limit = 1000
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   binanceSymbol,
			"interval": interval,
			"limit":    fastparse.FormatInt(int64(limit)),
		}).
		Get("/klines")
	if err != nil {
		return nil, fmt.Errorf("请求 Binance klines 失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("Binance klines 返回状态 %d", resp.StatusCode())
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("解析 Binance klines 失败: %w", err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		var openMs int64
		if err := json.Unmarshal(k[0], &openMs); err != nil {
			continue
		}
		fields := make([]float64, 5)
		ok := true
		for i := 0; i < 5; i++ {
			var s string
			if err := json.Unmarshal(k[i+1], &s); err != nil {
				ok = false
				break
			}
			v, err := fastparse.ParseFloat(s)
			if err != nil {
				ok = false
				break
			}
			fields[i] = v
		}
		if !ok {
			continue
		}

		candles = append(candles, model.Candle{
			Timestamp: time.UnixMilli(openMs),
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
			Interval:  interval,
		})
	}

	f.logger.Debug("获取 Binance K 线",
		zap.String("interval", interval),
		zap.Int("count", len(candles)))

	return candles, nil
}
