// CoinGecko 拉取源：simple/price 接口，作为第三路冗余读数。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"btc-updown-bot/internal/core/model"
)

// CoinGeckoFeed CoinGecko 拉取价格源
type CoinGeckoFeed struct {
	// client REST 客户端
	client *resty.Client
	// logger 日志记录器
	logger *zap.Logger
}

// NewCoinGeckoFeed 创建 CoinGecko 价格源
// 参数 baseURL: REST API 基地址
// 参数 timeoutSecs: 请求超时（秒）
// 参数 logger: 日志记录器
func NewCoinGeckoFeed(baseURL string, timeoutSecs int, logger *zap.Logger) *CoinGeckoFeed {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Duration(timeoutSecs) * time.Second).
		SetHeader("User-Agent", "btc-updown-bot/1.0")

	return &CoinGeckoFeed{
		client: client,
		logger: logger.Named("coingecko"),
	}
}

// Name 源名称
func (f *CoinGeckoFeed) Name() string {
	return model.SourceCoinGecko
}

// simplePriceResponse simple/price 接口响应
type simplePriceResponse struct {
	// Bitcoin bitcoin 条目
	Bitcoin struct {
		// USD 美元价格
		USD float64 `json:"usd"`
	} `json:"bitcoin"`
}

// Fetch 获取一次 CoinGecko 读数
func (f *CoinGeckoFeed) Fetch(ctx context.Context) (*model.PriceReading, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           "bitcoin",
			"vs_currencies": "usd",
		}).
		Get("/simple/price")
	if err != nil {
		return nil, fmt.Errorf("请求 CoinGecko simple/price 失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("CoinGecko 返回状态 %d", resp.StatusCode())
	}

	var body simplePriceResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("解析 CoinGecko 响应失败: %w", err)
	}
	if body.Bitcoin.USD <= 0 {
		return nil, fmt.Errorf("CoinGecko 价格非法: %f", body.Bitcoin.USD)
	}

	return &model.PriceReading{
		Source:    model.SourceCoinGecko,
		Price:     body.Bitcoin.USD,
		Timestamp: time.Now(),
	}, nil
}
