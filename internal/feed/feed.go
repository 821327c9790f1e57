// Package feed 实现各价格源客户端。
// Chainlink 为结算权威源（15 分钟市场按 Chainlink BTC/USD 结算），
// Binance 与 CoinGecko 提供冗余读数和发散度校验，K 线历史取自 Binance。
package feed

import (
	"context"

	"btc-updown-bot/internal/core/model"
)

// Feed 价格源接口
// 每个源独立实现一次性读数获取，由预言机并发调度
type Feed interface {
	// Name 源名称，用于共识来源列表和日志
	Name() string
	// Fetch 获取一次价格读数
	// 实现需尊重 ctx 取消，失败时返回错误而非过期数据
	Fetch(ctx context.Context) (*model.PriceReading, error)
}

// CandleSource K 线历史源接口
type CandleSource interface {
	// Candles 获取历史 K 线
	// 参数 interval: K 线周期，如 15m
	// 参数 limit: 最大根数
	Candles(ctx context.Context, interval string, limit int) ([]model.Candle, error)
}
