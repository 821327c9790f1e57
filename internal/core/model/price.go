// Package model 定义机器人使用的核心数据结构。
// 包含价格读数、共识价格、窗口锚点、K 线等核心类型。
package model

import (
	"time"
)

// 价格源标识常量
const (
	// SourceChainlink Chainlink 权威源（结算预言机，经流式推送获取）
	SourceChainlink = "chainlink"
	// SourceBinance Binance 拉取源
	SourceBinance = "binance"
	// SourceCoinGecko CoinGecko 拉取源
	SourceCoinGecko = "coingecko"
)

// PriceReading 单一价格源的一次读数
type PriceReading struct {
	// Source 价格源标识: chainlink, binance, coingecko
	Source string
	// Price BTC/USD 价格
	Price float64
	// Timestamp 读数的时间戳（来源侧时间，拉取源为本机时间）
	Timestamp time.Time
	// Bid 买一价（仅部分源提供，0 表示无）
	Bid float64
	// Ask 卖一价（仅部分源提供，0 表示无）
	Ask float64
}

// Age 计算读数距 now 的时长
func (p *PriceReading) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// IsStale 判断读数是否超过最大允许年龄
// 不变式：staleness = now - timestamp，仅低于 maxAge 的读数可用
func (p *PriceReading) IsStale(now time.Time, maxAge time.Duration) bool {
	return p.Age(now) > maxAge
}

// ConsensusPrice 多源融合后的共识价格
// 每次预言机调用产生一条；产生后不可变，追加到历史序列供回溯。
type ConsensusPrice struct {
	// Price 选定价格：权威源优先，否则取剩余读数的中位数（绝不混合两者）
	Price float64
	// Timestamp 共识产生时间
	Timestamp time.Time
	// Sources 参与本次共识的价格源列表
	Sources []string
	// SpreadPct 各源之间的发散度: (max - min) / price * 100
	SpreadPct float64
	// Confidence 置信度 [0,1]：源一致且数量充足时为满分，发散超阈值后按比例衰减
	Confidence float64
	// AuthoritativePrice 权威源（Chainlink）价格，0 表示本次未取得
	AuthoritativePrice float64
}

// HasAuthoritative 判断本次共识是否包含权威源价格
func (c *ConsensusPrice) HasAuthoritative() bool {
	return c.AuthoritativePrice > 0
}

// WindowAnchor 窗口开盘价锚点
// 每个 15 分钟时钟边界至多一条；创建后不可变。
// 市场结算规则：收盘价 >= 开盘价 → UP，否则 DOWN，锚点即结算参照。
type WindowAnchor struct {
	// BoundaryTime 窗口边界时间（如 12:00:00、12:15:00）
	BoundaryTime time.Time
	// OpenPrice 窗口开盘价（优先取权威源）
	OpenPrice float64
	// Source 开盘价来源: chainlink 或回退源
	Source string
	// CapturedAt 锚点记录时间
	CapturedAt time.Time
}

// DriftPct 当前价格相对开盘价的漂移（百分比）
func (a *WindowAnchor) DriftPct(current float64) float64 {
	if a.OpenPrice <= 0 {
		return 0
	}
	return (current - a.OpenPrice) / a.OpenPrice * 100
}

// Candle OHLCV K 线
// 序列约定：最旧在前；获取后不可变。
type Candle struct {
	// Timestamp K 线开始时间
	Timestamp time.Time
	// Open 开盘价
	Open float64
	// High 最高价
	High float64
	// Low 最低价
	Low float64
	// Close 收盘价
	Close float64
	// Volume 成交量
	Volume float64
	// Interval K 线周期标签，如 15m
	Interval string
}
