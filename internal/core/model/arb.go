// Package model 定义机器人使用的核心数据结构。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbStatus 套利执行状态
type ArbStatus string

const (
	// ArbPending 已创建，尚未提交
	ArbPending ArbStatus = "pending"
	// ArbFilled 双侧订单均确认
	ArbFilled ArbStatus = "filled"
	// ArbPartial 恰好一侧确认
	ArbPartial ArbStatus = "partial"
	// ArbFailed 双侧均未确认
	ArbFailed ArbStatus = "failed"
	// ArbDryRun 未配置执行协作方，仅记录不下单
	ArbDryRun ArbStatus = "dry_run"
)

// ArbMarket 套利扫描器视角下的二元市场
// 由发现流程创建，刷新流程原地更新价格与流动性。
type ArbMarket struct {
	// ConditionID 市场唯一标识
	ConditionID string
	// Question 市场标题
	Question string
	// Slug 市场 slug
	Slug string
	// TokenIDYes YES 侧代币标识
	TokenIDYes string
	// TokenIDNo NO 侧代币标识
	TokenIDNo string
	// PriceYes YES 侧价格
	PriceYes float64
	// PriceNo NO 侧价格
	PriceNo float64
	// Liquidity 流动性（USD）
	Liquidity float64
	// Volume 成交量（USD）
	Volume float64
	// EndDate 市场到期时间
	EndDate time.Time
	// Timeframe 市场周期: 5m, 15m, 30m, 1h
	Timeframe string
	// LastRefreshed 最近一次价格刷新时间
	LastRefreshed time.Time
}

// Combined 两侧价格之和
func (m *ArbMarket) Combined() float64 {
	return m.PriceYes + m.PriceNo
}

// EdgePct 隐含套利边际（百分比）
// Combined >= 1 时为 0
func (m *ArbMarket) EdgePct() float64 {
	c := m.Combined()
	if c >= 1.0 {
		return 0
	}
	return (1.0 - c) * 100
}

// IsArb 判断是否存在正向套利空间（未考虑阈值与流动性过滤）
func (m *ArbMarket) IsArb() bool {
	c := m.Combined()
	return c > 0 && c < 1.0
}

// TimeRemaining 距到期剩余时长，已到期返回 0
func (m *ArbMarket) TimeRemaining(now time.Time) time.Duration {
	if m.EndDate.IsZero() || !m.EndDate.After(now) {
		return 0
	}
	return m.EndDate.Sub(now)
}

// ArbExecution 一次双侧套利捕获尝试的记录
type ArbExecution struct {
	// Timestamp 尝试时间
	Timestamp time.Time
	// ConditionID 市场标识
	ConditionID string
	// Question 市场标题
	Question string
	// Timeframe 市场周期
	Timeframe string
	// PriceYes 尝试时 YES 侧价格
	PriceYes float64
	// PriceNo 尝试时 NO 侧价格
	PriceNo float64
	// Combined 两侧价格之和
	Combined float64
	// EdgePct 隐含边际（百分比）
	EdgePct float64
	// SizePerSide 每侧买入金额（USD）
	SizePerSide decimal.Decimal
	// GuaranteedProfit 预期无风险利润（USD）
	GuaranteedProfit decimal.Decimal
	// OrderIDYes YES 侧订单标识（未确认为空）
	OrderIDYes string
	// OrderIDNo NO 侧订单标识（未确认为空）
	OrderIDNo string
	// Status 组合状态: pending, filled, partial, failed, dry_run
	Status ArbStatus
}

// NearMiss 接近阈值但未达标的观测记录（仅遥测，不执行）
type NearMiss struct {
	// Time 观测时间
	Time time.Time
	// Question 市场标题（截断）
	Question string
	// Timeframe 市场周期
	Timeframe string
	// Combined 两侧价格之和
	Combined float64
	// GapPct 距 1.0 的缺口（百分比）
	GapPct float64
}

// HedgeAction 对冲动作
// 买入开放仓位的相反侧，把敞口转为确定结果。
type HedgeAction struct {
	// OriginalTradeID 原始交易标识
	OriginalTradeID string
	// OriginalDirection 原始交易方向
	OriginalDirection Direction
	// HedgeDirection 对冲方向（原方向的相反侧）
	HedgeDirection Direction
	// OriginalEntry 原始成交价格
	OriginalEntry float64
	// HedgePrice 相反侧当前价格
	HedgePrice float64
	// LockedProfit 锁定结果（USD；可能为正利润或有界亏损）
	LockedProfit decimal.Decimal
	// SizeUSD 对冲金额（与原仓位等额）
	SizeUSD decimal.Decimal
}
