// Package model 定义机器人使用的核心数据结构。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction 市场方向
type Direction string

const (
	// DirectionUp 看涨方向（收盘价 >= 开盘价）
	DirectionUp Direction = "up"
	// DirectionDown 看跌方向（收盘价 < 开盘价）
	DirectionDown Direction = "down"
	// DirectionHold 观望，不交易
	DirectionHold Direction = "hold"
)

// Opposite 获取相反方向
// hold 的相反方向仍为 hold
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return DirectionHold
	}
}

// MarketStatus 市场状态
type MarketStatus string

const (
	// MarketActive 市场开放交易
	MarketActive MarketStatus = "active"
	// MarketClosed 市场已关闭
	MarketClosed MarketStatus = "closed"
	// MarketResolved 市场已结算
	MarketResolved MarketStatus = "resolved"
)

// BinaryMarket 二元（UP/DOWN）预测市场
// 由市场发现协作方填充，价格刷新时原地更新；结算时 Resolved 翻转为 true。
type BinaryMarket struct {
	// ConditionID 市场唯一标识
	ConditionID string
	// Question 市场标题
	Question string
	// Slug 市场 slug，编码 {timeframe, 窗口起始时间戳}
	Slug string
	// TokenIDUp UP 结果代币标识
	TokenIDUp string
	// TokenIDDown DOWN 结果代币标识
	TokenIDDown string
	// PriceUp UP 侧价格 (0,1)
	PriceUp float64
	// PriceDown DOWN 侧价格 (0,1)
	PriceDown float64
	// Volume 累计成交量（USD）
	Volume float64
	// Liquidity 订单簿流动性（USD）
	Liquidity float64
	// CreatedAt 市场创建时间
	CreatedAt time.Time
	// EndDate 市场到期时间
	EndDate time.Time
	// Status 市场状态
	Status MarketStatus
	// Resolved 是否已结算
	Resolved bool
	// Resolution 结算结果方向（仅 Resolved 后有效）
	Resolution Direction
}

// IsTradeable 判断市场是否可交易
// 可交易条件: 状态为 active 且未结算
func (m *BinaryMarket) IsTradeable() bool {
	return m.Status == MarketActive && !m.Resolved
}

// Combined 两侧价格之和
// 不变式：对所有市场 Combined ∈ (0, 2]；低于 1（扣除费用）意味着双边买入的无风险利润
func (m *BinaryMarket) Combined() float64 {
	return m.PriceUp + m.PriceDown
}

// Spread 两侧价格之和偏离 1.0 的绝对值
func (m *BinaryMarket) Spread() float64 {
	s := 1.0 - m.PriceUp - m.PriceDown
	if s < 0 {
		return -s
	}
	return s
}

// 交易结果常量
const (
	// OutcomeWin 交易获胜
	OutcomeWin = "win"
	// OutcomeLoss 交易失败
	OutcomeLoss = "loss"
)

// TradeRecord 方向性交易记录
// Outcome 在结算观测前为空字符串；恰好设置一次，之后不再变更。
type TradeRecord struct {
	// TradeID 交易唯一标识
	TradeID string
	// Timestamp 下单时间
	Timestamp time.Time
	// MarketConditionID 市场标识
	MarketConditionID string
	// Direction 交易方向: up 或 down
	Direction Direction
	// Confidence 下单时的策略置信度
	Confidence float64
	// EntryPrice 成交价格
	EntryPrice float64
	// SizeUSD 下注金额（USD）
	SizeUSD decimal.Decimal
	// OraclePriceAtEntry 下单时的预言机共识价
	OraclePriceAtEntry float64
	// Outcome 结算结果: 空、win 或 loss
	Outcome string
	// PnL 结算盈亏（USD；未结算时为 0）
	PnL decimal.Decimal
	// OrderID 交易所订单标识
	OrderID string
}

// IsOpen 判断交易是否仍未结算
func (t *TradeRecord) IsOpen() bool {
	return t.Outcome == ""
}
