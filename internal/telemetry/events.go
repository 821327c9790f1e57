// Package telemetry 实现机器人动作的结构化遥测。
// 三条独立事件流（oracle / strategy / trades）以 JSONL 追加写入，
// 绩效快照以整文件覆盖写入，供外部看板消费。
package telemetry

import (
	"time"

	"github.com/shopspring/decimal"

	"btc-updown-bot/internal/core/model"
)

// 事件类型
const (
	// EventOracle 预言机读数事件
	EventOracle = "oracle"
	// EventStrategy 策略决策事件
	EventStrategy = "strategy"
	// EventTrade 下单事件
	EventTrade = "trade"
	// EventResolution 结算事件
	EventResolution = "resolution"
	// EventRisk 风控拦截事件
	EventRisk = "risk"
	// EventArb 套利执行事件
	EventArb = "arb"
	// EventHedge 对冲事件
	EventHedge = "hedge"
)

// Envelope 事件公共头
// 所有事件结构体嵌入，写入时统一盖戳。
type Envelope struct {
	// Event 事件类型
	Event string `json:"_event"`
	// TS 事件时间戳（unix 毫秒）
	TS int64 `json:"_ts_ms"`
	// ISO 事件时间（UTC RFC3339）
	ISO string `json:"_iso"`
}

// stamp 填充事件头
func stamp(event string, now time.Time) Envelope {
	return Envelope{
		Event: event,
		TS:    now.UnixMilli(),
		ISO:   now.UTC().Format(time.RFC3339),
	}
}

// OracleEvent 一次共识读数
type OracleEvent struct {
	Envelope
	// Price 共识价格
	Price float64 `json:"price"`
	// Sources 参与共识的源数量
	Sources int `json:"sources"`
	// SourceNames 参与共识的源名称
	SourceNames []string `json:"source_names"`
	// SpreadPct 源间发散度（百分比）
	SpreadPct float64 `json:"spread_pct"`
	// Confidence 读数置信度
	Confidence float64 `json:"confidence"`
	// Authoritative 是否以权威源定价
	Authoritative bool `json:"authoritative"`
}

// StrategyEvent 一次策略决策（含观望）
type StrategyEvent struct {
	Envelope
	// Direction 决策方向
	Direction model.Direction `json:"direction"`
	// Confidence 决策置信度
	Confidence float64 `json:"confidence"`
	// SizePct 建议仓位（占资金百分比）
	SizePct float64 `json:"size_pct"`
	// Reason 决策依据
	Reason string `json:"reason"`
	// OpenPrice 窗口开盘锚点价（无锚点为 0）
	OpenPrice float64 `json:"open_price,omitempty"`
	// DriftPct 现价相对锚点漂移（百分比）
	DriftPct float64 `json:"drift_pct,omitempty"`
	// Signals 各信号明细
	Signals []model.Signal `json:"signals,omitempty"`
}

// TradeEvent 一次下单
type TradeEvent struct {
	Envelope
	// TradeID 交易标识
	TradeID string `json:"trade_id"`
	// MarketConditionID 市场标识
	MarketConditionID string `json:"market_condition_id"`
	// Direction 交易方向
	Direction model.Direction `json:"direction"`
	// Confidence 下单置信度
	Confidence float64 `json:"confidence"`
	// EntryPrice 成交价格
	EntryPrice float64 `json:"entry_price"`
	// SizeUSD 下注金额（USD）
	SizeUSD decimal.Decimal `json:"size_usd"`
	// OraclePrice 下单时共识价
	OraclePrice float64 `json:"oracle_price"`
	// OrderID 场所订单标识
	OrderID string `json:"order_id"`
	// DryRun 是否模拟成交
	DryRun bool `json:"dry_run"`
}

// ResolutionEvent 一次结算
type ResolutionEvent struct {
	Envelope
	// TradeID 交易标识
	TradeID string `json:"trade_id"`
	// Direction 交易方向
	Direction model.Direction `json:"direction"`
	// Outcome 结算结果: win 或 loss
	Outcome string `json:"outcome"`
	// EntryPrice 成交价格
	EntryPrice float64 `json:"entry_price"`
	// PnL 结算盈亏（USD）
	PnL decimal.Decimal `json:"pnl"`
}

// RiskEvent 一次风控拦截
type RiskEvent struct {
	Envelope
	// Reason 拦截原因
	Reason string `json:"reason"`
	// Capital 当前资金（USD）
	Capital decimal.Decimal `json:"capital"`
	// DailyTrades 当日交易笔数
	DailyTrades int `json:"daily_trades"`
}

// ArbEvent 一次套利捕获尝试
type ArbEvent struct {
	Envelope
	// ConditionID 市场标识
	ConditionID string `json:"condition_id"`
	// Timeframe 市场周期
	Timeframe string `json:"timeframe"`
	// Combined 两侧价格之和
	Combined float64 `json:"combined"`
	// EdgePct 捕获边际（百分比）
	EdgePct float64 `json:"edge_pct"`
	// SizePerSide 每侧金额（USD）
	SizePerSide decimal.Decimal `json:"size_per_side"`
	// Profit 预期利润（USD）
	Profit decimal.Decimal `json:"profit"`
	// Status 执行状态
	Status model.ArbStatus `json:"status"`
}

// HedgeEvent 一次对冲
type HedgeEvent struct {
	Envelope
	// TradeID 原始交易标识
	TradeID string `json:"trade_id"`
	// OriginalDirection 原始方向
	OriginalDirection model.Direction `json:"original_direction"`
	// HedgeDirection 对冲方向
	HedgeDirection model.Direction `json:"hedge_direction"`
	// HedgePrice 对冲价格
	HedgePrice float64 `json:"hedge_price"`
	// Locked 锁定结果（USD）
	Locked decimal.Decimal `json:"locked"`
}

// PerformanceSnapshot 绩效快照
// 整文件覆盖写入 performance.json
type PerformanceSnapshot struct {
	// SavedAt 保存时间（UTC RFC3339）
	SavedAt string `json:"saved_at"`
	// Capital 当前资金（USD）
	Capital decimal.Decimal `json:"capital"`
	// TotalPnL 方向性交易累计盈亏（USD）
	TotalPnL decimal.Decimal `json:"total_pnl"`
	// TotalTrades 总交易笔数
	TotalTrades int `json:"total_trades"`
	// Completed 已结算笔数
	Completed int `json:"completed"`
	// Wins 获胜笔数
	Wins int `json:"wins"`
	// Losses 失败笔数
	Losses int `json:"losses"`
	// WinRate 胜率（百分比）
	WinRate float64 `json:"win_rate"`
	// DailyTrades 当日交易笔数
	DailyTrades int `json:"daily_trades"`
	// ArbDailyTrades 当日套利次数
	ArbDailyTrades int `json:"arb_daily_trades"`
	// ArbDailyProfit 当日套利利润（USD）
	ArbDailyProfit decimal.Decimal `json:"arb_daily_profit"`
}
