// Package model 定义机器人使用的核心数据结构。
package model

import (
	"fmt"
	"strings"
)

// Signal 单一策略信号
type Signal struct {
	// Name 信号名称: price_vs_open, momentum, rsi, macd, ema_cross
	Name string
	// Direction 信号方向: up, down 或 hold
	Direction Direction
	// Strength 信号强度 [0,1]
	Strength float64
	// RawValue 原始指标值（漂移百分比、RSI 值、MACD 柱等）
	RawValue float64
	// Description 人类可读描述
	Description string
}

// StrategyDecision 一次策略分析的不可变结果
type StrategyDecision struct {
	// Direction 综合方向: up, down 或 hold
	Direction Direction
	// Confidence 置信度 [0,1]
	Confidence float64
	// Signals 参与决策的信号列表
	Signals []Signal
	// CurrentPrice 分析时的当前价格
	CurrentPrice float64
	// HasAnchor 本次分析是否有窗口锚点
	HasAnchor bool
	// OpenPrice 窗口开盘价（仅 HasAnchor 时有效）
	OpenPrice float64
	// DriftPct 当前价相对开盘价的漂移百分比（仅 HasAnchor 时有效）
	DriftPct float64
	// VolatilityPct 尾部已实现波动率（百分比）
	VolatilityPct float64
	// ShouldTrade 是否建议交易
	ShouldTrade bool
	// Reason 决策理由（含被守卫拦截时的原因）
	Reason string
	// PositionSizePct 建议仓位（资金百分比；风控模块的尺寸计算才是执行权威）
	PositionSizePct float64
}

// Summary 生成单行决策摘要，用于日志
func (d *StrategyDecision) Summary() string {
	parts := make([]string, 0, len(d.Signals))
	for _, s := range d.Signals {
		parts = append(parts, fmt.Sprintf("%s=%s(%.2f)", s.Name, s.Direction, s.Strength))
	}
	drift := ""
	if d.HasAnchor {
		drift = fmt.Sprintf(" drift=%+.3f%%", d.DriftPct)
	}
	return fmt.Sprintf("[%s] conf=%.2f%s trade=%v | %s",
		strings.ToUpper(string(d.Direction)), d.Confidence, drift, d.ShouldTrade, strings.Join(parts, " | "))
}
