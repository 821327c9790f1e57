// Package strategy 策略引擎测试
package strategy

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
)

// testStrategyConfig 测试用策略配置（默认参数）
func testStrategyConfig() *config.StrategyConfig {
	return &config.StrategyConfig{
		ConfidenceThreshold: 0.60,
		RSIPeriod:           14,
		RSIOverbought:       70,
		RSIOversold:         30,
		EMAFast:             5,
		EMASlow:             15,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		MomentumLookback:    3,
		MinVolatilityPct:    0.05,
		MaxVolatilityPct:    3.0,
		EstFeePct:           1.5,
		WeightMomentum:      0.30,
		WeightRSI:           0.25,
		WeightMACD:          0.25,
		WeightEMACross:      0.20,
	}
}

// mildCandles 构造波动率适中的 K 线: 围绕 base 交替 ±0.1%
func mildCandles(n int, base float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		price := base
		if i%2 == 1 {
			price = base * 1.001
		}
		out[i] = model.Candle{Close: price}
	}
	return out
}

// TestAnalyze_InsufficientCandles 测试 K 线不足守卫
func TestAnalyze_InsufficientCandles(t *testing.T) {
	e := NewEngine(testStrategyConfig(), zap.NewNop())

	d := e.Analyze(mildCandles(10, 50000), 50000, nil)
	if d.ShouldTrade {
		t.Error("K 线不足时不应交易")
	}
	if d.Direction != model.DirectionHold {
		t.Errorf("Direction = %s, want hold", d.Direction)
	}
	if d.Reason == "" {
		t.Error("守卫拒绝应给出原因")
	}
}

// TestAnalyze_VolatilityGuards 测试波动率守卫
func TestAnalyze_VolatilityGuards(t *testing.T) {
	e := NewEngine(testStrategyConfig(), zap.NewNop())

	// 平盘 → 波动率 0 < 0.05%
	flat := make([]model.Candle, 40)
	for i := range flat {
		flat[i] = model.Candle{Close: 50000}
	}
	d := e.Analyze(flat, 50000, nil)
	if d.ShouldTrade {
		t.Error("波动率过低时不应交易")
	}

	// 剧烈波动 → 交替 ±5% > 3%
	wild := make([]model.Candle, 40)
	for i := range wild {
		price := 50000.0
		if i%2 == 1 {
			price = 52500
		}
		wild[i] = model.Candle{Close: price}
	}
	d = e.Analyze(wild, 50000, nil)
	if d.ShouldTrade {
		t.Error("波动率过高时不应交易")
	}
	if d.VolatilityPct <= 3.0 {
		t.Errorf("VolatilityPct = %f, want > 3.0", d.VolatilityPct)
	}
}

// TestAnalyze_DriftSignal 测试锚点漂移信号
// 开盘价上方 0.15% → UP 信号，强度 0.15/0.2 = 0.75
func TestAnalyze_DriftSignal(t *testing.T) {
	e := NewEngine(testStrategyConfig(), zap.NewNop())

	anchor := &model.WindowAnchor{OpenPrice: 50000}
	current := 50000 * 1.0015
	d := e.Analyze(mildCandles(40, 50000), current, anchor)

	if !d.HasAnchor {
		t.Fatal("HasAnchor 应为 true")
	}
	if diff := d.DriftPct - 0.15; math.Abs(diff) > 1e-9 {
		t.Errorf("DriftPct = %f, want 0.15", d.DriftPct)
	}

	var drift *model.Signal
	for i := range d.Signals {
		if d.Signals[i].Name == "price_vs_open" {
			drift = &d.Signals[i]
			break
		}
	}
	if drift == nil {
		t.Fatal("缺少 price_vs_open 信号")
	}
	if drift.Direction != model.DirectionUp {
		t.Errorf("漂移信号方向 = %s, want up", drift.Direction)
	}
	if math.Abs(drift.Strength-0.75) > 1e-9 {
		t.Errorf("漂移信号强度 = %f, want 0.75", drift.Strength)
	}
}

// TestAnalyze_DriftDeadband 测试漂移死区
// |漂移| ≤ 0.01% 时漂移信号为 HOLD
func TestAnalyze_DriftDeadband(t *testing.T) {
	e := NewEngine(testStrategyConfig(), zap.NewNop())

	anchor := &model.WindowAnchor{OpenPrice: 50000}
	d := e.Analyze(mildCandles(40, 50000), 50000, anchor)

	for _, sig := range d.Signals {
		if sig.Name == "price_vs_open" {
			if sig.Direction != model.DirectionHold {
				t.Errorf("零漂移信号方向 = %s, want hold", sig.Direction)
			}
			return
		}
	}
	t.Fatal("缺少 price_vs_open 信号")
}

// TestAnalyze_NoAnchorNoDriftSignal 测试无锚点时不出漂移信号
func TestAnalyze_NoAnchorNoDriftSignal(t *testing.T) {
	e := NewEngine(testStrategyConfig(), zap.NewNop())

	d := e.Analyze(mildCandles(40, 50000), 50000, nil)
	if d.HasAnchor {
		t.Error("HasAnchor 应为 false")
	}
	for _, sig := range d.Signals {
		if sig.Name == "price_vs_open" {
			t.Error("无锚点时不应有 price_vs_open 信号")
		}
	}
	if len(d.Signals) != 4 {
		t.Errorf("len(Signals) = %d, want 4", len(d.Signals))
	}
}

// TestAnalyze_TieBreaksDown 测试票数打平时判 DOWN
// 只保留动量与 EMA 交叉两路信号且各占一半权重，构造两侧强度
// 同时封顶为 1 的 K 线：UP 票 = DOWN 票 = 0.5，方向应判 DOWN。
func TestAnalyze_TieBreaksDown(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.WeightMomentum = 0.5
	cfg.WeightEMACross = 0.5
	cfg.WeightRSI = 0
	cfg.WeightMACD = 0
	e := NewEngine(cfg, zap.NewNop())

	// 长期每根 -0.5% 下行，末根 +2% 反弹：
	// EMA 快线仍深在慢线下方（DOWN，强度封顶 1），
	// 3 根动量 +0.98% ≥ 0.5%（UP，强度封顶 1）
	candles := make([]model.Candle, 40)
	price := 60000.0
	for i := 0; i < 39; i++ {
		candles[i] = model.Candle{Close: price}
		price *= 0.995
	}
	candles[39] = model.Candle{Close: candles[38].Close * 1.02}

	d := e.Analyze(candles, candles[39].Close, nil)

	var momentum, emaCross *model.Signal
	for i := range d.Signals {
		switch d.Signals[i].Name {
		case "momentum":
			momentum = &d.Signals[i]
		case "ema_cross":
			emaCross = &d.Signals[i]
		}
	}
	if momentum == nil || emaCross == nil {
		t.Fatal("缺少动量或 EMA 交叉信号")
	}
	if momentum.Direction != model.DirectionUp || momentum.Strength != 1.0 {
		t.Fatalf("动量信号应为 UP 强度 1，实际 %s %.3f", momentum.Direction, momentum.Strength)
	}
	if emaCross.Direction != model.DirectionDown || emaCross.Strength != 1.0 {
		t.Fatalf("EMA 交叉信号应为 DOWN 强度 1，实际 %s %.3f", emaCross.Direction, emaCross.Strength)
	}

	if d.Direction != model.DirectionDown {
		t.Errorf("打平应判 DOWN，实际 %s", d.Direction)
	}
	if d.Confidence != 0.5 {
		t.Errorf("打平置信度应为 0.5，实际 %f", d.Confidence)
	}
	if d.ShouldTrade {
		t.Error("打平边际为零，不应交易")
	}
}

// TestAnalyze_Invariants 测试决策不变式
// 属性: 置信度在 [0,1]；交易时置信度达到阈值且边际不小于成本；仓位比例不超过 10%
func TestAnalyze_Invariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	cfg := testStrategyConfig()

	properties.Property("决策不变式", prop.ForAll(
		func(closes []float64, current float64, openPrice float64) bool {
			e := NewEngine(cfg, zap.NewNop())
			var anchor *model.WindowAnchor
			if openPrice > 0 {
				anchor = &model.WindowAnchor{OpenPrice: openPrice}
			}
			d := e.Analyze(candlesFromCloses(closes), current, anchor)

			if d.Confidence < 0 || d.Confidence > 1 {
				return false
			}
			if d.PositionSizePct < 0 || d.PositionSizePct > 10 {
				return false
			}
			if d.ShouldTrade {
				if d.Direction == model.DirectionHold {
					return false
				}
				if d.Confidence < cfg.ConfidenceThreshold {
					return false
				}
				edge := math.Abs(d.Confidence-0.5) * 2 * 100
				if edge < cfg.EstFeePct {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, gen.Float64Range(40000, 60000)),
		gen.Float64Range(40000, 60000),
		gen.Float64Range(40000, 60000),
	))

	properties.TestingRun(t)
}

// TestAnalyze_PositionSizing 测试 Kelly 仓位计算
// size_pct = min(kelly * 100 * 0.25, 10)，kelly = 2c - 1
func TestAnalyze_PositionSizing(t *testing.T) {
	// 置信度 0.8 → kelly 0.6 → 0.6*100*0.25 = 15 → 截断 10
	kelly := math.Max(0, 0.8-(1-0.8))
	size := math.Min(kelly*100*0.25, 10.0)
	if size != 10.0 {
		t.Errorf("size = %f, want 10（上限截断）", size)
	}

	// 置信度 0.65 → kelly 0.3 → 7.5
	kelly = math.Max(0, 0.65-(1-0.65))
	size = math.Min(kelly*100*0.25, 10.0)
	if math.Abs(size-7.5) > 1e-9 {
		t.Errorf("size = %f, want 7.5", size)
	}
}

// TestSummary_Format 测试决策摘要格式
func TestSummary_Format(t *testing.T) {
	e := NewEngine(testStrategyConfig(), zap.NewNop())
	anchor := &model.WindowAnchor{OpenPrice: 50000}
	d := e.Analyze(mildCandles(40, 50000), 50075, anchor)

	s := d.Summary()
	if s == "" {
		t.Fatal("摘要不应为空")
	}
	// 摘要应包含方向和置信度标记
	if len(d.Signals) == 0 {
		t.Error("通过守卫后应有信号")
	}
}
