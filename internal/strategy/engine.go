package strategy

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
)

// minCandles 出信号所需的最少 K 线根数
const minCandles = 30

// volatilityWindow 波动率计算使用的最近 K 线根数
const volatilityWindow = 20

// anchorWeight 锚点信号（价格对开盘漂移）的权重，其余信号分摊剩余部分
const anchorWeight = 0.35

// Engine 多信号策略引擎
type Engine struct {
	// cfg 策略参数
	cfg *config.StrategyConfig
	// logger 日志记录器
	logger *zap.Logger

	// mu 保护决策历史
	mu sync.Mutex
	// history 最近的决策历史
	history []model.StrategyDecision
}

// NewEngine 创建策略引擎
// 参数 cfg: 策略参数
// 参数 logger: 日志记录器
func NewEngine(cfg *config.StrategyConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("strategy"),
	}
}

// Analyze 综合所有信号产出加权决策
// 参数 candles: 历史 15 分钟 K 线（旧在前）
// 参数 currentPrice: 最新 BTC 价格（优先取权威源）
// 参数 anchor: 本窗口开盘价锚点，存在时漂移信号成为最高权重信号
func (e *Engine) Analyze(candles []model.Candle, currentPrice float64, anchor *model.WindowAnchor) model.StrategyDecision {
	hasAnchor := anchor != nil && anchor.OpenPrice > 0

	base := model.StrategyDecision{
		Direction:    model.DirectionHold,
		CurrentPrice: currentPrice,
		HasAnchor:    hasAnchor,
	}
	if hasAnchor {
		base.OpenPrice = anchor.OpenPrice
	}

	// 守卫 1: K 线不足
	if len(candles) < minCandles {
		base.Reason = fmt.Sprintf("K 线不足（%d < %d）", len(candles), minCandles)
		e.record(base)
		return base
	}

	// 守卫 2: 波动率出界
	vol := volatility(candles[len(candles)-volatilityWindow:])
	base.VolatilityPct = vol
	if vol < e.cfg.MinVolatilityPct {
		base.Reason = fmt.Sprintf("波动率过低（%.3f%%）", vol)
		e.record(base)
		return base
	}
	if vol > e.cfg.MaxVolatilityPct {
		base.Reason = fmt.Sprintf("波动率过高（%.3f%%）", vol)
		e.record(base)
		return base
	}

	// 构建信号与权重
	signals := make([]model.Signal, 0, 5)
	weights := make(map[string]float64, 5)
	var driftPct float64

	if hasAnchor {
		pvo := e.signalDrift(currentPrice, anchor.OpenPrice)
		signals = append(signals, pvo)
		driftPct = pvo.RawValue
		base.DriftPct = driftPct

		// 锚点信号占 35%，其余信号分摊剩余 65%
		weights[pvo.Name] = anchorWeight
		weights["momentum"] = e.cfg.WeightMomentum * (1 - anchorWeight)
		weights["rsi"] = e.cfg.WeightRSI * (1 - anchorWeight)
		weights["macd"] = e.cfg.WeightMACD * (1 - anchorWeight)
		weights["ema_cross"] = e.cfg.WeightEMACross * (1 - anchorWeight)
	} else {
		weights["momentum"] = e.cfg.WeightMomentum
		weights["rsi"] = e.cfg.WeightRSI
		weights["macd"] = e.cfg.WeightMACD
		weights["ema_cross"] = e.cfg.WeightEMACross
	}

	signals = append(signals,
		e.signalMomentum(candles),
		e.signalRSI(candles),
		e.signalMACD(candles),
		e.signalEMACross(candles),
	)

	// 加权计票
	var upScore, downScore float64
	for _, sig := range signals {
		w := weights[sig.Name]
		switch sig.Direction {
		case model.DirectionUp:
			upScore += sig.Strength * w
		case model.DirectionDown:
			downScore += sig.Strength * w
		}
	}

	total := upScore + downScore
	var direction model.Direction
	var confidence float64
	switch {
	case total == 0:
		direction = model.DirectionHold
	case upScore > downScore:
		direction = model.DirectionUp
		confidence = upScore / total
	default:
		// 打平计为 DOWN
		direction = model.DirectionDown
		confidence = downScore / total
	}

	// 总票数过小说明信号微弱，按比例压低置信度
	confidence *= math.Min(1.0, total/0.5)

	decision := base
	decision.Direction = direction
	decision.Confidence = confidence
	decision.Signals = signals

	// 守卫 3: 方向性边际低于成本
	rawEdge := math.Abs(confidence-0.5) * 2 * 100
	if rawEdge < e.cfg.EstFeePct && direction != model.DirectionHold {
		e.logger.Info("边际低于成本，跳过",
			zap.Float64("edge_pct", rawEdge),
			zap.Float64("fee_pct", e.cfg.EstFeePct))
		decision.Reason = fmt.Sprintf("边际（%.1f%%）低于成本阈值（%.1f%%）", rawEdge, e.cfg.EstFeePct)
		e.record(decision)
		return decision
	}

	decision.ShouldTrade = direction != model.DirectionHold && confidence >= e.cfg.ConfidenceThreshold

	if decision.ShouldTrade {
		kelly := math.Max(0, confidence-(1-confidence))
		decision.PositionSizePct = math.Min(kelly*100*0.25, 10.0)
	}

	reason := fmt.Sprintf("UP=%.3f DOWN=%.3f → %s @ %.2f", upScore, downScore, direction, confidence)
	if hasAnchor {
		reason += fmt.Sprintf("（漂移 %+.4f%%）", driftPct)
	}
	decision.Reason = reason

	e.record(decision)
	e.logger.Info("策略决策", zap.String("summary", decision.Summary()))
	return decision
}

// signalDrift 关键信号: 当前价格相对窗口开盘价的漂移
// 市场按开盘价结算，已有 +0.15% 漂移时 UP 概率显著提升
func (e *Engine) signalDrift(currentPrice, openPrice float64) model.Signal {
	driftPct := (currentPrice - openPrice) / openPrice * 100

	var direction model.Direction
	switch {
	case driftPct > 0.01:
		direction = model.DirectionUp
	case driftPct < -0.01:
		direction = model.DirectionDown
	default:
		direction = model.DirectionHold
	}

	// 0.05% 漂移为中等，0.2% 以上为强
	strength := math.Min(1.0, math.Abs(driftPct)/0.2)

	return model.Signal{
		Name:        "price_vs_open",
		Direction:   direction,
		Strength:    strength,
		RawValue:    driftPct,
		Description: fmt.Sprintf("相对窗口开盘: %+.4f%%", driftPct),
	}
}

// signalMomentum 短期动量信号
func (e *Engine) signalMomentum(candles []model.Candle) model.Signal {
	lookback := e.cfg.MomentumLookback
	if lookback > len(candles)-1 {
		lookback = len(candles) - 1
	}
	if lookback < 1 {
		return model.Signal{Name: "momentum", Direction: model.DirectionHold, Description: "数据不足"}
	}

	current := candles[len(candles)-1].Close
	past := candles[len(candles)-1-lookback].Close
	pct := (current - past) / past * 100
	strength := math.Min(1.0, math.Abs(pct)/0.5)

	var direction model.Direction
	switch {
	case pct > 0.02:
		direction = model.DirectionUp
	case pct < -0.02:
		direction = model.DirectionDown
	default:
		direction = model.DirectionHold
		strength = 0
	}

	return model.Signal{
		Name:        "momentum",
		Direction:   direction,
		Strength:    strength,
		RawValue:    pct,
		Description: fmt.Sprintf("%d 根 K 线动量: %+.3f%%", lookback, pct),
	}
}

// signalRSI 超买超卖信号
// 超买看 DOWN、超卖看 UP；中性区按偏离 50 的一侧给弱信号
func (e *Engine) signalRSI(candles []model.Candle) model.Signal {
	v := rsi(closesOf(candles), e.cfg.RSIPeriod)

	var direction model.Direction
	var strength float64
	const center = 50.0
	switch {
	case v > e.cfg.RSIOverbought:
		direction = model.DirectionDown
		strength = math.Min(1.0, (v-e.cfg.RSIOverbought)/15)
	case v < e.cfg.RSIOversold:
		direction = model.DirectionUp
		strength = math.Min(1.0, (e.cfg.RSIOversold-v)/15)
	case v > center:
		direction = model.DirectionUp
		strength = (v - center) / (e.cfg.RSIOverbought - center) * 0.3
	default:
		direction = model.DirectionDown
		strength = (center - v) / (center - e.cfg.RSIOversold) * 0.3
	}

	return model.Signal{
		Name:        "rsi",
		Direction:   direction,
		Strength:    strength,
		RawValue:    v,
		Description: fmt.Sprintf("RSI=%.1f", v),
	}
}

// signalMACD 趋势强度信号
// 柱状图符号定方向，符号翻转时强度放大 1.5 倍
func (e *Engine) signalMACD(candles []model.Candle) model.Signal {
	closes := closesOf(candles)
	_, _, histogram := macd(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)

	var direction model.Direction
	switch {
	case histogram > 0:
		direction = model.DirectionUp
	case histogram < 0:
		direction = model.DirectionDown
	default:
		direction = model.DirectionHold
	}

	normalized := math.Abs(histogram) / closes[len(closes)-1] * 10000
	strength := math.Min(1.0, normalized/10)

	if len(closes) > 2 {
		_, _, prevHist := macd(closes[:len(closes)-1], e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
		if prevHist*histogram < 0 {
			strength = math.Min(1.0, strength*1.5)
		}
	}

	return model.Signal{
		Name:        "macd",
		Direction:   direction,
		Strength:    strength,
		RawValue:    histogram,
		Description: fmt.Sprintf("MACD hist=%.2f", histogram),
	}
}

// signalEMACross 快慢 EMA 交叉信号
// 发生交叉时强度放大 2 倍
func (e *Engine) signalEMACross(candles []model.Candle) model.Signal {
	closes := closesOf(candles)
	emaFast := ema(closes, e.cfg.EMAFast)
	emaSlow := ema(closes, e.cfg.EMASlow)
	if len(emaFast) == 0 || len(emaSlow) == 0 {
		return model.Signal{Name: "ema_cross", Direction: model.DirectionHold, Description: "数据不足"}
	}

	diff := emaFast[len(emaFast)-1] - emaSlow[len(emaSlow)-1]

	var direction model.Direction
	switch {
	case diff > 0:
		direction = model.DirectionUp
	case diff < 0:
		direction = model.DirectionDown
	default:
		direction = model.DirectionHold
	}

	spreadPct := math.Abs(diff) / closes[len(closes)-1] * 100
	strength := math.Min(1.0, spreadPct/0.15)

	if len(emaFast) >= 2 && len(emaSlow) >= 2 {
		prevDiff := emaFast[len(emaFast)-2] - emaSlow[len(emaSlow)-2]
		if prevDiff*diff < 0 {
			strength = math.Min(1.0, strength*2.0)
		}
	}

	return model.Signal{
		Name:        "ema_cross",
		Direction:   direction,
		Strength:    strength,
		RawValue:    diff,
		Description: fmt.Sprintf("EMA diff=%.2f", diff),
	}
}

// record 记录决策历史
func (e *Engine) record(d model.StrategyDecision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, d)
	if len(e.history) > 512 {
		e.history = e.history[len(e.history)-512:]
	}
}

// History 获取决策历史副本
func (e *Engine) History() []model.StrategyDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.StrategyDecision, len(e.history))
	copy(out, e.history)
	return out
}
