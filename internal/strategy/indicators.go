// Package strategy 实现多信号方向预测引擎。
// 核心问题不是“BTC 会不会涨”，而是“BTC 收盘时会不会高于本窗口开盘价”：
// 市场按 chainlink_close >= chainlink_open → UP 结算，
// 因此锚定开盘价的漂移信号权重最高。
package strategy

import (
	"math"

	"btc-updown-bot/internal/core/model"
)

// ema 计算指数移动平均序列
// 种子为前 period 个数据的简单均值，数据不足 period 时整段退化为均值
func ema(data []float64, period int) []float64 {
	if len(data) == 0 {
		return nil
	}
	if len(data) < period {
		var sum float64
		for _, v := range data {
			sum += v
		}
		avg := sum / float64(len(data))
		out := make([]float64, len(data))
		for i := range out {
			out[i] = avg
		}
		return out
	}

	multiplier := 2.0 / float64(period+1)
	var seed float64
	for _, v := range data[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(data)-period+1)
	out = append(out, seed)
	for _, price := range data[period:] {
		prev := out[len(out)-1]
		out = append(out, price*multiplier+prev*(1-multiplier))
	}
	return out
}

// rsi 计算 Wilder 平滑 RSI
// 数据不足 period+1 时返回中性值 50
func rsi(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}

	deltas := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas[i-1] = closes[i] - closes[i-1]
	}

	var avgGain, avgLoss float64
	for _, d := range deltas[:period] {
		if d > 0 {
			avgGain += d
		} else {
			avgLoss += -d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for _, d := range deltas[period:] {
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// macd 计算 MACD 线、信号线和柱状图
// 数据不足 slow+signal 时全部返回 0
func macd(closes []float64, fast, slow, signal int) (macdLine, signalLine, histogram float64) {
	if len(closes) < slow+signal {
		return 0, 0, 0
	}

	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	minLen := len(emaFast)
	if len(emaSlow) < minLen {
		minLen = len(emaSlow)
	}
	line := make([]float64, minLen)
	for i := 0; i < minLen; i++ {
		line[i] = emaFast[len(emaFast)-minLen+i] - emaSlow[len(emaSlow)-minLen+i]
	}

	if len(line) < signal {
		if len(line) > 0 {
			return line[len(line)-1], 0, 0
		}
		return 0, 0, 0
	}

	sig := ema(line, signal)
	macdLine = line[len(line)-1]
	signalLine = sig[len(sig)-1]
	return macdLine, signalLine, macdLine - signalLine
}

// volatility 计算 K 线收盘价百分比收益的总体标准差
// 数据不足 2 根时返回 0
func volatility(candles []model.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev*100)
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(returns)))
}

// closesOf 提取收盘价序列
func closesOf(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
