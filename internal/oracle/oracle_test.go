// Package oracle 价格共识引擎测试
// 使用伪造价格源验证共识、缓存回退和锚点语义
package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/feed"
)

// fakeFeed 伪造价格源
type fakeFeed struct {
	name    string
	reading *model.PriceReading
	err     error
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) Fetch(_ context.Context) (*model.PriceReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reading, nil
}

// fakeCandles 伪造 K 线源
type fakeCandles struct {
	candles []model.Candle
	err     error
}

func (f *fakeCandles) Candles(_ context.Context, _ string, _ int) ([]model.Candle, error) {
	return f.candles, f.err
}

// testOracleConfig 测试用预言机配置
func testOracleConfig() *config.OracleConfig {
	return &config.OracleConfig{
		MaxPriceAgeSecs:    30,
		CacheMaxAgeSecs:    60,
		MinConsensus:       2,
		FetchTimeoutSecs:   5,
		MaxDivergencePct:   1.0,
		HistoryCandleCount: 100,
		CandleInterval:     "15m",
	}
}

// fresh 构造一个新鲜读数
func fresh(source string, price float64) *model.PriceReading {
	return &model.PriceReading{Source: source, Price: price, Timestamp: time.Now()}
}

// stale 构造一个过期读数
func stale(source string, price float64, ageSecs int) *model.PriceReading {
	return &model.PriceReading{Source: source, Price: price, Timestamp: time.Now().Add(-time.Duration(ageSecs) * time.Second)}
}

// TestGetPrice_AuthoritativePreferred 测试权威源优先
// Chainlink 在场时共识价格取 Chainlink，而非中位数
func TestGetPrice_AuthoritativePreferred(t *testing.T) {
	feeds := []feed.Feed{
		&fakeFeed{name: model.SourceChainlink, reading: fresh(model.SourceChainlink, 50000)},
		&fakeFeed{name: model.SourceBinance, reading: fresh(model.SourceBinance, 50010)},
		&fakeFeed{name: model.SourceCoinGecko, reading: stale(model.SourceCoinGecko, 49500, 120)},
	}

	e := NewEngine(testOracleConfig(), feeds, &fakeCandles{}, zap.NewNop())
	cp, err := e.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("GetPrice 失败: %v", err)
	}

	// 过期的 coingecko 读数被丢弃
	if len(cp.Sources) != 2 {
		t.Errorf("len(Sources) = %d, want 2", len(cp.Sources))
	}
	if cp.Price != 50000 {
		t.Errorf("Price = %f, want 50000（权威源优先）", cp.Price)
	}
	if !cp.HasAuthoritative() || cp.AuthoritativePrice != 50000 {
		t.Errorf("AuthoritativePrice = %f, want 50000", cp.AuthoritativePrice)
	}
	// 2 个源 → 置信度 2/3
	want := 2.0 / 3.0
	if diff := cp.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %f, want %f", cp.Confidence, want)
	}
}

// TestGetPrice_MedianWithoutAuthoritative 测试无权威源时取中位数
func TestGetPrice_MedianWithoutAuthoritative(t *testing.T) {
	feeds := []feed.Feed{
		&fakeFeed{name: model.SourceChainlink, err: errors.New("连接失败")},
		&fakeFeed{name: model.SourceBinance, reading: fresh(model.SourceBinance, 50010)},
		&fakeFeed{name: model.SourceCoinGecko, reading: fresh(model.SourceCoinGecko, 50030)},
	}

	e := NewEngine(testOracleConfig(), feeds, &fakeCandles{}, zap.NewNop())
	cp, err := e.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("GetPrice 失败: %v", err)
	}

	// 两源中位数 = (50010 + 50030) / 2
	if cp.Price != 50020 {
		t.Errorf("Price = %f, want 50020", cp.Price)
	}
	if cp.HasAuthoritative() {
		t.Error("无 Chainlink 读数时不应有权威价格")
	}
}

// TestGetPrice_CacheFallback 测试有效源不足时回退缓存
func TestGetPrice_CacheFallback(t *testing.T) {
	cl := &fakeFeed{name: model.SourceChainlink, reading: fresh(model.SourceChainlink, 50000)}
	bn := &fakeFeed{name: model.SourceBinance, reading: fresh(model.SourceBinance, 50010)}
	cg := &fakeFeed{name: model.SourceCoinGecko, err: errors.New("超时")}

	e := NewEngine(testOracleConfig(), []feed.Feed{cl, bn, cg}, &fakeCandles{}, zap.NewNop())

	// 第一次: 两源有效，写入缓存
	if _, err := e.GetPrice(context.Background()); err != nil {
		t.Fatalf("第一次 GetPrice 失败: %v", err)
	}

	// 第二次: 只剩 binance 有效（低于 min_consensus=2），chainlink 从缓存回补
	cl.reading = nil
	cl.err = errors.New("连接失败")
	cp, err := e.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("第二次 GetPrice 失败: %v", err)
	}
	if len(cp.Sources) != 2 {
		t.Errorf("len(Sources) = %d, want 2（缓存回补）", len(cp.Sources))
	}
	// 缓存的 chainlink 读数仍然是权威源
	if !cp.HasAuthoritative() {
		t.Error("缓存的 Chainlink 读数应保持权威")
	}
}

// TestGetPrice_Exhausted 测试所有源不可用
func TestGetPrice_Exhausted(t *testing.T) {
	feeds := []feed.Feed{
		&fakeFeed{name: model.SourceChainlink, err: errors.New("down")},
		&fakeFeed{name: model.SourceBinance, err: errors.New("down")},
		&fakeFeed{name: model.SourceCoinGecko, err: errors.New("down")},
	}

	e := NewEngine(testOracleConfig(), feeds, &fakeCandles{}, zap.NewNop())
	_, err := e.GetPrice(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
}

// TestGetPrice_DivergenceConfidence 测试发散度过高时置信度衰减
func TestGetPrice_DivergenceConfidence(t *testing.T) {
	// 发散度 = (51000 - 50000) / 50000 * 100 = 2% > 1%
	feeds := []feed.Feed{
		&fakeFeed{name: model.SourceChainlink, reading: fresh(model.SourceChainlink, 50000)},
		&fakeFeed{name: model.SourceBinance, reading: fresh(model.SourceBinance, 51000)},
	}

	e := NewEngine(testOracleConfig(), feeds, &fakeCandles{}, zap.NewNop())
	cp, err := e.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("GetPrice 失败: %v", err)
	}

	if cp.SpreadPct != 2.0 {
		t.Errorf("SpreadPct = %f, want 2.0", cp.SpreadPct)
	}
	// 置信度 = max(0.2, 1 - 2/5) = 0.6
	if diff := cp.Confidence - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %f, want 0.6", cp.Confidence)
	}
}

// TestGetPrice_DivergenceConfidenceFloor 测试置信度下限 0.2
func TestGetPrice_DivergenceConfidenceFloor(t *testing.T) {
	// 发散度 = (60000 - 50000) / 50000 * 100 = 20%，1 - 20/5 < 0.2
	feeds := []feed.Feed{
		&fakeFeed{name: model.SourceChainlink, reading: fresh(model.SourceChainlink, 50000)},
		&fakeFeed{name: model.SourceBinance, reading: fresh(model.SourceBinance, 60000)},
	}

	e := NewEngine(testOracleConfig(), feeds, &fakeCandles{}, zap.NewNop())
	cp, err := e.GetPrice(context.Background())
	if err != nil {
		t.Fatalf("GetPrice 失败: %v", err)
	}
	if cp.Confidence != 0.2 {
		t.Errorf("Confidence = %f, want 0.2（下限）", cp.Confidence)
	}
}

// TestCaptureWindowOpen_Idempotent 测试同窗口锚点幂等
func TestCaptureWindowOpen_Idempotent(t *testing.T) {
	cl := &fakeFeed{name: model.SourceChainlink, reading: fresh(model.SourceChainlink, 50000)}
	bn := &fakeFeed{name: model.SourceBinance, reading: fresh(model.SourceBinance, 50010)}

	e := NewEngine(testOracleConfig(), []feed.Feed{cl, bn}, &fakeCandles{}, zap.NewNop())

	a1, err := e.CaptureWindowOpen(context.Background())
	if err != nil {
		t.Fatalf("第一次捕获失败: %v", err)
	}
	if a1.OpenPrice != 50000 {
		t.Errorf("OpenPrice = %f, want 50000", a1.OpenPrice)
	}
	if a1.Source != model.SourceChainlink {
		t.Errorf("Source = %s, want chainlink", a1.Source)
	}
	if a1.BoundaryTime.Unix()%900 != 0 {
		t.Errorf("BoundaryTime 应对齐到 900 秒: %d", a1.BoundaryTime.Unix())
	}

	// 改变价格后再次捕获，同一窗口应返回原锚点
	cl.reading = fresh(model.SourceChainlink, 55555)
	a2, err := e.CaptureWindowOpen(context.Background())
	if err != nil {
		t.Fatalf("第二次捕获失败: %v", err)
	}
	if a2.OpenPrice != 50000 {
		t.Errorf("同一窗口重复捕获应返回原锚点: OpenPrice = %f", a2.OpenPrice)
	}

	if e.WindowAnchor() == nil {
		t.Error("WindowAnchor 不应为 nil")
	}
}

// TestWindowAnchor_DriftPct 测试锚点漂移计算
func TestWindowAnchor_DriftPct(t *testing.T) {
	a := &model.WindowAnchor{OpenPrice: 50000}
	// (50075 - 50000) / 50000 * 100 = 0.15%
	if diff := a.DriftPct(50075) - 0.15; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("DriftPct = %f, want 0.15", a.DriftPct(50075))
	}
	// 开盘价非法时漂移为 0
	bad := &model.WindowAnchor{OpenPrice: 0}
	if bad.DriftPct(50000) != 0 {
		t.Error("开盘价为 0 时漂移应为 0")
	}
}

// TestMedian 测试中位数计算
// 属性: 中位数介于最小值和最大值之间；奇数个时等于排序后的中间值
func TestMedian(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("中位数介于最小值和最大值之间", prop.ForAll(
		func(values []float64) bool {
			if len(values) == 0 {
				return median(values) == 0
			}
			m := median(values)
			lo, hi := values[0], values[0]
			for _, v := range values {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			return m >= lo && m <= hi
		},
		gen.SliceOf(gen.Float64Range(1, 1_000_000)),
	))

	properties.TestingRun(t)

	// 已知值
	if m := median([]float64{3, 1, 2}); m != 2 {
		t.Errorf("median([3,1,2]) = %f, want 2", m)
	}
	if m := median([]float64{4, 1, 3, 2}); m != 2.5 {
		t.Errorf("median([4,1,3,2]) = %f, want 2.5", m)
	}
}

// TestGetCandles 测试 K 线透传
// 拉取失败按空历史处理，由调用方的根数守卫跳过周期
func TestGetCandles(t *testing.T) {
	candles := []model.Candle{{Close: 50000}, {Close: 50100}}
	e := NewEngine(testOracleConfig(), nil, &fakeCandles{candles: candles}, zap.NewNop())

	if got := e.GetCandles(context.Background()); len(got) != 2 {
		t.Errorf("len(candles) = %d, want 2", len(got))
	}

	e2 := NewEngine(testOracleConfig(), nil, &fakeCandles{err: errors.New("klines 失败")}, zap.NewNop())
	if got := e2.GetCandles(context.Background()); len(got) != 0 {
		t.Errorf("K 线源失败应返回空历史，实际 %d 根", len(got))
	}
}
