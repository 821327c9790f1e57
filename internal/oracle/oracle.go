// Package oracle 实现多源价格共识引擎。
// Chainlink 为权威源（市场按其结算），Binance 与 CoinGecko 提供冗余。
// 引擎并发拉取各源读数，过滤过期数据，不足共识数量时回退缓存，
// 并跟踪每个 15 分钟窗口的开盘价锚点（close >= open → UP）。
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/feed"
	"btc-updown-bot/internal/util/timeutil"
)

// ErrExhausted 所有价格源（含缓存）均不可用
var ErrExhausted = errors.New("所有价格源均不可用")

// historyLimit 共识历史保留上限，更早的记录被裁剪
const historyLimit = 512

// Engine 价格共识引擎
type Engine struct {
	// cfg 预言机配置
	cfg *config.OracleConfig
	// feeds 价格源列表
	feeds []feed.Feed
	// candles K 线历史源
	candles feed.CandleSource
	// logger 日志记录器
	logger *zap.Logger

	// mu 保护缓存、锚点和历史
	mu sync.Mutex
	// lastReadings 各源最近一次有效读数（key 为源名称）
	lastReadings map[string]*model.PriceReading
	// anchor 当前窗口开盘价锚点
	anchor *model.WindowAnchor
	// history 最近的共识价格历史
	history []model.ConsensusPrice
}

// NewEngine 创建价格共识引擎
// 参数 cfg: 预言机配置
// 参数 feeds: 价格源列表，顺序不影响共识结果
// 参数 candles: K 线历史源
// 参数 logger: 日志记录器
func NewEngine(cfg *config.OracleConfig, feeds []feed.Feed, candles feed.CandleSource, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		feeds:        feeds,
		candles:      candles,
		logger:       logger.Named("oracle"),
		lastReadings: make(map[string]*model.PriceReading),
	}
}

// GetPrice 获取共识价格
// 并发拉取所有源，过滤过期读数；有效源不足 min_consensus 时回退缓存；
// 价格优先取 Chainlink，否则取各源中位数
func (e *Engine) GetPrice(ctx context.Context) (*model.ConsensusPrice, error) {
	readings := e.fetchAll(ctx)

	now := time.Now()
	valid := make([]*model.PriceReading, 0, len(readings))
	var authoritative *model.PriceReading

	e.mu.Lock()
	for _, r := range readings {
		if r == nil {
			continue
		}
		if r.IsStale(now, time.Duration(e.cfg.MaxPriceAgeSecs)*time.Second) {
			e.logger.Warn("丢弃过期读数",
				zap.String("source", r.Source),
				zap.Duration("age", r.Age(now)))
			continue
		}
		valid = append(valid, r)
		e.lastReadings[r.Source] = r
		if r.Source == model.SourceChainlink {
			authoritative = r
		}
	}

	// 有效源不足时回退缓存（宽松年龄上限）
	if len(valid) < e.cfg.MinConsensus {
		cacheMaxAge := time.Duration(e.cfg.CacheMaxAgeSecs) * time.Second
		seen := make(map[string]bool, len(valid))
		for _, r := range valid {
			seen[r.Source] = true
		}
		for src, r := range e.lastReadings {
			if seen[src] || r.IsStale(now, cacheMaxAge) {
				continue
			}
			valid = append(valid, r)
			e.logger.Warn("回退使用缓存读数",
				zap.String("source", src),
				zap.Duration("age", r.Age(now)))
			if src == model.SourceChainlink && authoritative == nil {
				authoritative = r
			}
		}
	}
	e.mu.Unlock()

	if len(valid) == 0 {
		return nil, ErrExhausted
	}

	prices := make([]float64, len(valid))
	sources := make([]string, len(valid))
	for i, r := range valid {
		prices[i] = r.Price
		sources[i] = r.Source
	}

	// 价格选择: 权威源优先，否则取中位数
	var price float64
	if authoritative != nil {
		price = authoritative.Price
	} else {
		price = median(prices)
	}

	// 发散度 = (max - min) / price * 100
	var spreadPct float64
	if len(prices) > 1 {
		lo, hi := prices[0], prices[0]
		for _, p := range prices[1:] {
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		spreadPct = (hi - lo) / price * 100
	}

	// 发散过大时置信度按比例衰减，否则按源数量线性提升
	var confidence float64
	if spreadPct > e.cfg.MaxDivergencePct {
		e.logger.Error("价格源发散度过高",
			zap.Float64("spread_pct", spreadPct),
			zap.Strings("sources", sources))
		confidence = 1.0 - spreadPct/5.0
		if confidence < 0.2 {
			confidence = 0.2
		}
	} else {
		confidence = float64(len(valid)) / 3.0
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	consensus := &model.ConsensusPrice{
		Price:      price,
		Timestamp:  now,
		Sources:    sources,
		SpreadPct:  spreadPct,
		Confidence: confidence,
	}
	if authoritative != nil {
		consensus.AuthoritativePrice = authoritative.Price
	}

	e.mu.Lock()
	e.history = append(e.history, *consensus)
	if len(e.history) > historyLimit {
		e.history = e.history[len(e.history)-historyLimit:]
	}
	e.mu.Unlock()

	e.logger.Info("共识价格",
		zap.Float64("price", price),
		zap.Float64("spread_pct", spreadPct),
		zap.Float64("confidence", confidence),
		zap.Strings("sources", sources))

	return consensus, nil
}

// fetchAll 并发拉取所有价格源
// 每个源使用独立的超时上下文，单源失败不影响其他源
func (e *Engine) fetchAll(ctx context.Context) []*model.PriceReading {
	results := make([]*model.PriceReading, len(e.feeds))
	var wg sync.WaitGroup

	for i, f := range e.feeds {
		wg.Add(1)
		go func(idx int, f feed.Feed) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.FetchTimeoutSecs)*time.Second)
			defer cancel()

			r, err := f.Fetch(fetchCtx)
			if err != nil {
				e.logger.Warn("价格源拉取失败",
					zap.String("source", f.Name()),
					zap.Error(err))
				return
			}
			results[idx] = r
		}(i, f)
	}

	wg.Wait()
	return results
}

// CaptureWindowOpen 捕获当前 15 分钟窗口的开盘价锚点
// 同一窗口幂等: 已有锚点直接返回，不重复拉取
// 锚点价格优先取权威源，否则取共识价格
func (e *Engine) CaptureWindowOpen(ctx context.Context) (*model.WindowAnchor, error) {
	boundary := timeutil.WindowBoundary(time.Now())

	e.mu.Lock()
	if e.anchor != nil && e.anchor.BoundaryTime.Equal(boundary) {
		anchor := e.anchor
		e.mu.Unlock()
		return anchor, nil
	}
	e.mu.Unlock()

	consensus, err := e.GetPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("捕获窗口开盘价失败: %w", err)
	}

	source := consensus.Sources[0]
	openPrice := consensus.Price
	if consensus.HasAuthoritative() {
		source = model.SourceChainlink
		openPrice = consensus.AuthoritativePrice
	}

	anchor := &model.WindowAnchor{
		BoundaryTime: boundary,
		OpenPrice:    openPrice,
		Source:       source,
		CapturedAt:   time.Now(),
	}

	e.mu.Lock()
	e.anchor = anchor
	e.mu.Unlock()

	e.logger.Info("窗口锚点已捕获",
		zap.Time("boundary", boundary),
		zap.Float64("open_price", openPrice),
		zap.String("source", source))

	return anchor, nil
}

// WindowAnchor 获取当前窗口锚点
// 返回: 锚点，未捕获时为 nil
func (e *Engine) WindowAnchor() *model.WindowAnchor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anchor
}

// GetCandles 获取历史 K 线
// 拉取失败按空历史处理，调用方以根数不足跳过本周期
func (e *Engine) GetCandles(ctx context.Context) []model.Candle {
	candles, err := e.candles.Candles(ctx, e.cfg.CandleInterval, e.cfg.HistoryCandleCount)
	if err != nil {
		e.logger.Warn("获取 K 线失败", zap.Error(err))
		return nil
	}
	return candles
}

// History 获取共识价格历史副本
// 最多包含最近 historyLimit 条
func (e *Engine) History() []model.ConsensusPrice {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ConsensusPrice, len(e.history))
	copy(out, e.history)
	return out
}

// median 计算中位数
// 偶数个取中间两数均值
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
