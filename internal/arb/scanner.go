// Package arb 实现独立的套利扫描器。
// 与 15 分钟方向性交易周期无关，自带快速轮询循环：
// 经分页发现所有 btc-updown-{5m,15m,30m,1h}-{ts} 市场，
// 当 YES + NO 价格之和低于阈值时立即双侧买入，捕获纯定价缺口。
package arb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/venue"
)

// slugPattern 目标市场 slug 规则: btc-updown-{周期}-{unix 时间戳}
var slugPattern = regexp.MustCompile(`^btc-updown-(\d+m|\d+h)-(\d+)$`)

// nearMissRetention 贴近阈值记录的保留时长
const nearMissRetention = 5 * time.Minute

// nearMissBand 贴近阈值记录的观测带宽
const nearMissBand = 0.02

// Executor 套利执行协作方
// 为 nil 时扫描器以干跑模式记录机会但不下单
type Executor interface {
	// PlaceOrder 对市场一侧下买单
	PlaceOrder(ctx context.Context, market *model.BinaryMarket, p venue.OrderParams) (*model.TradeRecord, error)
	// ListMarkets 分页列出活跃市场
	ListMarkets(ctx context.Context, limit, offset int) ([]venue.GammaMarket, error)
	// FetchMarket 刷新单个市场
	FetchMarket(ctx context.Context, conditionID string) (*venue.GammaMarket, error)
	// RegisterMarket 将市场写入执行方注册表
	RegisterMarket(m *model.BinaryMarket)
}

// Scanner 套利扫描器
// 全部共享状态由互斥锁保护；Run 在独立 goroutine 中驱动。
type Scanner struct {
	// cfg 扫描器配置
	cfg config.ArbConfig
	// executor 执行协作方（可为 nil）
	executor Executor
	// logger 日志记录器
	logger *zap.Logger
	// timeframes 纳入扫描的周期集合
	timeframes map[string]bool
	// stop 关闭后扫描循环在当前轮次完成后退出
	stop chan struct{}
	// stopOnce 保证 stop 只关闭一次
	stopOnce sync.Once

	// mu 保护以下全部状态
	mu sync.Mutex
	// known 活跃市场 conditionID -> market
	known map[string]*model.ArbMarket
	// expired 到期归档
	expired map[string]*model.ArbMarket
	// executions 执行记录
	executions []*model.ArbExecution
	// cooldowns 同市场冷却 conditionID -> 上次执行时间
	cooldowns map[string]time.Time
	// nearMisses 贴近阈值观测
	nearMisses []model.NearMiss
	// dailyTrades 当日套利次数
	dailyTrades int
	// dailySpent 当日投入（USD）
	dailySpent decimal.Decimal
	// dailyProfit 当日捕获利润（USD）
	dailyProfit decimal.Decimal
	// dayStart 当日窗口起点（24 小时滚动）
	dayStart time.Time
	// scanCount 扫描轮次
	scanCount int
	// lastDiscovery 上次完整发现时间
	lastDiscovery time.Time
	// lastScanDur 上次扫描耗时
	lastScanDur time.Duration
	// bestEdge 当日最佳边际（百分比）
	bestEdge float64
}

// New 创建套利扫描器
func New(cfg config.ArbConfig, executor Executor, logger *zap.Logger) *Scanner {
	tfs := make(map[string]bool, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		tfs[tf] = true
	}
	return &Scanner{
		cfg:        cfg,
		executor:   executor,
		logger:     logger.Named("arb"),
		timeframes: tfs,
		stop:       make(chan struct{}),
		known:      make(map[string]*model.ArbMarket),
		expired:    make(map[string]*model.ArbMarket),
		cooldowns:  make(map[string]time.Time),
	}
}

// Run 驱动扫描循环直到 ctx 取消
// 每轮错误都在轮次边界捕获，不会中断循环。
func (s *Scanner) Run(ctx context.Context) {
	s.mu.Lock()
	s.dayStart = time.Now()
	s.mu.Unlock()

	interval := time.Duration(s.cfg.PollIntervalSecs * float64(time.Second))
	s.logger.Info("套利扫描器启动",
		zap.Duration("interval", interval),
		zap.Strings("timeframes", s.cfg.Timeframes),
		zap.Float64("threshold", s.cfg.Threshold),
		zap.Float64("daily_budget", s.cfg.MaxDailyBudgetUSD))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.scanOnce(ctx); err != nil {
			s.logger.Error("扫描出错", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("套利扫描器停止")
			return
		case <-s.stop:
			s.logger.Info("套利扫描器停止")
			return
		case <-ticker.C:
		}
	}
}

// Stop 请求扫描循环在当前轮次完成后退出
// 与 ctx 取消不同，在途的发现与下单请求不会被中断。
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// scanOnce 执行一轮扫描
func (s *Scanner) scanOnce(ctx context.Context) error {
	start := time.Now()
	s.checkDailyReset(start)

	s.mu.Lock()
	s.scanCount++
	scanCount := s.scanCount
	needDiscovery := start.Sub(s.lastDiscovery) > time.Duration(s.cfg.DiscoveryIntervalSecs*float64(time.Second))
	s.mu.Unlock()

	var err error
	if needDiscovery {
		err = s.discover(ctx, start)
	} else {
		err = s.refreshPrices(ctx, start)
	}
	if err != nil {
		return err
	}

	s.pruneExpired(start)

	opps := s.findOpportunities(start)
	for _, opp := range opps {
		s.execute(ctx, opp, start)
		s.mu.Lock()
		stop := s.dailyTrades >= s.cfg.MaxDailyTrades ||
			s.dailySpent.GreaterThanOrEqual(decimal.NewFromFloat(s.cfg.MaxDailyBudgetUSD))
		s.mu.Unlock()
		if stop {
			break
		}
	}

	s.mu.Lock()
	s.lastScanDur = time.Since(start)
	live := len(s.known)
	trades := s.dailyTrades
	profit := s.dailyProfit
	dur := s.lastScanDur
	s.mu.Unlock()

	if scanCount%30 == 0 {
		s.logger.Info("扫描进度",
			zap.Int("scan", scanCount),
			zap.Int("live_markets", live),
			zap.Int("daily_trades", trades),
			zap.String("daily_profit", profit.StringFixed(2)),
			zap.Duration("scan_time", dur))
	}
	return nil
}

// discover 分页拉取全部活跃市场并按 slug 匹配
func (s *Scanner) discover(ctx context.Context, now time.Time) error {
	if s.executor == nil {
		return nil
	}

	var matched []*model.ArbMarket
	offset := 0
	for page := 0; page < s.cfg.MaxPages; page++ {
		raw, err := s.executor.ListMarkets(ctx, s.cfg.PageSize, offset)
		if err != nil {
			return fmt.Errorf("套利市场发现失败: %w", err)
		}
		if len(raw) == 0 {
			break
		}

		for i := range raw {
			if am := s.parseMarket(&raw[i], now); am != nil {
				matched = append(matched, am)
			}
		}

		if len(raw) < s.cfg.PageSize {
			break
		}
		offset += s.cfg.PageSize
	}

	s.mu.Lock()
	for _, am := range matched {
		s.known[am.ConditionID] = am
	}
	s.lastDiscovery = now
	total := len(s.known)
	s.mu.Unlock()

	s.logger.Info("套利市场发现完成",
		zap.Int("matched", len(matched)),
		zap.Int("live", total))
	return nil
}

// parseMarket 按 slug 规则与周期过滤解析市场条目
// 不匹配返回 nil
func (s *Scanner) parseMarket(m *venue.GammaMarket, now time.Time) *model.ArbMarket {
	groups := slugPattern.FindStringSubmatch(m.Slug)
	if groups == nil {
		return nil
	}
	timeframe := groups[1]
	if !s.timeframes[timeframe] {
		return nil
	}

	yesID, noID, yesPrice, noPrice, ok := m.Sides()
	if !ok {
		return nil
	}

	return &model.ArbMarket{
		ConditionID:   m.Key(),
		Question:      m.Question,
		Slug:          m.Slug,
		TokenIDYes:    yesID,
		TokenIDNo:     noID,
		PriceYes:      yesPrice,
		PriceNo:       noPrice,
		Liquidity:     m.Liquidity(),
		Volume:        m.VolumeUSD(),
		EndDate:       m.EndTime(),
		Timeframe:     timeframe,
		LastRefreshed: now,
	}
}

// refreshPrices 刷新过期读数
// 只刷新超过 0.8 倍扫描周期未更新且尚未到期的市场
func (s *Scanner) refreshPrices(ctx context.Context, now time.Time) error {
	if s.executor == nil {
		return nil
	}

	staleAfter := time.Duration(s.cfg.PollIntervalSecs * 0.8 * float64(time.Second))

	s.mu.Lock()
	var stale []*model.ArbMarket
	for _, m := range s.known {
		if now.Sub(m.LastRefreshed) < staleAfter {
			continue
		}
		if m.TimeRemaining(now) <= 0 {
			continue
		}
		stale = append(stale, m)
	}
	s.mu.Unlock()

	for _, m := range stale {
		raw, err := s.executor.FetchMarket(ctx, m.ConditionID)
		if err != nil {
			// 单个市场刷新失败不阻塞本轮其余刷新
			continue
		}
		_, _, yesPrice, noPrice, ok := raw.Sides()
		if !ok {
			continue
		}
		s.mu.Lock()
		m.PriceYes = yesPrice
		m.PriceNo = noPrice
		m.Liquidity = raw.Liquidity()
		m.Volume = raw.VolumeUSD()
		m.LastRefreshed = now
		s.mu.Unlock()
	}
	return nil
}

// pruneExpired 将到期市场移入归档
func (s *Scanner) pruneExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, m := range s.known {
		if m.TimeRemaining(now) <= 0 {
			s.expired[cid] = m
			delete(s.known, cid)
		}
	}
}

// findOpportunities 识别满足全部条件的套利机会
// 条件: 0 < combined < 阈值、边际达标、流动性达标、不在冷却期。
// 同时记录贴近阈值（[阈值, 阈值+0.02)）的观测，按边际降序返回机会。
func (s *Scanner) findOpportunities(now time.Time) []*model.ArbMarket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opps []*model.ArbMarket
	for _, m := range s.known {
		combined := m.Combined()
		if combined == 0 {
			continue
		}
		if m.TimeRemaining(now) <= 0 {
			continue
		}

		if combined >= s.cfg.Threshold && combined < s.cfg.Threshold+nearMissBand {
			s.recordNearMissLocked(m, now)
		}

		if combined >= s.cfg.Threshold {
			continue
		}
		edge := m.EdgePct()
		if edge < s.cfg.MinEdgePct {
			continue
		}
		if edge > s.bestEdge {
			s.bestEdge = edge
		}
		if last, ok := s.cooldowns[m.ConditionID]; ok &&
			now.Sub(last) < time.Duration(s.cfg.CooldownSecs*float64(time.Second)) {
			continue
		}
		if m.Liquidity < s.cfg.MinLiquidityUSD {
			continue
		}
		opps = append(opps, m)
	}

	sort.Slice(opps, func(i, j int) bool {
		return opps[i].EdgePct() > opps[j].EdgePct()
	})
	return opps
}

// recordNearMissLocked 记录贴近阈值的观测
// 调用方须持有 s.mu；超出保留时长的旧记录顺带清理。
func (s *Scanner) recordNearMissLocked(m *model.ArbMarket, now time.Time) {
	kept := s.nearMisses[:0]
	for _, nm := range s.nearMisses {
		if now.Sub(nm.Time) < nearMissRetention {
			kept = append(kept, nm)
		}
	}
	s.nearMisses = kept

	question := m.Question
	if len(question) > 60 {
		question = question[:60]
	}
	s.nearMisses = append(s.nearMisses, model.NearMiss{
		Time:      now,
		Question:  question,
		Timeframe: m.Timeframe,
		Combined:  m.Combined(),
		GapPct:    (1.0 - m.Combined()) * 100,
	})
}

// execute 对一个机会执行双侧买入
// 冷却与预算在提交时无条件消耗，即使执行失败也不立即重试同一市场。
func (s *Scanner) execute(ctx context.Context, m *model.ArbMarket, now time.Time) *model.ArbExecution {
	sizePerSide := decimal.NewFromFloat(s.cfg.SizePerSideUSD)
	cost := sizePerSide.Mul(decimal.NewFromInt(2))

	s.mu.Lock()
	if s.dailyTrades >= s.cfg.MaxDailyTrades ||
		s.dailySpent.Add(cost).GreaterThan(decimal.NewFromFloat(s.cfg.MaxDailyBudgetUSD)) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	combined := m.Combined()
	// 利润 = size × (1/combined − 1)
	profit := sizePerSide.Mul(
		decimal.NewFromFloat(1.0 / combined).Sub(decimal.NewFromInt(1)),
	).Round(2)

	exec := &model.ArbExecution{
		Timestamp:        now,
		ConditionID:      m.ConditionID,
		Question:         m.Question,
		Timeframe:        m.Timeframe,
		PriceYes:         m.PriceYes,
		PriceNo:          m.PriceNo,
		Combined:         combined,
		EdgePct:          m.EdgePct(),
		SizePerSide:      sizePerSide,
		GuaranteedProfit: profit,
		Status:           model.ArbPending,
	}

	s.logger.Info("套利机会",
		zap.String("timeframe", m.Timeframe),
		zap.String("question", m.Question),
		zap.Float64("yes", m.PriceYes),
		zap.Float64("no", m.PriceNo),
		zap.Float64("combined", combined),
		zap.Float64("edge_pct", m.EdgePct()),
		zap.String("profit", profit.StringFixed(2)))

	if s.executor == nil {
		exec.Status = model.ArbDryRun
	} else {
		s.submitBothSides(ctx, m, exec, sizePerSide)
	}

	s.mu.Lock()
	s.executions = append(s.executions, exec)
	s.cooldowns[m.ConditionID] = now
	s.dailyTrades++
	s.dailySpent = s.dailySpent.Add(cost)
	if exec.Status == model.ArbFilled || exec.Status == model.ArbDryRun {
		s.dailyProfit = s.dailyProfit.Add(profit)
	}
	s.mu.Unlock()

	return exec
}

// submitBothSides 经执行协作方买入两侧
func (s *Scanner) submitBothSides(ctx context.Context, m *model.ArbMarket, exec *model.ArbExecution, sizePerSide decimal.Decimal) {
	bm := &model.BinaryMarket{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		TokenIDUp:   m.TokenIDYes,
		TokenIDDown: m.TokenIDNo,
		PriceUp:     m.PriceYes,
		PriceDown:   m.PriceNo,
		Volume:      m.Volume,
		Liquidity:   m.Liquidity,
		EndDate:     m.EndDate,
		Status:      model.MarketActive,
	}
	s.executor.RegisterMarket(bm)

	yes, err := s.executor.PlaceOrder(ctx, bm, venue.OrderParams{
		Direction:  model.DirectionUp,
		SizeUSD:    sizePerSide,
		Confidence: 1.0,
	})
	if err != nil {
		s.logger.Error("YES 侧下单失败", zap.Error(err))
	} else {
		exec.OrderIDYes = yes.OrderID
	}

	no, err := s.executor.PlaceOrder(ctx, bm, venue.OrderParams{
		Direction:  model.DirectionDown,
		SizeUSD:    sizePerSide,
		Confidence: 1.0,
	})
	if err != nil {
		s.logger.Error("NO 侧下单失败", zap.Error(err))
	} else {
		exec.OrderIDNo = no.OrderID
	}

	switch {
	case yes != nil && no != nil:
		exec.Status = model.ArbFilled
	case yes != nil || no != nil:
		exec.Status = model.ArbPartial
	default:
		exec.Status = model.ArbFailed
	}
}

// checkDailyReset 按 24 小时滚动窗口重置当日计数
func (s *Scanner) checkDailyReset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dayStart.IsZero() {
		s.dayStart = now
		return
	}
	if now.Sub(s.dayStart) > 24*time.Hour {
		s.dailyTrades = 0
		s.dailySpent = decimal.Zero
		s.dailyProfit = decimal.Zero
		s.dayStart = now
		s.bestEdge = 0
		s.nearMisses = nil
	}
}
