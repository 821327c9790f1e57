// Package bot 实现主交易循环与时钟同步。
// 循环每 15 分钟窗口恰好触发一次交易周期（边界前 entry_lead_secs 秒，
// 前后各 entry_window_secs 秒为有效入场窗口），周期内依次完成
// 锚点捕获、共识定价、策略分析、对冲检查、风控闸门、下单与结算。
// 周期内任何错误都在周期边界捕获，不会中断循环。
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"btc-updown-bot/internal/arb"
	"btc-updown-bot/internal/broadcast"
	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/hedge"
	"btc-updown-bot/internal/oracle"
	"btc-updown-bot/internal/risk"
	"btc-updown-bot/internal/strategy"
	"btc-updown-bot/internal/telemetry"
	"btc-updown-bot/internal/util/timeutil"
	"btc-updown-bot/internal/venue"
)

// minCandles 策略分析所需的最少 K 线根数，不足则跳过本周期
const minCandles = 30

// Deps 机器人依赖的各子系统
// Arb 与 Broadcast 可为 nil（对应功能未启用）。
type Deps struct {
	// Oracle 价格共识引擎
	Oracle *oracle.Engine
	// Strategy 多信号策略引擎
	Strategy *strategy.Engine
	// Risk 风控管理器
	Risk *risk.Manager
	// Venue 交易场所客户端
	Venue *venue.Client
	// Hedge 对冲引擎
	Hedge *hedge.Engine
	// Arb 套利扫描器，未启用时为 nil
	Arb *arb.Scanner
	// Recorder 遥测记录器
	Recorder *telemetry.Recorder
	// Broadcast 状态广播服务，未启用时为 nil
	Broadcast *broadcast.Server
}

// Bot 主交易机器人
// Run 为单协程驱动，周期状态无需加锁。
type Bot struct {
	// cfg 应用配置
	cfg *config.Config
	// deps 各子系统
	deps Deps
	// logger 日志记录器
	logger *zap.Logger
	// now 时钟源，测试中可替换
	now func() time.Time

	// stop 关闭后主循环在当前周期完成后退出
	stop chan struct{}
	// stopOnce 保证 stop 只关闭一次
	stopOnce sync.Once
	// wg 等待套利扫描器协程退出
	wg sync.WaitGroup

	// cycleCount 已触发的交易周期数
	cycleCount int
	// lastFired 上次触发周期的窗口边界，保证每窗口至多触发一次
	lastFired time.Time
	// lastConsensus 最近一次共识价格
	lastConsensus *model.ConsensusPrice
	// lastDecision 最近一次策略决策
	lastDecision *model.StrategyDecision
	// startTime 循环启动时间
	startTime time.Time
}

// New 创建交易机器人
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Bot {
	return &Bot{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("bot"),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

// Stop 请求优雅停止
// 在途周期照常完成，主循环随后退出；绝不中断进行中的请求。
// ctx 取消仍作为强制中断保留。
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Run 驱动主循环直到 ctx 取消或达到最大周期数
// 套利扫描器作为独立协程运行，与方向性周期互不阻塞。
func (b *Bot) Run(ctx context.Context) error {
	b.startTime = b.now()

	if b.deps.Arb != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.deps.Arb.Run(ctx)
		}()
		b.logger.Info("套利扫描器已作为独立协程启动")
	}

	b.logger.Info("主循环启动",
		zap.Int("entry_lead_secs", b.cfg.Bot.EntryLeadSecs),
		zap.Int("entry_window_secs", b.cfg.Bot.EntryWindowSecs),
		zap.Time("next_entry", b.nextEntry(b.now())))

	ticker := time.NewTicker(time.Duration(b.cfg.Bot.SleepPollSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.joinScanner()
			return ctx.Err()
		case <-b.stop:
			b.logger.Info("收到停止请求，主循环退出")
			b.joinScanner()
			return nil
		case <-ticker.C:
			now := b.now()
			if !b.shouldFire(now) {
				continue
			}

			boundary := timeutil.NextBoundary(now)
			b.lastFired = boundary
			b.logger.Info("进入入场窗口",
				zap.Time("boundary", boundary),
				zap.Int("cycle", b.cycleCount+1))

			if err := b.runCycle(ctx); err != nil {
				b.logger.Error("交易周期失败",
					zap.Int("cycle", b.cycleCount),
					zap.Error(err))
			}
			b.publish(b.now())

			if b.cfg.Bot.MaxCycles > 0 && b.cycleCount >= b.cfg.Bot.MaxCycles {
				b.logger.Info("达到最大周期数，退出主循环",
					zap.Int("cycles", b.cycleCount))
				b.joinScanner()
				return nil
			}
			b.logger.Info("等待下一入场窗口",
				zap.Time("next_entry", b.nextEntry(b.now())))
		}
	}
}

// joinScanner 通知套利扫描器停止并等待其协程退出
// Arb 为 nil 时 wg 计数为零，Wait 直接返回。
func (b *Bot) joinScanner() {
	if b.deps.Arb != nil {
		b.deps.Arb.Stop()
	}
	b.wg.Wait()
}

// shouldFire 判断当前时刻是否应触发交易周期
// 条件: 落在入场窗口内，且本窗口边界尚未触发过
func (b *Bot) shouldFire(now time.Time) bool {
	if !timeutil.InEntryWindow(now, b.cfg.Bot.EntryLeadSecs, b.cfg.Bot.EntryWindowSecs) {
		return false
	}
	return !timeutil.NextBoundary(now).Equal(b.lastFired)
}

// nextEntry 计算下一次入场时刻
func (b *Bot) nextEntry(now time.Time) time.Time {
	entry := timeutil.NextBoundary(now).Add(-time.Duration(b.cfg.Bot.EntryLeadSecs) * time.Second)
	if !entry.After(now) {
		entry = entry.Add(15 * time.Minute)
	}
	return entry
}

// runCycle 执行一个完整交易周期
// 观望、风控拦截、无可交易市场均为正常提前返回，不算错误。
func (b *Bot) runCycle(ctx context.Context) error {
	b.cycleCount++

	// 1. 窗口锚点（失败不终止周期，策略退化为无锚点模式）
	anchor, err := b.deps.Oracle.CaptureWindowOpen(ctx)
	if err != nil {
		b.logger.Warn("捕获窗口锚点失败", zap.Error(err))
		anchor = nil
	}

	// 2. 共识价格
	consensus, err := b.deps.Oracle.GetPrice(ctx)
	if err != nil {
		return fmt.Errorf("获取共识价格失败: %w", err)
	}
	b.lastConsensus = consensus
	b.deps.Recorder.RecordOracle(telemetry.OracleEvent{
		Price:         consensus.Price,
		Sources:       len(consensus.Sources),
		SourceNames:   consensus.Sources,
		SpreadPct:     consensus.SpreadPct,
		Confidence:    consensus.Confidence,
		Authoritative: consensus.HasAuthoritative(),
	})

	// 3. K 线（拉取失败按空历史处理）
	candles := b.deps.Oracle.GetCandles(ctx)
	if len(candles) < minCandles {
		b.logger.Warn("K 线不足，跳过本周期",
			zap.Int("count", len(candles)),
			zap.Int("required", minCandles))
		return nil
	}

	// 4. 策略分析
	decision := b.deps.Strategy.Analyze(candles, consensus.Price, anchor)
	b.lastDecision = &decision
	b.deps.Recorder.RecordStrategy(telemetry.StrategyEvent{
		Direction:  decision.Direction,
		Confidence: decision.Confidence,
		SizePct:    decision.PositionSizePct,
		Reason:     decision.Reason,
		OpenPrice:  decision.OpenPrice,
		DriftPct:   decision.DriftPct,
		Signals:    decision.Signals,
	})

	if !decision.ShouldTrade {
		b.logger.Info("本周期观望",
			zap.Int("cycle", b.cycleCount),
			zap.String("reason", decision.Reason))
		return nil
	}

	// 5. 风控闸门
	canTrade, reason := b.deps.Risk.CanTrade()
	if !canTrade {
		b.logger.Info("风控拦截",
			zap.Int("cycle", b.cycleCount),
			zap.String("reason", reason))
		status := b.deps.Risk.GetStatus()
		b.deps.Recorder.RecordRisk(telemetry.RiskEvent{
			Reason:      reason,
			Capital:     status.Capital,
			DailyTrades: status.DailyTrades,
		})
		return nil
	}

	// 6. 市场发现与筛选
	markets, err := b.deps.Venue.DiscoverMarkets(ctx)
	if err != nil {
		return fmt.Errorf("市场发现失败: %w", err)
	}
	market := b.pickMarket(markets)
	if market == nil {
		b.logger.Info("无符合条件的可交易市场", zap.Int("cycle", b.cycleCount))
		return nil
	}

	// 7. 对冲检查（方向翻转的开放仓位先行处理）
	b.checkHedges(ctx, consensus, &decision)

	// 8. 仓位与下单
	size := b.deps.Risk.PositionSize(decision.Confidence)
	if !size.IsPositive() {
		return nil
	}
	trade, err := b.deps.Venue.PlaceOrder(ctx, market, venue.OrderParams{
		Direction:   decision.Direction,
		SizeUSD:     size,
		OraclePrice: consensus.Price,
		Confidence:  decision.Confidence,
	})
	if err != nil {
		b.logger.Warn("方向性下单失败", zap.Error(err))
	} else {
		b.deps.Recorder.RecordTrade(telemetry.TradeEvent{
			TradeID:           trade.TradeID,
			MarketConditionID: trade.MarketConditionID,
			Direction:         trade.Direction,
			Confidence:        trade.Confidence,
			EntryPrice:        trade.EntryPrice,
			SizeUSD:           trade.SizeUSD,
			OraclePrice:       trade.OraclePriceAtEntry,
			OrderID:           trade.OrderID,
			DryRun:            b.deps.Venue.DryRun(),
		})
	}

	// 9. 结算观测
	b.settleResolved()

	// 10. 绩效快照
	if err := b.savePerformance(); err != nil {
		b.logger.Warn("保存绩效快照失败", zap.Error(err))
	}

	stats := b.deps.Venue.GetStats()
	b.logger.Info("交易周期完成",
		zap.Int("cycle", b.cycleCount),
		zap.Float64("btc_price", consensus.Price),
		zap.String("direction", string(decision.Direction)),
		zap.Float64("confidence", decision.Confidence),
		zap.Float64("win_rate", stats.WinRate))
	return nil
}

// pickMarket 从发现结果中挑选流动性最高的可交易市场
// 返回: 选中的市场，无符合条件的市场时为 nil
func (b *Bot) pickMarket(markets []*model.BinaryMarket) *model.BinaryMarket {
	var best *model.BinaryMarket
	for _, m := range markets {
		if !m.IsTradeable() || m.Liquidity < b.cfg.Venue.MinLiquidityUSD {
			continue
		}
		if best == nil || m.Liquidity > best.Liquidity {
			best = m
		}
	}
	return best
}

// checkHedges 检查开放仓位并执行对冲
// 每笔对冲下单成功后立即标记，确保至多对冲一次。
func (b *Bot) checkHedges(ctx context.Context, consensus *model.ConsensusPrice, decision *model.StrategyDecision) {
	openTrades := b.deps.Venue.OpenTrades()
	actions := b.deps.Hedge.Check(openTrades, decision.Direction, decision.Confidence, b.deps.Venue.Markets())
	if len(actions) == 0 {
		return
	}

	byID := make(map[string]*model.TradeRecord, len(openTrades))
	for _, t := range openTrades {
		byID[t.TradeID] = t
	}

	for _, action := range actions {
		original, ok := byID[action.OriginalTradeID]
		if !ok {
			continue
		}
		market, ok := b.deps.Venue.Market(original.MarketConditionID)
		if !ok || !market.IsTradeable() {
			b.logger.Warn("对冲目标市场不可交易",
				zap.String("trade_id", action.OriginalTradeID),
				zap.String("condition_id", original.MarketConditionID))
			continue
		}

		_, err := b.deps.Venue.PlaceOrder(ctx, market, venue.OrderParams{
			Direction:   action.HedgeDirection,
			SizeUSD:     action.SizeUSD,
			OraclePrice: consensus.Price,
			Confidence:  decision.Confidence,
		})
		if err != nil {
			b.logger.Warn("对冲下单失败",
				zap.String("trade_id", action.OriginalTradeID),
				zap.Error(err))
			continue
		}

		b.deps.Hedge.MarkHedged(action.OriginalTradeID)
		b.deps.Recorder.RecordHedge(telemetry.HedgeEvent{
			TradeID:           action.OriginalTradeID,
			OriginalDirection: action.OriginalDirection,
			HedgeDirection:    action.HedgeDirection,
			HedgePrice:        action.HedgePrice,
			Locked:            action.LockedProfit,
		})
	}
}

// settleResolved 观测已结算交易并回写风控与遥测
func (b *Bot) settleResolved() {
	resolved := b.deps.Venue.CheckResolutions()
	for _, r := range resolved {
		b.deps.Risk.RecordTrade(r.PnL)
		b.deps.Recorder.RecordResolution(telemetry.ResolutionEvent{
			TradeID:    r.TradeID,
			Direction:  r.Direction,
			Outcome:    r.Outcome,
			EntryPrice: r.EntryPrice,
			PnL:        r.PnL,
		})
	}
}

// savePerformance 保存绩效快照（整文件覆盖）
func (b *Bot) savePerformance() error {
	stats := b.deps.Venue.GetStats()
	status := b.deps.Risk.GetStatus()

	snap := telemetry.PerformanceSnapshot{
		Capital:     status.Capital,
		TotalPnL:    stats.TotalPnL,
		TotalTrades: stats.TotalTrades,
		Completed:   stats.Completed,
		Wins:        stats.Wins,
		Losses:      stats.Losses,
		WinRate:     stats.WinRate,
		DailyTrades: status.DailyTrades,
	}
	if b.deps.Arb != nil {
		arbStats := b.deps.Arb.GetStats(b.now())
		snap.ArbDailyTrades = arbStats.DailyTrades
		snap.ArbDailyProfit = arbStats.DailyProfit
	}
	return b.deps.Recorder.SavePerformance(snap)
}

// publish 构建并广播状态快照
// 观望或周期失败时同样广播，消费端据此跟踪循环存活。
func (b *Bot) publish(now time.Time) {
	if b.deps.Broadcast == nil {
		return
	}
	b.deps.Broadcast.Publish(b.buildSnapshot(now))
}

// buildSnapshot 汇总各子系统状态为一份快照
func (b *Bot) buildSnapshot(now time.Time) broadcast.StateSnapshot {
	snap := broadcast.StateSnapshot{
		Capital: b.deps.Risk.Capital(),
		Window: broadcast.WindowView{
			Boundary:      timeutil.NextBoundary(now),
			RemainingSecs: timeutil.UntilBoundary(now).Seconds(),
		},
		Risk:    b.deps.Risk.GetStatus(),
		Trading: b.deps.Venue.GetStats(),
	}

	if anchor := b.deps.Oracle.WindowAnchor(); anchor != nil {
		snap.Window.AnchorPrice = anchor.OpenPrice
	}
	if b.lastConsensus != nil {
		snap.Oracle = broadcast.OracleView{
			Price:      b.lastConsensus.Price,
			Confidence: b.lastConsensus.Confidence,
			Sources:    len(b.lastConsensus.Sources),
			SpreadPct:  b.lastConsensus.SpreadPct,
		}
	}
	if b.lastDecision != nil {
		snap.Decision = &broadcast.DecisionView{
			Direction:  b.lastDecision.Direction,
			Confidence: b.lastDecision.Confidence,
			Reason:     b.lastDecision.Reason,
			At:         b.lastFired,
		}
	}
	if b.deps.Arb != nil {
		arbStats := b.deps.Arb.GetStats(now)
		snap.Arb = &arbStats
	}
	return snap
}

// CycleCount 已触发的交易周期数
func (b *Bot) CycleCount() int {
	return b.cycleCount
}

// Shutdown 保存最终绩效快照并记录运行统计
// 在主循环退出后由入口调用。
func (b *Bot) Shutdown() {
	if err := b.savePerformance(); err != nil {
		b.logger.Warn("保存最终绩效快照失败", zap.Error(err))
	}
	b.logger.Info("机器人已停止",
		zap.Int("cycles", b.cycleCount),
		zap.Duration("uptime", b.now().Sub(b.startTime)))
}
