package arb

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"btc-updown-bot/internal/core/model"
)

// MarketView 面向看板的市场视图
type MarketView struct {
	// Question 市场标题（截断）
	Question string `json:"question"`
	// Timeframe 市场周期
	Timeframe string `json:"timeframe"`
	// PriceYes YES 侧价格
	PriceYes float64 `json:"price_yes"`
	// PriceNo NO 侧价格
	PriceNo float64 `json:"price_no"`
	// Combined 两侧价格之和
	Combined float64 `json:"combined"`
	// EdgePct 隐含边际（百分比）
	EdgePct float64 `json:"edge_pct"`
	// Liquidity 流动性（USD）
	Liquidity float64 `json:"liquidity"`
	// RemainingSecs 距到期剩余（秒）
	RemainingSecs float64 `json:"remaining_secs"`
	// IsArb 是否满足阈值
	IsArb bool `json:"is_arb"`
}

// ExecutionView 面向看板的执行记录视图
type ExecutionView struct {
	// Time 执行时间
	Time time.Time `json:"time"`
	// Timeframe 市场周期
	Timeframe string `json:"timeframe"`
	// EdgePct 捕获边际（百分比）
	EdgePct float64 `json:"edge_pct"`
	// Profit 预期利润（USD）
	Profit decimal.Decimal `json:"profit"`
	// Status 执行状态
	Status model.ArbStatus `json:"status"`
	// Combined 两侧价格之和
	Combined float64 `json:"combined"`
	// Question 市场标题（截断）
	Question string `json:"question"`
}

// Stats 扫描器状态快照
type Stats struct {
	// ScanCount 累计扫描轮次
	ScanCount int `json:"scan_count"`
	// ScanTimeMs 上次扫描耗时（毫秒）
	ScanTimeMs float64 `json:"scan_time_ms"`
	// MarketsLive 活跃市场数量
	MarketsLive int `json:"markets_live"`
	// MarketsExpired 归档市场数量
	MarketsExpired int `json:"markets_expired"`
	// MarketsByTimeframe 按周期统计的活跃市场
	MarketsByTimeframe map[string]int `json:"markets_by_timeframe"`
	// Markets 活跃市场列表（按到期时间升序，至多 50 个）
	Markets []MarketView `json:"markets"`
	// DailyTrades 当日套利次数
	DailyTrades int `json:"daily_trades"`
	// DailySpent 当日投入（USD）
	DailySpent decimal.Decimal `json:"daily_spent"`
	// DailyProfit 当日捕获利润（USD）
	DailyProfit decimal.Decimal `json:"daily_profit"`
	// BudgetRemaining 当日剩余预算（USD）
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
	// BestEdgePct 当日最佳边际（百分比）
	BestEdgePct float64 `json:"best_edge_pct"`
	// NearMisses 贴近阈值观测（至多 5 条）
	NearMisses []model.NearMiss `json:"near_misses"`
	// TotalExecutions 累计执行次数
	TotalExecutions int `json:"total_executions"`
	// RecentExecutions 最近执行记录（至多 10 条）
	RecentExecutions []ExecutionView `json:"recent_executions"`
}

// GetStats 计算扫描器状态快照
func (s *Scanner) GetStats(now time.Time) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTF := make(map[string]int)
	markets := make([]*model.ArbMarket, 0, len(s.known))
	for _, m := range s.known {
		byTF[m.Timeframe]++
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].EndDate.Before(markets[j].EndDate)
	})
	if len(markets) > 50 {
		markets = markets[len(markets)-50:]
	}

	views := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		question := m.Question
		if len(question) > 70 {
			question = question[:70]
		}
		views = append(views, MarketView{
			Question:      question,
			Timeframe:     m.Timeframe,
			PriceYes:      m.PriceYes,
			PriceNo:       m.PriceNo,
			Combined:      m.Combined(),
			EdgePct:       m.EdgePct(),
			Liquidity:     m.Liquidity,
			RemainingSecs: m.TimeRemaining(now).Seconds(),
			IsArb:         m.Combined() > 0 && m.Combined() < s.cfg.Threshold,
		})
	}

	recent := s.executions
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	execs := make([]ExecutionView, 0, len(recent))
	for _, e := range recent {
		question := e.Question
		if len(question) > 60 {
			question = question[:60]
		}
		execs = append(execs, ExecutionView{
			Time:      e.Timestamp,
			Timeframe: e.Timeframe,
			EdgePct:   e.EdgePct,
			Profit:    e.GuaranteedProfit,
			Status:    e.Status,
			Combined:  e.Combined,
			Question:  question,
		})
	}

	misses := s.nearMisses
	if len(misses) > 5 {
		misses = misses[len(misses)-5:]
	}
	nearMisses := make([]model.NearMiss, len(misses))
	copy(nearMisses, misses)

	budget := decimal.NewFromFloat(s.cfg.MaxDailyBudgetUSD)
	return Stats{
		ScanCount:          s.scanCount,
		ScanTimeMs:         float64(s.lastScanDur.Microseconds()) / 1000,
		MarketsLive:        len(s.known),
		MarketsExpired:     len(s.expired),
		MarketsByTimeframe: byTF,
		Markets:            views,
		DailyTrades:        s.dailyTrades,
		DailySpent:         s.dailySpent,
		DailyProfit:        s.dailyProfit,
		BudgetRemaining:    budget.Sub(s.dailySpent),
		BestEdgePct:        s.bestEdge,
		NearMisses:         nearMisses,
		TotalExecutions:    len(s.executions),
		RecentExecutions:   execs,
	}
}

// Executions 执行记录快照
func (s *Scanner) Executions() []*model.ArbExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.ArbExecution, len(s.executions))
	copy(out, s.executions)
	return out
}
