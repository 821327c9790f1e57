// Package risk 实现资金、仓位与亏损控制。
// 交易前经 CanTrade 闸门检查，通过后按分数 Kelly 计算仓位；
// 结算后经 RecordTrade 更新每日统计。亏损扣减资金，盈利不回补，
// 使资金曲线只反映回撤，防止连胜后自动放大仓位。
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/util/timeutil"
)

// dailyStats 单日统计
type dailyStats struct {
	// date 日期键（UTC）
	date string
	// trades 当日交易笔数
	trades int
	// wins 当日盈利笔数
	wins int
	// losses 当日亏损笔数
	losses int
	// totalPnL 当日累计盈亏
	totalPnL decimal.Decimal
	// consecutiveLosses 当前连续亏损笔数
	consecutiveLosses int
	// lastTradeTime 最近一笔交易时间
	lastTradeTime time.Time
	// cooldownUntil 冷却截止时间
	cooldownUntil time.Time
}

// Status 风控状态快照
type Status struct {
	// CanTrade 当前是否允许交易
	CanTrade bool `json:"can_trade"`
	// Reason 允许或拒绝的原因
	Reason string `json:"reason"`
	// Capital 当前资金
	Capital decimal.Decimal `json:"capital"`
	// DailyTrades 当日交易笔数
	DailyTrades int `json:"daily_trades"`
	// DailyPnL 当日累计盈亏
	DailyPnL decimal.Decimal `json:"daily_pnl"`
	// ConsecutiveLosses 当前连亏笔数
	ConsecutiveLosses int `json:"consecutive_losses"`
	// InCooldown 是否处于冷却中
	InCooldown bool `json:"in_cooldown"`
	// TotalPnL 累计盈亏
	TotalPnL decimal.Decimal `json:"total_pnl"`
}

// Manager 风控管理器
// 所有方法并发安全
type Manager struct {
	// cfg 风控配置
	cfg *config.RiskConfig
	// logger 日志记录器
	logger *zap.Logger
	// now 时钟源，测试中可替换
	now func() time.Time

	// mu 保护以下所有状态
	mu sync.Mutex
	// capital 当前资金
	capital decimal.Decimal
	// daily 当日统计
	daily dailyStats
	// totalPnL 累计盈亏
	totalPnL decimal.Decimal
}

// NewManager 创建风控管理器
// 参数 cfg: 风控配置
// 参数 capital: 初始资金（USD）
// 参数 logger: 日志记录器
func NewManager(cfg *config.RiskConfig, capital decimal.Decimal, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		logger:  logger.Named("risk"),
		now:     time.Now,
		capital: capital,
	}
	m.daily = dailyStats{date: timeutil.DayKey(m.now())}
	return m
}

// resetDailyIfNeeded 跨日重置当日统计
// 调用方必须持有 mu
func (m *Manager) resetDailyIfNeeded() {
	today := timeutil.DayKey(m.now())
	if m.daily.date != today {
		m.logger.Info("跨日重置风控统计",
			zap.String("prev_date", m.daily.date),
			zap.Int("prev_trades", m.daily.trades),
			zap.String("prev_pnl", m.daily.totalPnL.String()))
		m.daily = dailyStats{date: today}
	}
}

// CanTrade 交易闸门
// 按顺序检查: 冷却中、日交易上限、日亏损上限、连亏上限（达到即布防冷却）、资金耗尽
// 返回: 是否允许交易及原因
func (m *Manager) CanTrade() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canTradeLocked()
}

// canTradeLocked CanTrade 的无锁版本，调用方必须持有 mu
func (m *Manager) canTradeLocked() (bool, string) {
	m.resetDailyIfNeeded()
	now := m.now()

	if now.Before(m.daily.cooldownUntil) {
		remaining := int(m.daily.cooldownUntil.Sub(now).Seconds())
		return false, fmt.Sprintf("冷却中（剩余 %ds）", remaining)
	}

	if m.daily.trades >= m.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("达到日交易上限（%d）", m.cfg.MaxDailyTrades)
	}

	if m.capital.IsPositive() {
		loss := decimal.Min(decimal.Zero, m.daily.totalPnL).Abs()
		lossPct, _ := loss.Div(m.capital).Mul(decimal.NewFromInt(100)).Float64()
		if lossPct >= m.cfg.MaxDailyLossPct {
			return false, fmt.Sprintf("达到日亏损上限（%.1f%%）", lossPct)
		}
	}

	if m.daily.consecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		m.daily.cooldownUntil = now.Add(time.Duration(m.cfg.LossStreakCooldownMins) * time.Minute)
		return false, fmt.Sprintf("连亏 %d 笔，进入冷却", m.daily.consecutiveLosses)
	}

	if !m.capital.IsPositive() {
		return false, "资金耗尽"
	}

	return true, "OK"
}

// PositionSize 按分数 Kelly 计算下注金额
// kelly = max(0, 2c - 1)，按 kelly_fraction 缩放后依次应用:
// 资金占比上限、单笔金额上限、单笔金额下限、不超过剩余资金，最后保留 2 位小数
// 参数 confidence: 策略置信度
// 返回: 下注金额（USD）
func (m *Manager) PositionSize(confidence float64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.capital.IsPositive() {
		return decimal.Zero
	}

	kelly := 2*confidence - 1
	if kelly < 0 {
		kelly = 0
	}
	fractional := decimal.NewFromFloat(kelly * m.cfg.KellyFraction)

	size := m.capital.Mul(fractional)
	capPct := m.capital.Mul(decimal.NewFromFloat(m.cfg.MaxTradePct / 100))
	size = decimal.Min(size, capPct)
	size = decimal.Min(size, decimal.NewFromFloat(m.cfg.MaxTradeSizeUSD))
	size = decimal.Max(size, decimal.NewFromFloat(m.cfg.MinTradeSizeUSD))
	size = decimal.Min(size, m.capital)

	return size.Round(2)
}

// RecordTrade 记录一笔结算后的交易
// 盈利清零连亏计数但不回补资金；亏损扣减资金并累加连亏计数
// 参数 pnl: 本笔盈亏（正为盈利）
func (m *Manager) RecordTrade(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyIfNeeded()
	m.daily.trades++
	m.daily.totalPnL = m.daily.totalPnL.Add(pnl)
	m.daily.lastTradeTime = m.now()
	m.totalPnL = m.totalPnL.Add(pnl)

	if pnl.Sign() >= 0 {
		m.daily.wins++
		m.daily.consecutiveLosses = 0
	} else {
		m.daily.losses++
		m.daily.consecutiveLosses++
		m.capital = m.capital.Add(pnl)
		if m.daily.consecutiveLosses >= m.cfg.MaxConsecutiveLosses {
			m.logger.Warn("连亏达到上限，将进入冷却",
				zap.Int("consecutive_losses", m.daily.consecutiveLosses))
		}
	}

	m.logger.Info("风控记录交易",
		zap.Int("trades", m.daily.trades),
		zap.Int("wins", m.daily.wins),
		zap.Int("losses", m.daily.losses),
		zap.String("daily_pnl", m.daily.totalPnL.String()),
		zap.String("capital", m.capital.String()))
}

// Capital 获取当前资金
func (m *Manager) Capital() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capital
}

// GetStatus 获取风控状态快照
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	can, reason := m.canTradeLocked()
	return Status{
		CanTrade:          can,
		Reason:            reason,
		Capital:           m.capital,
		DailyTrades:       m.daily.trades,
		DailyPnL:          m.daily.totalPnL,
		ConsecutiveLosses: m.daily.consecutiveLosses,
		InCooldown:        m.now().Before(m.daily.cooldownUntil),
		TotalPnL:          m.totalPnL,
	}
}
