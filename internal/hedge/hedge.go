// Package hedge 实现开放仓位的对冲引擎。
// 当策略方向相对某笔开放交易发生翻转且置信度达标时，
// 买入相反侧，把敞口转为确定结果（锁定利润或有界亏损）。
package hedge

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
)

// Engine 对冲引擎
// 已对冲交易集合由互斥锁保护，每笔交易至多对冲一次。
type Engine struct {
	// cfg 对冲配置
	cfg config.HedgeConfig
	// logger 日志记录器
	logger *zap.Logger

	// mu 保护 hedged
	mu sync.Mutex
	// hedged 已对冲的交易标识集合
	hedged map[string]bool
}

// New 创建对冲引擎
func New(cfg config.HedgeConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("hedge"),
		hedged: make(map[string]bool),
	}
}

// Check 检查开放仓位是否需要对冲
// 触发条件: 策略方向与开放交易方向相反、置信度 ≥ 配置下限、
// 交易未结算且未对冲、市场在注册表中。
// 锁定结果 = (1 − (原成交价 + 对冲价)) × 下注金额。
func (e *Engine) Check(
	openTrades []*model.TradeRecord,
	direction model.Direction,
	confidence float64,
	markets map[string]*model.BinaryMarket,
) []model.HedgeAction {
	if !e.cfg.Enabled {
		return nil
	}
	if direction != model.DirectionUp && direction != model.DirectionDown {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var actions []model.HedgeAction
	for _, trade := range openTrades {
		if !trade.IsOpen() {
			continue
		}
		if e.hedged[trade.TradeID] {
			continue
		}
		if trade.Direction == direction {
			continue
		}
		if confidence < e.cfg.MinConfidence {
			continue
		}
		market, ok := markets[trade.MarketConditionID]
		if !ok {
			continue
		}

		hedgeDir := trade.Direction.Opposite()
		hedgePrice := market.PriceDown
		if hedgeDir == model.DirectionUp {
			hedgePrice = market.PriceUp
		}

		// 双侧持仓后必有一侧以 $1 结算:
		// 锁定结果 = (1 − 总成本) × 金额，总成本 = 原成交价 + 对冲价
		totalCost := decimal.NewFromFloat(trade.EntryPrice).
			Add(decimal.NewFromFloat(hedgePrice))
		locked := decimal.NewFromInt(1).Sub(totalCost).Mul(trade.SizeUSD).Round(2)

		actions = append(actions, model.HedgeAction{
			OriginalTradeID:   trade.TradeID,
			OriginalDirection: trade.Direction,
			HedgeDirection:    hedgeDir,
			OriginalEntry:     trade.EntryPrice,
			HedgePrice:        hedgePrice,
			LockedProfit:      locked,
			SizeUSD:           trade.SizeUSD,
		})

		if locked.IsPositive() {
			e.logger.Info("对冲锁定利润",
				zap.String("trade_id", trade.TradeID),
				zap.String("original", string(trade.Direction)),
				zap.Float64("entry", trade.EntryPrice),
				zap.Float64("hedge_price", hedgePrice),
				zap.String("locked", locked.StringFixed(2)))
		} else {
			e.logger.Info("对冲限制亏损",
				zap.String("trade_id", trade.TradeID),
				zap.String("original", string(trade.Direction)),
				zap.Float64("entry", trade.EntryPrice),
				zap.Float64("hedge_price", hedgePrice),
				zap.String("max_loss", locked.StringFixed(2)),
				zap.String("unhedged_loss", trade.SizeUSD.Neg().StringFixed(2)))
		}
	}
	return actions
}

// MarkHedged 标记交易已对冲，防止重复对冲
func (e *Engine) MarkHedged(tradeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hedged[tradeID] = true
}

// IsHedged 判断交易是否已对冲
func (e *Engine) IsHedged(tradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hedged[tradeID]
}
