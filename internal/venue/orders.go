package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/util/fastparse"
	"btc-updown-bot/internal/util/timeutil"
)

// 下单约束
const (
	// minOrderUSD 场所最小下注金额
	minOrderUSD = 0.50
	// minExecPrice 执行价下界
	minExecPrice = 0.01
	// maxExecPrice 执行价上界
	maxExecPrice = 0.99
)

// OrderParams 下单参数
type OrderParams struct {
	// Direction 交易方向: up 或 down
	Direction model.Direction
	// SizeUSD 下注金额（USD）
	SizeUSD decimal.Decimal
	// LimitPrice 限价；为 0 时按市价 FOK 执行
	LimitPrice float64
	// OraclePrice 下单时的预言机共识价（0 表示无）
	OraclePrice float64
	// Confidence 策略置信度
	Confidence float64
}

// PlaceOrder 对市场的一侧下买单
// 干跑模式按执行价模拟成交；实盘模式提交到 CLOB 并按响应计算成交价。
// 成功生成的交易记录追加到内部列表（交易记录只在此处追加）。
func (c *Client) PlaceOrder(ctx context.Context, market *model.BinaryMarket, p OrderParams) (*model.TradeRecord, error) {
	if p.Direction != model.DirectionUp && p.Direction != model.DirectionDown {
		return nil, fmt.Errorf("非法交易方向: %s", p.Direction)
	}

	sizeUSD, _ := p.SizeUSD.Float64()
	if sizeUSD < minOrderUSD {
		return nil, fmt.Errorf("%w: $%.2f < $%.2f", ErrSizeTooSmall, sizeUSD, minOrderUSD)
	}

	tokenID := market.TokenIDUp
	marketPrice := market.PriceUp
	dirTag := "U"
	if p.Direction == model.DirectionDown {
		tokenID = market.TokenIDDown
		marketPrice = market.PriceDown
		dirTag = "D"
	}

	execPrice := marketPrice
	if p.LimitPrice > 0 {
		execPrice = p.LimitPrice
	}
	if live, err := c.clobPrice(ctx, tokenID); err == nil && live > 0 {
		execPrice = live
	}

	if execPrice < minExecPrice || execPrice > maxExecPrice {
		return nil, fmt.Errorf("%w: %.4f", ErrPriceOutOfBounds, execPrice)
	}

	tradeID := fmt.Sprintf("T-%d-%s", timeutil.NowMs(), dirTag)

	// 份数按执行价折算，保留 2 位小数，至少 1 份
	shares := math.Round(sizeUSD/execPrice*100) / 100
	if shares < 1 {
		shares = 1.0
	}

	record := &model.TradeRecord{
		TradeID:            tradeID,
		Timestamp:          time.Now(),
		MarketConditionID:  market.ConditionID,
		Direction:          p.Direction,
		Confidence:         p.Confidence,
		EntryPrice:         execPrice,
		SizeUSD:            p.SizeUSD,
		OraclePriceAtEntry: p.OraclePrice,
	}

	if c.dryRun {
		record.OrderID = "DRY-" + tradeID
		c.logger.Info("模拟下单",
			zap.String("trade_id", tradeID),
			zap.String("direction", string(p.Direction)),
			zap.String("size_usd", p.SizeUSD.StringFixed(2)),
			zap.Float64("price", execPrice))
	} else {
		resp, err := c.submitOrder(ctx, tokenID, execPrice, shares, sizeUSD, p.LimitPrice > 0)
		if err != nil {
			return nil, err
		}
		record.EntryPrice = resp.FillPrice(execPrice)
		record.OrderID = resp.OrderID
		if record.OrderID == "" {
			record.OrderID = tradeID
		}
		c.logger.Info("下单成功",
			zap.String("trade_id", tradeID),
			zap.String("order_id", record.OrderID),
			zap.String("direction", string(p.Direction)),
			zap.String("size_usd", p.SizeUSD.StringFixed(2)),
			zap.Float64("fill_price", record.EntryPrice))
	}

	c.mu.Lock()
	c.trades = append(c.trades, record)
	c.mu.Unlock()

	return record, nil
}

// clobPrice 查询 CLOB 当前买入价
// 干跑或无凭证时跳过，直接返回错误让调用方回退到发现价
func (c *Client) clobPrice(ctx context.Context, tokenID string) (float64, error) {
	if c.dryRun || !c.creds.HasKey() {
		return 0, fmt.Errorf("无 CLOB 接入")
	}

	var out struct {
		// Price 字符串编码的价格
		Price string `json:"price"`
	}
	params := map[string]string{"token_id": tokenID, "side": "BUY"}
	if err := c.getJSON(ctx, c.clob, "/price", params, &out); err != nil {
		return 0, err
	}
	return fastparse.ParseFloat(out.Price)
}

// submitOrder 提交订单到 CLOB
// 限价单走 GTC，市价单走 FOK
func (c *Client) submitOrder(ctx context.Context, tokenID string, price, shares, sizeUSD float64, limit bool) (*orderResponse, error) {
	req := orderRequest{
		TokenID:   tokenID,
		Side:      "BUY",
		OrderType: "FOK",
		Amount:    sizeUSD,
	}
	if limit {
		req.OrderType = "GTC"
		req.Price = price
		req.Size = shares
		req.Amount = 0
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.clob.R().
		SetContext(ctx).
		SetBody(req).
		Post("/order")
	if err != nil {
		return nil, fmt.Errorf("提交订单失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: 状态 %d", ErrOrderRejected, resp.StatusCode())
	}

	var out orderResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("解析订单响应失败: %w", err)
	}

	if !out.Success && out.Status != "matched" && out.Status != "live" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrOrderRejected, out.ErrorMsg, out.Status)
	}
	return &out, nil
}

// CheckResolutions 对照注册表结算开放交易
// 每条记录的结算结果恰好设置一次；返回本次新结算的记录。
// 胜: pnl = size/entry − size；负: pnl = −size。
func (c *Client) CheckResolutions() []*model.TradeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resolved []*model.TradeRecord
	for _, r := range c.trades {
		if !r.IsOpen() {
			continue
		}
		m, ok := c.markets[r.MarketConditionID]
		if !ok || !m.Resolved || m.Resolution == model.DirectionHold || m.Resolution == "" {
			continue
		}

		if r.Direction == m.Resolution {
			r.Outcome = model.OutcomeWin
			entry := decimal.NewFromFloat(r.EntryPrice)
			r.PnL = r.SizeUSD.Div(entry).Sub(r.SizeUSD).Round(2)
		} else {
			r.Outcome = model.OutcomeLoss
			r.PnL = r.SizeUSD.Neg()
		}
		resolved = append(resolved, r)

		c.logger.Info("交易结算",
			zap.String("trade_id", r.TradeID),
			zap.String("outcome", r.Outcome),
			zap.String("pnl", r.PnL.StringFixed(2)))
	}
	return resolved
}

// Stats 交易统计快照
type Stats struct {
	// TotalTrades 总交易笔数
	TotalTrades int `json:"total_trades"`
	// Completed 已结算笔数
	Completed int `json:"completed"`
	// Pending 未结算笔数
	Pending int `json:"pending"`
	// Wins 获胜笔数
	Wins int `json:"wins"`
	// Losses 失败笔数
	Losses int `json:"losses"`
	// WinRate 胜率（百分比）
	WinRate float64 `json:"win_rate"`
	// TotalPnL 已结算累计盈亏（USD）
	TotalPnL decimal.Decimal `json:"total_pnl"`
}

// GetStats 计算交易统计
func (c *Client) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{TotalTrades: len(c.trades)}
	for _, r := range c.trades {
		if r.IsOpen() {
			s.Pending++
			continue
		}
		s.Completed++
		if r.Outcome == model.OutcomeWin {
			s.Wins++
		} else {
			s.Losses++
		}
		s.TotalPnL = s.TotalPnL.Add(r.PnL)
	}
	if s.Completed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Completed) * 100
	}
	return s
}

// TradeRecords 交易记录快照
func (c *Client) TradeRecords() []*model.TradeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.TradeRecord, len(c.trades))
	copy(out, c.trades)
	return out
}

// OpenTrades 未结算交易快照
func (c *Client) OpenTrades() []*model.TradeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.TradeRecord
	for _, r := range c.trades {
		if r.IsOpen() {
			out = append(out, r)
		}
	}
	return out
}
