package venue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/util/fastparse"
)

// 方向性市场筛选关键词
var (
	// btcKeywords 标的关键词
	btcKeywords = []string{"btc", "bitcoin"}
	// windowKeywords 15 分钟窗口关键词
	windowKeywords = []string{"15-min", "15 min", "15min", "15-minute"}
	// directionalKeywords 方向性市场关键词
	directionalKeywords = []string{"up or down", "above", "below", "higher", "lower"}
)

// containsAny 判断文本是否包含任一关键词
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// DiscoverMarkets 发现可交易的 BTC 15 分钟方向性市场
// 按到期时间升序拉取活跃市场，经关键词筛选（BTC 标的 + 窗口或方向词），
// 命中市场写入注册表并返回。
func (c *Client) DiscoverMarkets(ctx context.Context) ([]*model.BinaryMarket, error) {
	var raw []GammaMarket
	params := map[string]string{
		"active":    "true",
		"closed":    "false",
		"limit":     "50",
		"order":     "endDate",
		"ascending": "true",
	}
	if err := c.getJSON(ctx, c.gamma, "/markets", params, &raw); err != nil {
		return nil, fmt.Errorf("市场发现失败: %w", err)
	}

	var found []*model.BinaryMarket
	for i := range raw {
		m := &raw[i]
		text := strings.ToLower(m.Question + " " + m.Slug + " " + m.Description)
		if !containsAny(text, btcKeywords) {
			continue
		}
		if !containsAny(text, windowKeywords) && !containsAny(text, directionalKeywords) {
			continue
		}

		bm := m.ToBinaryMarket()
		if bm == nil {
			continue
		}
		found = append(found, bm)
	}

	c.mu.Lock()
	for _, bm := range found {
		if existing, ok := c.markets[bm.ConditionID]; ok {
			// 已注册市场原地刷新价格，保留结算状态
			existing.PriceUp = bm.PriceUp
			existing.PriceDown = bm.PriceDown
			existing.Liquidity = bm.Liquidity
			existing.Volume = bm.Volume
			continue
		}
		c.markets[bm.ConditionID] = bm
	}
	c.mu.Unlock()

	c.logger.Info("发现 BTC 方向性市场", zap.Int("count", len(found)))
	return found, nil
}

// ListMarkets 分页列出活跃市场（不做关键词筛选）
// 供套利扫描器按 slug 自行匹配
func (c *Client) ListMarkets(ctx context.Context, limit, offset int) ([]GammaMarket, error) {
	var raw []GammaMarket
	params := map[string]string{
		"active":    "true",
		"closed":    "false",
		"limit":     fastparse.FormatInt(int64(limit)),
		"offset":    fastparse.FormatInt(int64(offset)),
		"order":     "endDate",
		"ascending": "true",
	}
	if err := c.getJSON(ctx, c.gamma, "/markets", params, &raw); err != nil {
		return nil, fmt.Errorf("市场列表获取失败: %w", err)
	}
	return raw, nil
}

// FetchMarket 获取单个市场的最新状态
// 供套利扫描器刷新价格与流动性
func (c *Client) FetchMarket(ctx context.Context, conditionID string) (*GammaMarket, error) {
	var m GammaMarket
	if err := c.getJSON(ctx, c.gamma, "/markets/"+conditionID, nil, &m); err != nil {
		return nil, fmt.Errorf("市场 %s 刷新失败: %w", conditionID, err)
	}
	return &m, nil
}

// Market 从注册表查找市场
func (c *Client) Market(conditionID string) (*model.BinaryMarket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[conditionID]
	return m, ok
}

// Markets 注册表中所有市场的快照
func (c *Client) Markets() map[string]*model.BinaryMarket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*model.BinaryMarket, len(c.markets))
	for k, v := range c.markets {
		out[k] = v
	}
	return out
}

// RegisterMarket 手动注册市场（套利执行等外部发现路径使用）
// 已存在时不覆盖
func (c *Client) RegisterMarket(m *model.BinaryMarket) {
	if m == nil || m.ConditionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.markets[m.ConditionID]; !ok {
		c.markets[m.ConditionID] = m
	}
}

// MarkResolved 标记市场结算结果
// 结算状态只设置一次，重复调用忽略
func (c *Client) MarkResolved(conditionID string, resolution model.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[conditionID]
	if !ok || m.Resolved {
		return
	}
	m.Resolved = true
	m.Resolution = resolution
	m.Status = model.MarketResolved
	c.logger.Info("市场已结算",
		zap.String("condition_id", conditionID),
		zap.String("resolution", string(resolution)))
}
