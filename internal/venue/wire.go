// Package venue 实现交易场所协作方：市场发现、订单执行与结算观测。
// 发现走 Gamma 风格 REST API，执行走 CLOB 风格 REST API。
// 凭证经环境变量注入；无凭证时自动降级为干跑模式，订单只模拟不提交。
package venue

import (
	"time"

	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/util/fastparse"
)

// wireToken 市场单侧结果代币
type wireToken struct {
	// TokenID 代币标识
	TokenID string `json:"token_id"`
	// Price 当前价格
	Price float64 `json:"price"`
}

// GammaMarket 发现 API 返回的市场条目
// tokens[0] 为 UP/YES 侧，tokens[1] 为 DOWN/NO 侧。
// 部分字段存在新旧两套命名（liquidityClob/liquidityNum、volumeNum/volume），
// 取值时做回退；另有接口把价格和代币编码为双层 JSON 字符串，经 fastparse 解开。
type GammaMarket struct {
	// ConditionID 市场唯一标识
	ConditionID string `json:"conditionId"`
	// ID 旧版标识，ConditionID 缺失时回退
	ID string `json:"id"`
	// Question 市场标题
	Question string `json:"question"`
	// Slug 市场 slug
	Slug string `json:"slug"`
	// Description 市场描述
	Description string `json:"description"`
	// Tokens 两侧结果代币
	Tokens []wireToken `json:"tokens"`
	// ClobTokenIDs 双层编码的代币标识数组（Tokens 缺失时回退）
	ClobTokenIDs string `json:"clobTokenIds"`
	// OutcomePrices 双层编码的价格数组（Tokens 缺失时回退）
	OutcomePrices string `json:"outcomePrices"`
	// LiquidityClob 订单簿流动性（USD）
	LiquidityClob float64 `json:"liquidityClob"`
	// LiquidityNum 旧版流动性字段
	LiquidityNum float64 `json:"liquidityNum"`
	// VolumeNum 成交量（USD）
	VolumeNum float64 `json:"volumeNum"`
	// Volume 旧版成交量字段
	Volume float64 `json:"volume"`
	// CreatedAt 创建时间（RFC3339）
	CreatedAt string `json:"createdAt"`
	// EndDate 到期时间（RFC3339）
	EndDate string `json:"endDate"`
}

// Key 市场标识，ConditionID 优先
func (m *GammaMarket) Key() string {
	if m.ConditionID != "" {
		return m.ConditionID
	}
	return m.ID
}

// Liquidity 流动性，liquidityClob 优先
func (m *GammaMarket) Liquidity() float64 {
	if m.LiquidityClob > 0 {
		return m.LiquidityClob
	}
	return m.LiquidityNum
}

// VolumeUSD 成交量，volumeNum 优先
func (m *GammaMarket) VolumeUSD() float64 {
	if m.VolumeNum > 0 {
		return m.VolumeNum
	}
	return m.Volume
}

// Sides 解析两侧代币标识与价格
// 优先使用 tokens 数组；缺失时回退到双层编码的 clobTokenIds/outcomePrices。
// 返回: UP 侧代币、DOWN 侧代币、UP 侧价格、DOWN 侧价格、是否成功
func (m *GammaMarket) Sides() (upID, downID string, upPrice, downPrice float64, ok bool) {
	if len(m.Tokens) >= 2 {
		return m.Tokens[0].TokenID, m.Tokens[1].TokenID,
			m.Tokens[0].Price, m.Tokens[1].Price, true
	}

	ids, err := fastparse.ParseStringArray(m.ClobTokenIDs)
	if err != nil || len(ids) < 2 {
		return "", "", 0, 0, false
	}
	prices, err := fastparse.ParseFloatArray(m.OutcomePrices)
	if err != nil || len(prices) < 2 {
		return "", "", 0, 0, false
	}
	return ids[0], ids[1], prices[0], prices[1], true
}

// EndTime 解析到期时间，解析失败返回零值
func (m *GammaMarket) EndTime() time.Time {
	return parseWireTime(m.EndDate)
}

// ToBinaryMarket 转换为方向性交易使用的二元市场
// 无法解析两侧代币时返回 nil
func (m *GammaMarket) ToBinaryMarket() *model.BinaryMarket {
	upID, downID, upPrice, downPrice, ok := m.Sides()
	if !ok {
		return nil
	}
	return &model.BinaryMarket{
		ConditionID: m.Key(),
		Question:    m.Question,
		Slug:        m.Slug,
		TokenIDUp:   upID,
		TokenIDDown: downID,
		PriceUp:     upPrice,
		PriceDown:   downPrice,
		Volume:      m.VolumeUSD(),
		Liquidity:   m.Liquidity(),
		CreatedAt:   parseWireTime(m.CreatedAt),
		EndDate:     m.EndTime(),
		Status:      model.MarketActive,
	}
}

// parseWireTime 解析 RFC3339 时间戳，失败返回零值
func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// orderRequest CLOB 下单请求体
// 市价单（FOK）按 USD 金额成交，限价单（GTC）按价格和份数挂单
type orderRequest struct {
	// TokenID 目标代币标识
	TokenID string `json:"token_id"`
	// Side 买卖方向，恒为 BUY
	Side string `json:"side"`
	// Price 限价（仅 GTC）
	Price float64 `json:"price,omitempty"`
	// Size 买入份数（仅 GTC）
	Size float64 `json:"size,omitempty"`
	// Amount 买入金额 USD（仅 FOK）
	Amount float64 `json:"amount,omitempty"`
	// OrderType 订单类型: FOK 或 GTC
	OrderType string `json:"order_type"`
}

// orderResponse CLOB 下单响应
// takingAmount/makingAmount 均为字符串编码的数量
type orderResponse struct {
	// Success 是否受理
	Success bool `json:"success"`
	// OrderID 订单标识
	OrderID string `json:"orderID"`
	// Status 订单状态: matched, live 等
	Status string `json:"status"`
	// ErrorMsg 拒绝原因
	ErrorMsg string `json:"errorMsg"`
	// TakingAmount 实际支付数量（字符串）
	TakingAmount string `json:"takingAmount"`
	// MakingAmount 实际获得数量（字符串）
	MakingAmount string `json:"makingAmount"`
}

// FillPrice 计算实际成交价
// taking/making 均为正时取其比值，否则回退到执行价
func (r *orderResponse) FillPrice(execPrice float64) float64 {
	taking, err1 := fastparse.ParseFloat(r.TakingAmount)
	making, err2 := fastparse.ParseFloat(r.MakingAmount)
	if err1 == nil && err2 == nil && taking > 0 && making > 0 {
		return taking / making
	}
	return execPrice
}
