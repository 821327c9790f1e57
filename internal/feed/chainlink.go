// Chainlink BTC/USD 价格经 RTDS WebSocket 推送。
// 每次读数建立一条短连接：订阅 crypto_prices_chainlink 主题，
// 收到首条 btc/usd 推送后立即断开。市场按此价格结算，故为权威源。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"btc-updown-bot/internal/core/model"
)

// chainlinkTopic RTDS 订阅主题
const chainlinkTopic = "crypto_prices_chainlink"

// chainlinkSymbol 订阅过滤的交易对
const chainlinkSymbol = "btc/usd"

// ChainlinkFeed Chainlink 流式价格源
type ChainlinkFeed struct {
	// url RTDS WebSocket 地址
	url string
	// waitTimeout 等待首条推送的上限
	waitTimeout time.Duration
	// logger 日志记录器
	logger *zap.Logger
}

// NewChainlinkFeed 创建 Chainlink 价格源
// 参数 url: RTDS WebSocket 地址
// 参数 waitSecs: 等待首条推送的上限（秒）
// 参数 logger: 日志记录器
func NewChainlinkFeed(url string, waitSecs int, logger *zap.Logger) *ChainlinkFeed {
	return &ChainlinkFeed{
		url:         url,
		waitTimeout: time.Duration(waitSecs) * time.Second,
		logger:      logger.Named("chainlink"),
	}
}

// Name 源名称
func (f *ChainlinkFeed) Name() string {
	return model.SourceChainlink
}

// subscribeRequest RTDS 订阅请求
type subscribeRequest struct {
	// Action 固定为 subscribe
	Action string `json:"action"`
	// Subscriptions 订阅列表
	Subscriptions []subscription `json:"subscriptions"`
}

// subscription 单个订阅项
type subscription struct {
	// Topic 订阅主题
	Topic string `json:"topic"`
	// Type 消息类型过滤，* 表示全部
	Type string `json:"type"`
	// Filters 主题内过滤条件（JSON 字符串）
	Filters string `json:"filters"`
}

// rtdsMessage RTDS 推送消息
type rtdsMessage struct {
	// Topic 消息所属主题
	Topic string `json:"topic"`
	// Payload 消息负载
	Payload rtdsPayload `json:"payload"`
}

// rtdsPayload 价格推送负载
type rtdsPayload struct {
	// Symbol 交易对，如 btc/usd
	Symbol string `json:"symbol"`
	// Value 价格
	Value float64 `json:"value"`
	// Timestamp 推送时间戳（毫秒）
	Timestamp int64 `json:"timestamp"`
}

// Fetch 获取一次 Chainlink 价格
// 建立短连接，订阅后等待首条 btc/usd 推送，超时或连接关闭均视为失败
func (f *ChainlinkFeed) Fetch(ctx context.Context) (*model.PriceReading, error) {
	header := http.Header{}
	header.Set("User-Agent", "btc-updown-bot/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 8 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return nil, fmt.Errorf("连接 RTDS 失败: %w", err)
	}
	defer conn.Close()

	req := subscribeRequest{
		Action: "subscribe",
		Subscriptions: []subscription{{
			Topic:   chainlinkTopic,
			Type:    "*",
			Filters: fmt.Sprintf(`{"symbol":%q}`, chainlinkSymbol),
		}},
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("发送 RTDS 订阅请求失败: %w", err)
	}

	deadline := time.Now().Add(f.waitTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	// 等待首条匹配推送，期间可能收到订阅确认等无关消息
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("读取 RTDS 消息失败: %w", err)
		}

		var msg rtdsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Debug("忽略无法解析的 RTDS 消息", zap.Error(err))
			continue
		}
		if msg.Topic != chainlinkTopic || msg.Payload.Symbol != chainlinkSymbol {
			continue
		}
		if msg.Payload.Value <= 0 {
			continue
		}

		ts := time.Now()
		if msg.Payload.Timestamp > 0 {
			ts = time.UnixMilli(msg.Payload.Timestamp)
		}

		f.logger.Info("Chainlink BTC/USD 读数",
			zap.Float64("price", msg.Payload.Value))

		return &model.PriceReading{
			Source:    model.SourceChainlink,
			Price:     msg.Payload.Value,
			Timestamp: ts,
		}, nil
	}

	return nil, fmt.Errorf("等待 Chainlink 推送超时（%s 内未收到价格）", f.waitTimeout)
}
