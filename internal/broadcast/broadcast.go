// Package broadcast 实现机器人状态的对外广播。
// 提供 /ws WebSocket 推送与 /state JSON 快照两个端点，
// 每个交易周期或扫描轮次构建一次带版本号的状态快照推给全部客户端。
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"btc-updown-bot/internal/arb"
	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/risk"
	"btc-updown-bot/internal/venue"
)

// SnapshotVersion 快照格式版本
// 字段结构变更时递增，消费端按版本兼容。
const SnapshotVersion = 1

// writeWait 单条推送的写超时
const writeWait = 5 * time.Second

// OracleView 快照中的预言机状态
type OracleView struct {
	// Price 最近共识价
	Price float64 `json:"price"`
	// Confidence 读数置信度
	Confidence float64 `json:"confidence"`
	// Sources 参与源数量
	Sources int `json:"sources"`
	// SpreadPct 源间发散度（百分比）
	SpreadPct float64 `json:"spread_pct"`
}

// DecisionView 快照中的最近策略决策
type DecisionView struct {
	// Direction 决策方向
	Direction model.Direction `json:"direction"`
	// Confidence 决策置信度
	Confidence float64 `json:"confidence"`
	// Reason 决策依据
	Reason string `json:"reason"`
	// At 决策时间
	At time.Time `json:"at"`
}

// WindowView 快照中的窗口时钟状态
type WindowView struct {
	// Boundary 下一个 15 分钟边界
	Boundary time.Time `json:"boundary"`
	// RemainingSecs 距边界剩余（秒）
	RemainingSecs float64 `json:"remaining_secs"`
	// AnchorPrice 当前窗口锚点价（无锚点为 0）
	AnchorPrice float64 `json:"anchor_price,omitempty"`
}

// StateSnapshot 对外广播的状态快照
type StateSnapshot struct {
	// Version 快照格式版本
	Version int `json:"version"`
	// GeneratedAt 生成时间
	GeneratedAt time.Time `json:"generated_at"`
	// Capital 当前资金（USD）
	Capital decimal.Decimal `json:"capital"`
	// Oracle 预言机状态
	Oracle OracleView `json:"oracle"`
	// Window 窗口时钟状态
	Window WindowView `json:"window"`
	// Decision 最近策略决策（本周期尚无决策时省略）
	Decision *DecisionView `json:"decision,omitempty"`
	// Risk 风控状态
	Risk risk.Status `json:"risk"`
	// Trading 方向性交易统计
	Trading venue.Stats `json:"trading"`
	// Arb 套利扫描器状态（未启用时省略）
	Arb *arb.Stats `json:"arb,omitempty"`
}

// Server 状态广播服务
// 客户端集合与最近快照由互斥锁保护
type Server struct {
	// cfg 广播配置
	cfg config.BroadcastConfig
	// logger 日志记录器
	logger *zap.Logger
	// upgrader WebSocket 升级器
	upgrader websocket.Upgrader
	// srv HTTP 服务
	srv *http.Server

	// mu 保护 clients 与 latest
	mu sync.Mutex
	// clients 已连接的客户端
	clients map[*websocket.Conn]bool
	// latest 最近一次快照
	latest *StateSnapshot
}

// New 创建广播服务
func New(cfg config.BroadcastConfig, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.Named("broadcast"),
		upgrader: websocket.Upgrader{
			// 看板跨域访问
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/state", s.handleState)
	s.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Run 启动广播服务并阻塞到 ctx 取消
// ctx 取消后优雅关闭：断开全部客户端并停止监听。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("广播服务启动", zap.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("广播服务停止")
	return nil
}

// Publish 发布新快照
// 保存为最近快照并推送给全部客户端；写失败的客户端直接移除。
func (s *Server) Publish(snap StateSnapshot) {
	snap.Version = SnapshotVersion
	snap.GeneratedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("快照编码失败", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &snap

	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// ClientCount 当前连接的客户端数量
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handleWS 升级连接并登记客户端
// 补发最近快照后才登记进客户端集合：登记后对该连接的写入
// 全部来自持锁的 Publish，满足 gorilla 的单写者约束。
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}

	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest != nil {
		data, err := json.Marshal(latest)
		if err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		}
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	s.logger.Debug("客户端接入", zap.String("remote", conn.RemoteAddr().String()))

	// 读循环只用于感知断开，入站消息丢弃
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleState 返回最近快照的 JSON
// 尚无快照时返回 204
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		s.logger.Warn("快照响应编码失败", zap.Error(err))
	}
}
