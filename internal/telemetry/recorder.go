package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"btc-updown-bot/internal/config"
)

// 输出文件名
const (
	oracleFile      = "oracle.jsonl"
	strategyFile    = "strategy.jsonl"
	tradesFile      = "trades.jsonl"
	performanceFile = "performance.json"
)

// Recorder 遥测记录器
// 按事件类型路由到三条 JSONL 流；结算、风控、套利、对冲事件
// 与下单事件共用 trades 流。关闭的流丢弃对应事件。
type Recorder struct {
	// cfg 输出配置
	cfg config.OutputConfig
	// logger 日志记录器
	logger *zap.Logger
	// oracle 预言机事件流（未启用为 nil）
	oracle *Writer
	// strategy 策略事件流（未启用为 nil）
	strategy *Writer
	// trades 交易事件流（未启用为 nil）
	trades *Writer
	// now 时钟，便于测试注入
	now func() time.Time
}

// NewRecorder 创建遥测记录器
// 按配置开关创建各事件流
func NewRecorder(cfg config.OutputConfig, logger *zap.Logger) (*Recorder, error) {
	r := &Recorder{
		cfg:    cfg,
		logger: logger.Named("telemetry"),
		now:    time.Now,
	}

	var err error
	if cfg.OracleEnabled {
		r.oracle, err = NewWriter(filepath.Join(cfg.Dir, oracleFile), cfg.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("创建预言机事件流失败: %w", err)
		}
	}
	if cfg.StrategyEnabled {
		r.strategy, err = NewWriter(filepath.Join(cfg.Dir, strategyFile), cfg.BufferSize)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("创建策略事件流失败: %w", err)
		}
	}
	if cfg.TradesEnabled {
		r.trades, err = NewWriter(filepath.Join(cfg.Dir, tradesFile), cfg.BufferSize)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("创建交易事件流失败: %w", err)
		}
	}
	return r, nil
}

// emit 投递事件，流未启用时丢弃
func (r *Recorder) emit(w *Writer, v any) {
	if w == nil {
		return
	}
	if err := w.Write(v); err != nil {
		r.logger.Warn("遥测事件写入失败", zap.Error(err))
	}
}

// RecordOracle 记录一次共识读数
func (r *Recorder) RecordOracle(ev OracleEvent) {
	ev.Envelope = stamp(EventOracle, r.now())
	r.emit(r.oracle, ev)
}

// RecordStrategy 记录一次策略决策
func (r *Recorder) RecordStrategy(ev StrategyEvent) {
	ev.Envelope = stamp(EventStrategy, r.now())
	r.emit(r.strategy, ev)
}

// RecordTrade 记录一次下单
func (r *Recorder) RecordTrade(ev TradeEvent) {
	ev.Envelope = stamp(EventTrade, r.now())
	r.emit(r.trades, ev)
}

// RecordResolution 记录一次结算
func (r *Recorder) RecordResolution(ev ResolutionEvent) {
	ev.Envelope = stamp(EventResolution, r.now())
	r.emit(r.trades, ev)
}

// RecordRisk 记录一次风控拦截
func (r *Recorder) RecordRisk(ev RiskEvent) {
	ev.Envelope = stamp(EventRisk, r.now())
	r.emit(r.trades, ev)
}

// RecordArb 记录一次套利捕获尝试
func (r *Recorder) RecordArb(ev ArbEvent) {
	ev.Envelope = stamp(EventArb, r.now())
	r.emit(r.trades, ev)
}

// RecordHedge 记录一次对冲
func (r *Recorder) RecordHedge(ev HedgeEvent) {
	ev.Envelope = stamp(EventHedge, r.now())
	r.emit(r.trades, ev)
}

// SavePerformance 覆盖写入绩效快照
// 先写临时文件再原子改名，避免看板读到半截文件
func (r *Recorder) SavePerformance(snap PerformanceSnapshot) error {
	snap.SavedAt = r.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("编码绩效快照失败: %w", err)
	}

	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	path := filepath.Join(r.cfg.Dir, performanceFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入绩效快照失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("替换绩效快照失败: %w", err)
	}
	return nil
}

// Flush 刷新所有事件流
func (r *Recorder) Flush() {
	for _, w := range []*Writer{r.oracle, r.strategy, r.trades} {
		if w != nil {
			if err := w.Flush(); err != nil {
				r.logger.Warn("遥测流刷新失败", zap.Error(err))
			}
		}
	}
}

// Close 关闭所有事件流（会先 flush）
// 各流的丢弃事件数在关闭时汇报一次。
func (r *Recorder) Close() {
	names := []string{oracleFile, strategyFile, tradesFile}
	for i, w := range []*Writer{r.oracle, r.strategy, r.trades} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			r.logger.Warn("遥测流关闭失败", zap.Error(err))
		}
		if n := w.Dropped(); n > 0 {
			r.logger.Warn("遥测流存在丢弃事件",
				zap.String("stream", names[i]),
				zap.Int64("dropped", n))
		}
	}
}
