// Package main 是 BTC 15 分钟 UP/DOWN 预测市场机器人的入口点。
// 机器人时钟同步于 15 分钟窗口边界（:00/:15/:30/:45 前 60 秒入场），
// 依次完成多源共识定价、多信号策略分析、风控闸门与下单执行，
// 可选启用独立套利扫描器、对冲引擎与 WebSocket 状态广播。
//
// 场所凭证经环境变量注入（POLY_PRIVATE_KEY 等），不进入 YAML 配置；
// 未配置私钥时仅允许干跑模式。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"btc-updown-bot/internal/arb"
	"btc-updown-bot/internal/bot"
	"btc-updown-bot/internal/broadcast"
	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/feed"
	"btc-updown-bot/internal/hedge"
	"btc-updown-bot/internal/oracle"
	"btc-updown-bot/internal/risk"
	"btc-updown-bot/internal/strategy"
	"btc-updown-bot/internal/telemetry"
	"btc-updown-bot/internal/venue"
)

func main() {
	var (
		configPath string
		bankroll   float64
		cycles     int
		arbFlag    bool
		arbOnly    bool
		hedgeFlag  bool
		dryRun     bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Float64Var(&bankroll, "bankroll", 0, "初始资金（USD），覆盖配置文件")
	flag.IntVar(&cycles, "cycles", 0, "最大交易周期数，0 为无限制")
	flag.BoolVar(&arbFlag, "arb", false, "启用套利扫描器")
	flag.BoolVar(&arbOnly, "arb-only", false, "仅运行套利扫描器，不做方向性交易")
	flag.BoolVar(&hedgeFlag, "hedge", false, "启用对冲引擎")
	flag.BoolVar(&dryRun, "dry-run", false, "干跑模式：不实际提交订单")
	flag.Parse()

	// .env 可选，不存在时静默跳过
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行覆盖配置文件
	if bankroll > 0 {
		cfg.Bot.BankrollUSD = bankroll
	}
	if cycles > 0 {
		cfg.Bot.MaxCycles = cycles
	}
	if arbFlag || arbOnly {
		cfg.Arb.Enabled = true
	}
	if hedgeFlag {
		cfg.Hedge.Enabled = true
	}
	if dryRun {
		cfg.Venue.DryRun = true
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM
	// 首个信号请求优雅停止（在途周期完成后退出），再次收到信号时强制中断。
	// 各运行模式在下方自行安装首个信号的处理。
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	venueClient, err := venue.New(cfg.Venue, logger)
	if err != nil {
		logger.Error("创建场所客户端失败", zap.Error(err))
		os.Exit(1)
	}

	recorder, err := telemetry.NewRecorder(cfg.Output, logger)
	if err != nil {
		logger.Error("创建遥测记录器失败", zap.Error(err))
		os.Exit(1)
	}

	var broadcaster *broadcast.Server
	if cfg.Broadcast.Enabled {
		broadcaster = broadcast.New(cfg.Broadcast, logger)
		go func() {
			if err := broadcaster.Run(ctx); err != nil {
				logger.Error("状态广播服务退出", zap.Error(err))
			}
		}()
	}

	var scanner *arb.Scanner
	if cfg.Arb.Enabled {
		scanner = arb.New(cfg.Arb, venueClient, logger)
	}

	// 纯套利模式：扫描器即主循环
	if arbOnly {
		runArbOnly(ctx, cancel, sigCh, cfg, scanner, broadcaster, logger)
		recorder.Close()
		return
	}

	// Binance 同时承担拉取源与 K 线历史源
	binanceFeed := feed.NewBinanceFeed(cfg.Oracle.BinanceBaseURL, cfg.Oracle.FetchTimeoutSecs, logger)
	feeds := []feed.Feed{
		feed.NewChainlinkFeed(cfg.Oracle.StreamURL, cfg.Oracle.StreamWaitSecs, logger),
		binanceFeed,
		feed.NewCoinGeckoFeed(cfg.Oracle.CoinGeckoBaseURL, cfg.Oracle.FetchTimeoutSecs, logger),
	}

	deps := bot.Deps{
		Oracle:    oracle.NewEngine(&cfg.Oracle, feeds, binanceFeed, logger),
		Strategy:  strategy.NewEngine(&cfg.Strategy, logger),
		Risk:      risk.NewManager(&cfg.Risk, decimal.NewFromFloat(cfg.Bot.BankrollUSD), logger),
		Venue:     venueClient,
		Hedge:     hedge.New(cfg.Hedge, logger),
		Arb:       scanner,
		Recorder:  recorder,
		Broadcast: broadcaster,
	}
	b := bot.New(cfg, deps, logger)

	go func() {
		<-sigCh
		logger.Info("收到退出信号，等待当前周期完成")
		b.Stop()
		<-sigCh
		logger.Warn("再次收到退出信号，强制中断")
		cancel()
	}()

	logger.Info("机器人启动",
		zap.Float64("bankroll_usd", cfg.Bot.BankrollUSD),
		zap.Bool("dry_run", cfg.Venue.DryRun),
		zap.Bool("arb", cfg.Arb.Enabled),
		zap.Bool("hedge", cfg.Hedge.Enabled),
		zap.Bool("broadcast", cfg.Broadcast.Enabled))

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("主循环退出", zap.Error(err))
	}

	b.Shutdown()
	recorder.Close()
	logger.Info("关闭完成", zap.Int("cycles", b.CycleCount()))
}

// runArbOnly 仅运行套利扫描器
// 扫描器作为独立协程运行，主协程周期性广播扫描状态。
// 首个退出信号让扫描器完成当前轮次后退出并等待其协程结束，
// 再次收到信号时取消 ctx 强制中断在途请求。
func runArbOnly(
	ctx context.Context,
	cancel context.CancelFunc,
	sigCh <-chan os.Signal,
	cfg *config.Config,
	scanner *arb.Scanner,
	broadcaster *broadcast.Server,
	logger *zap.Logger,
) {
	logger.Info("纯套利模式启动",
		zap.Float64("size_per_side_usd", cfg.Arb.SizePerSideUSD),
		zap.Float64("max_daily_budget_usd", cfg.Arb.MaxDailyBudgetUSD),
		zap.Float64("threshold", cfg.Arb.Threshold),
		zap.Strings("timeframes", cfg.Arb.Timeframes))

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner.Run(ctx)
	}()

	go func() {
		<-sigCh
		logger.Info("收到退出信号，等待当前扫描轮次完成")
		scanner.Stop()
		<-sigCh
		logger.Warn("再次收到退出信号，强制中断")
		cancel()
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			stats := scanner.GetStats(time.Now())
			logger.Info("套利扫描器已停止",
				zap.Int("daily_trades", stats.DailyTrades),
				zap.String("daily_profit", stats.DailyProfit.StringFixed(2)),
				zap.Int("markets_live", stats.MarketsLive))
			return
		case <-ticker.C:
			if broadcaster == nil {
				continue
			}
			stats := scanner.GetStats(time.Now())
			broadcaster.Publish(broadcast.StateSnapshot{
				Capital: decimal.NewFromFloat(cfg.Bot.BankrollUSD),
				Arb:     &stats,
			})
		}
	}
}

// newLogger 按配置级别构建生产格式日志器
func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
