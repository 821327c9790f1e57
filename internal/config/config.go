// Package config 负责加载和验证 YAML 配置文件。
// 提供机器人所需的所有配置项，包括预言机、策略参数、风控、套利扫描、场所接入等。
// 场所凭证不放在 YAML 中，而是经环境变量（.env）注入。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Oracle 价格共识预言机配置
	Oracle OracleConfig `yaml:"oracle"`
	// Strategy 策略参数配置
	Strategy StrategyConfig `yaml:"strategy"`
	// Risk 风控与仓位配置
	Risk RiskConfig `yaml:"risk"`
	// Arb 套利扫描器配置
	Arb ArbConfig `yaml:"arb"`
	// Hedge 对冲配置
	Hedge HedgeConfig `yaml:"hedge"`
	// Venue 交易场所接入配置
	Venue VenueConfig `yaml:"venue"`
	// Bot 主循环与时钟同步配置
	Bot BotConfig `yaml:"bot"`
	// Output 遥测输出配置
	Output OutputConfig `yaml:"output"`
	// Broadcast 状态广播配置
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// OracleConfig 价格共识预言机配置
type OracleConfig struct {
	// StreamURL 权威源流式推送地址（Chainlink 价格经 RTDS WebSocket 推送）
	StreamURL string `yaml:"stream_url"`
	// BinanceBaseURL Binance REST API 基地址（拉取源 + K 线）
	BinanceBaseURL string `yaml:"binance_base_url"`
	// CoinGeckoBaseURL CoinGecko REST API 基地址（拉取源）
	CoinGeckoBaseURL string `yaml:"coingecko_base_url"`
	// MaxPriceAgeSecs 读数最大允许年龄（秒），超过即视为过期
	MaxPriceAgeSecs int `yaml:"max_price_age_secs"`
	// CacheMaxAgeSecs 缓存读数回退时的宽松年龄上限（秒）
	CacheMaxAgeSecs int `yaml:"cache_max_age_secs"`
	// MinConsensus 共识所需的最少有效源数量，不足时回退缓存
	MinConsensus int `yaml:"min_consensus"`
	// StreamWaitSecs 流式源一次握手内等待首条推送的上限（秒）
	StreamWaitSecs int `yaml:"stream_wait_secs"`
	// FetchTimeoutSecs 单个拉取源的请求超时（秒）
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs"`
	// MaxDivergencePct 源间发散度告警阈值（百分比），超过后置信度按比例衰减
	MaxDivergencePct float64 `yaml:"max_divergence_pct"`
	// HistoryCandleCount 每次获取的历史 K 线数量
	HistoryCandleCount int `yaml:"history_candle_count"`
	// CandleInterval K 线周期，如 15m
	CandleInterval string `yaml:"candle_interval"`
}

// StrategyConfig 策略参数配置
type StrategyConfig struct {
	// ConfidenceThreshold 触发交易所需的最低置信度
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// RSIPeriod RSI 周期
	RSIPeriod int `yaml:"rsi_period"`
	// RSIOverbought RSI 超买阈值
	RSIOverbought float64 `yaml:"rsi_overbought"`
	// RSIOversold RSI 超卖阈值
	RSIOversold float64 `yaml:"rsi_oversold"`
	// EMAFast 快速 EMA 周期
	EMAFast int `yaml:"ema_fast"`
	// EMASlow 慢速 EMA 周期
	EMASlow int `yaml:"ema_slow"`
	// MACDFast MACD 快线周期
	MACDFast int `yaml:"macd_fast"`
	// MACDSlow MACD 慢线周期
	MACDSlow int `yaml:"macd_slow"`
	// MACDSignal MACD 信号线周期
	MACDSignal int `yaml:"macd_signal"`
	// MomentumLookback 动量信号回看的 K 线根数
	MomentumLookback int `yaml:"momentum_lookback"`
	// MinVolatilityPct 波动率下限（百分比），低于视为过于平静，强制观望
	MinVolatilityPct float64 `yaml:"min_volatility_pct"`
	// MaxVolatilityPct 波动率上限（百分比），高于视为过于混乱，强制观望
	MaxVolatilityPct float64 `yaml:"max_volatility_pct"`
	// EstFeePct 估算交易成本（百分比），方向性边际低于此值不交易
	EstFeePct float64 `yaml:"est_fee_pct"`
	// WeightMomentum 动量信号权重
	WeightMomentum float64 `yaml:"weight_momentum"`
	// WeightRSI RSI 信号权重
	WeightRSI float64 `yaml:"weight_rsi"`
	// WeightMACD MACD 信号权重
	WeightMACD float64 `yaml:"weight_macd"`
	// WeightEMACross EMA 交叉信号权重
	WeightEMACross float64 `yaml:"weight_ema_cross"`
}

// RiskConfig 风控与仓位配置
type RiskConfig struct {
	// MaxTradePct 单笔交易占资金的最大百分比
	MaxTradePct float64 `yaml:"max_trade_pct"`
	// MaxDailyTrades 每日交易笔数上限
	MaxDailyTrades int `yaml:"max_daily_trades"`
	// MaxDailyLossPct 每日累计亏损占资金的上限（百分比）
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"`
	// MaxConsecutiveLosses 连续亏损上限，达到后进入冷却
	MaxConsecutiveLosses int `yaml:"max_consecutive_losses"`
	// LossStreakCooldownMins 连亏冷却时长（分钟）
	LossStreakCooldownMins int `yaml:"loss_streak_cooldown_mins"`
	// KellyFraction Kelly 分数（0-1），按此比例缩放理论最优仓位
	KellyFraction float64 `yaml:"kelly_fraction"`
	// MinTradeSizeUSD 单笔最小下注金额（USD）
	MinTradeSizeUSD float64 `yaml:"min_trade_size_usd"`
	// MaxTradeSizeUSD 单笔最大下注金额（USD）
	MaxTradeSizeUSD float64 `yaml:"max_trade_size_usd"`
}

// ArbConfig 套利扫描器配置
type ArbConfig struct {
	// Enabled 是否启用套利扫描器
	Enabled bool `yaml:"enabled"`
	// PollIntervalSecs 扫描周期（秒）
	PollIntervalSecs float64 `yaml:"poll_interval_secs"`
	// Threshold 双侧价格之和低于此值才视为套利机会
	Threshold float64 `yaml:"threshold"`
	// MinEdgePct 最小边际（百分比），低于此值的微小机会跳过
	MinEdgePct float64 `yaml:"min_edge_pct"`
	// SizePerSideUSD 每侧买入金额（USD）
	SizePerSideUSD float64 `yaml:"size_per_side_usd"`
	// MaxDailyTrades 每日套利次数上限
	MaxDailyTrades int `yaml:"max_daily_trades"`
	// MaxDailyBudgetUSD 每日投入资金上限（USD）
	MaxDailyBudgetUSD float64 `yaml:"max_daily_budget_usd"`
	// MinLiquidityUSD 最小流动性过滤（USD，0 表示不过滤）
	MinLiquidityUSD float64 `yaml:"min_liquidity_usd"`
	// CooldownSecs 同一市场两次捕获尝试之间的冷却（秒）
	CooldownSecs float64 `yaml:"cooldown_secs"`
	// DiscoveryIntervalSecs 市场发现节流间隔（秒），应大于扫描周期
	DiscoveryIntervalSecs float64 `yaml:"discovery_interval_secs"`
	// PageSize 发现分页大小
	PageSize int `yaml:"page_size"`
	// MaxPages 发现最大翻页数
	MaxPages int `yaml:"max_pages"`
	// Timeframes 纳入扫描的市场周期列表
	Timeframes []string `yaml:"timeframes"`
}

// HedgeConfig 对冲配置
type HedgeConfig struct {
	// Enabled 是否启用对冲
	Enabled bool `yaml:"enabled"`
	// MinConfidence 触发对冲所需的反向信号最低置信度
	MinConfidence float64 `yaml:"min_confidence"`
}

// VenueConfig 交易场所接入配置
// 私钥等凭证经环境变量注入（POLY_PRIVATE_KEY / POLY_FUNDER），不在此处。
type VenueConfig struct {
	// GammaAPIURL 市场发现 API 基地址
	GammaAPIURL string `yaml:"gamma_api_url"`
	// CLOBAPIURL 订单执行 API 基地址
	CLOBAPIURL string `yaml:"clob_api_url"`
	// TimeoutSecs HTTP 请求超时（秒）
	TimeoutSecs int `yaml:"timeout_secs"`
	// RateLimitPerSec 每秒请求数上限
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	// MinLiquidityUSD 方向性交易的最小市场流动性（USD）
	MinLiquidityUSD float64 `yaml:"min_liquidity_usd"`
	// DryRun 干跑模式：不实际提交订单，只记录动作
	DryRun bool `yaml:"dry_run"`
}

// BotConfig 主循环与时钟同步配置
type BotConfig struct {
	// BankrollUSD 初始资金（USD）
	BankrollUSD float64 `yaml:"bankroll_usd"`
	// EntryLeadSecs 入场提前量：边界前多少秒触发交易周期
	EntryLeadSecs int `yaml:"entry_lead_secs"`
	// EntryWindowSecs 入场窗口宽度（秒），边界前 lead±window 内有效
	EntryWindowSecs int `yaml:"entry_window_secs"`
	// SleepPollSecs 主循环轮询间隔（秒）
	SleepPollSecs int `yaml:"sleep_poll_secs"`
	// MaxCycles 最大交易周期数，0 表示无限制
	MaxCycles int `yaml:"max_cycles"`
}

// OutputConfig 遥测输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// OracleEnabled 是否输出预言机读数事件
	OracleEnabled bool `yaml:"oracle_enabled"`
	// StrategyEnabled 是否输出策略决策事件
	StrategyEnabled bool `yaml:"strategy_enabled"`
	// TradesEnabled 是否输出交易/结算/套利事件
	TradesEnabled bool `yaml:"trades_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// BroadcastConfig 状态广播配置
type BroadcastConfig struct {
	// Enabled 是否启用 WebSocket 状态广播
	Enabled bool `yaml:"enabled"`
	// Addr 监听地址，如 :8765
	Addr string `yaml:"addr"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "btc-updown-bot"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	// 预言机默认值
	if c.Oracle.StreamURL == "" {
		c.Oracle.StreamURL = "wss://ws-live-data.polymarket.com"
	}
	if c.Oracle.BinanceBaseURL == "" {
		c.Oracle.BinanceBaseURL = "https://api.binance.com/api/v3"
	}
	if c.Oracle.CoinGeckoBaseURL == "" {
		c.Oracle.CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Oracle.MaxPriceAgeSecs == 0 {
		c.Oracle.MaxPriceAgeSecs = 30
	}
	if c.Oracle.CacheMaxAgeSecs == 0 {
		c.Oracle.CacheMaxAgeSecs = 60
	}
	if c.Oracle.MinConsensus == 0 {
		c.Oracle.MinConsensus = 2
	}
	if c.Oracle.StreamWaitSecs == 0 {
		c.Oracle.StreamWaitSecs = 6
	}
	if c.Oracle.FetchTimeoutSecs == 0 {
		c.Oracle.FetchTimeoutSecs = 10
	}
	if c.Oracle.MaxDivergencePct == 0 {
		c.Oracle.MaxDivergencePct = 1.0
	}
	if c.Oracle.HistoryCandleCount == 0 {
		c.Oracle.HistoryCandleCount = 100
	}
	if c.Oracle.CandleInterval == "" {
		c.Oracle.CandleInterval = "15m"
	}

	// 策略默认值
	if c.Strategy.ConfidenceThreshold == 0 {
		c.Strategy.ConfidenceThreshold = 0.60
	}
	if c.Strategy.RSIPeriod == 0 {
		c.Strategy.RSIPeriod = 14
	}
	if c.Strategy.RSIOverbought == 0 {
		c.Strategy.RSIOverbought = 70.0
	}
	if c.Strategy.RSIOversold == 0 {
		c.Strategy.RSIOversold = 30.0
	}
	if c.Strategy.EMAFast == 0 {
		c.Strategy.EMAFast = 5
	}
	if c.Strategy.EMASlow == 0 {
		c.Strategy.EMASlow = 15
	}
	if c.Strategy.MACDFast == 0 {
		c.Strategy.MACDFast = 12
	}
	if c.Strategy.MACDSlow == 0 {
		c.Strategy.MACDSlow = 26
	}
	if c.Strategy.MACDSignal == 0 {
		c.Strategy.MACDSignal = 9
	}
	if c.Strategy.MomentumLookback == 0 {
		c.Strategy.MomentumLookback = 3
	}
	if c.Strategy.MinVolatilityPct == 0 {
		c.Strategy.MinVolatilityPct = 0.05
	}
	if c.Strategy.MaxVolatilityPct == 0 {
		c.Strategy.MaxVolatilityPct = 3.0
	}
	if c.Strategy.EstFeePct == 0 {
		c.Strategy.EstFeePct = 1.5
	}
	if c.Strategy.WeightMomentum == 0 {
		c.Strategy.WeightMomentum = 0.30
	}
	if c.Strategy.WeightRSI == 0 {
		c.Strategy.WeightRSI = 0.25
	}
	if c.Strategy.WeightMACD == 0 {
		c.Strategy.WeightMACD = 0.25
	}
	if c.Strategy.WeightEMACross == 0 {
		c.Strategy.WeightEMACross = 0.20
	}

	// 风控默认值
	if c.Risk.MaxTradePct == 0 {
		c.Risk.MaxTradePct = 5.0
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 20
	}
	if c.Risk.MaxDailyLossPct == 0 {
		c.Risk.MaxDailyLossPct = 15.0
	}
	if c.Risk.MaxConsecutiveLosses == 0 {
		c.Risk.MaxConsecutiveLosses = 5
	}
	if c.Risk.LossStreakCooldownMins == 0 {
		c.Risk.LossStreakCooldownMins = 60
	}
	if c.Risk.KellyFraction == 0 {
		c.Risk.KellyFraction = 0.25
	}
	if c.Risk.MinTradeSizeUSD == 0 {
		c.Risk.MinTradeSizeUSD = 1.0
	}
	if c.Risk.MaxTradeSizeUSD == 0 {
		c.Risk.MaxTradeSizeUSD = 25.0
	}

	// 套利默认值
	if c.Arb.PollIntervalSecs == 0 {
		c.Arb.PollIntervalSecs = 8.0
	}
	if c.Arb.Threshold == 0 {
		c.Arb.Threshold = 0.98
	}
	if c.Arb.MinEdgePct == 0 {
		c.Arb.MinEdgePct = 1.0
	}
	if c.Arb.SizePerSideUSD == 0 {
		c.Arb.SizePerSideUSD = 10.0
	}
	if c.Arb.MaxDailyTrades == 0 {
		c.Arb.MaxDailyTrades = 50
	}
	if c.Arb.MaxDailyBudgetUSD == 0 {
		c.Arb.MaxDailyBudgetUSD = 200.0
	}
	if c.Arb.CooldownSecs == 0 {
		c.Arb.CooldownSecs = 120.0
	}
	if c.Arb.DiscoveryIntervalSecs == 0 {
		c.Arb.DiscoveryIntervalSecs = 45.0
	}
	if c.Arb.PageSize == 0 {
		c.Arb.PageSize = 200
	}
	if c.Arb.MaxPages == 0 {
		c.Arb.MaxPages = 5
	}
	if len(c.Arb.Timeframes) == 0 {
		c.Arb.Timeframes = []string{"5m", "15m", "30m", "1h"}
	}

	// 对冲默认值
	if c.Hedge.MinConfidence == 0 {
		c.Hedge.MinConfidence = 0.65
	}

	// 场所默认值
	if c.Venue.GammaAPIURL == "" {
		c.Venue.GammaAPIURL = "https://gamma-api.polymarket.com"
	}
	if c.Venue.CLOBAPIURL == "" {
		c.Venue.CLOBAPIURL = "https://clob.polymarket.com"
	}
	if c.Venue.TimeoutSecs == 0 {
		c.Venue.TimeoutSecs = 15
	}
	if c.Venue.RateLimitPerSec == 0 {
		c.Venue.RateLimitPerSec = 10
	}
	if c.Venue.MinLiquidityUSD == 0 {
		c.Venue.MinLiquidityUSD = 50.0
	}

	// 主循环默认值
	if c.Bot.BankrollUSD == 0 {
		c.Bot.BankrollUSD = 500.0
	}
	if c.Bot.EntryLeadSecs == 0 {
		c.Bot.EntryLeadSecs = 60
	}
	if c.Bot.EntryWindowSecs == 0 {
		c.Bot.EntryWindowSecs = 30
	}
	if c.Bot.SleepPollSecs == 0 {
		c.Bot.SleepPollSecs = 5
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./logs"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}

	// 广播默认值
	if c.Broadcast.Addr == "" {
		c.Broadcast.Addr = ":8765"
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证预言机配置
	if c.Oracle.StreamURL == "" {
		errs = append(errs, "oracle.stream_url: 流式源地址不能为空")
	}
	if c.Oracle.BinanceBaseURL == "" {
		errs = append(errs, "oracle.binance_base_url: Binance API 地址不能为空")
	}
	if c.Oracle.MaxPriceAgeSecs <= 0 {
		errs = append(errs, "oracle.max_price_age_secs: 最大读数年龄必须为正数")
	}
	if c.Oracle.CacheMaxAgeSecs < c.Oracle.MaxPriceAgeSecs {
		errs = append(errs, "oracle.cache_max_age_secs: 缓存年龄上限不能小于读数年龄上限")
	}
	if c.Oracle.MinConsensus <= 0 {
		errs = append(errs, "oracle.min_consensus: 最少共识源数量必须为正数")
	}

	// 验证策略参数（置信度与权重均在 0-1）
	if err := validateUnitRange(c.Strategy.ConfidenceThreshold, "strategy.confidence_threshold"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateUnitRange(c.Strategy.WeightMomentum, "strategy.weight_momentum"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateUnitRange(c.Strategy.WeightRSI, "strategy.weight_rsi"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateUnitRange(c.Strategy.WeightMACD, "strategy.weight_macd"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateUnitRange(c.Strategy.WeightEMACross, "strategy.weight_ema_cross"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Strategy.MinVolatilityPct >= c.Strategy.MaxVolatilityPct {
		errs = append(errs, "strategy.min_volatility_pct: 波动率下限必须小于上限")
	}
	if c.Strategy.RSIOversold >= c.Strategy.RSIOverbought {
		errs = append(errs, "strategy.rsi_oversold: 超卖阈值必须小于超买阈值")
	}
	if c.Strategy.EMAFast >= c.Strategy.EMASlow {
		errs = append(errs, "strategy.ema_fast: 快速 EMA 周期必须小于慢速周期")
	}
	if c.Strategy.MACDFast >= c.Strategy.MACDSlow {
		errs = append(errs, "strategy.macd_fast: MACD 快线周期必须小于慢线周期")
	}

	// 验证风控参数
	if err := validateUnitRange(c.Risk.KellyFraction, "risk.kelly_fraction"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Risk.MaxTradePct <= 0 || c.Risk.MaxTradePct > 100 {
		errs = append(errs, fmt.Sprintf("risk.max_trade_pct: 必须在 0-100 之间，当前值: %f", c.Risk.MaxTradePct))
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 100 {
		errs = append(errs, fmt.Sprintf("risk.max_daily_loss_pct: 必须在 0-100 之间，当前值: %f", c.Risk.MaxDailyLossPct))
	}
	if c.Risk.MinTradeSizeUSD > c.Risk.MaxTradeSizeUSD {
		errs = append(errs, "risk.min_trade_size_usd: 最小下注不能大于最大下注")
	}
	if c.Risk.MaxConsecutiveLosses <= 0 {
		errs = append(errs, "risk.max_consecutive_losses: 连亏上限必须为正数")
	}

	// 验证套利参数
	if c.Arb.Threshold <= 0 || c.Arb.Threshold >= 1 {
		errs = append(errs, fmt.Sprintf("arb.threshold: 阈值必须在 (0,1) 之间，当前值: %f", c.Arb.Threshold))
	}
	if c.Arb.MinEdgePct < 0 {
		errs = append(errs, "arb.min_edge_pct: 最小边际不能为负数")
	}
	if c.Arb.SizePerSideUSD <= 0 {
		errs = append(errs, "arb.size_per_side_usd: 每侧金额必须为正数")
	}
	if c.Arb.MaxDailyBudgetUSD < c.Arb.SizePerSideUSD*2 {
		errs = append(errs, "arb.max_daily_budget_usd: 每日预算至少容纳一次双侧买入")
	}
	if c.Arb.CooldownSecs < 0 {
		errs = append(errs, "arb.cooldown_secs: 冷却时间不能为负数")
	}
	if c.Arb.DiscoveryIntervalSecs < c.Arb.PollIntervalSecs {
		errs = append(errs, "arb.discovery_interval_secs: 发现间隔不能小于扫描周期")
	}
	for i, tf := range c.Arb.Timeframes {
		if tf == "" {
			errs = append(errs, fmt.Sprintf("arb.timeframes[%d]: 周期不能为空", i))
		}
	}

	// 验证对冲参数
	if err := validateUnitRange(c.Hedge.MinConfidence, "hedge.min_confidence"); err != nil {
		errs = append(errs, err.Error())
	}

	// 验证场所配置
	if c.Venue.GammaAPIURL == "" {
		errs = append(errs, "venue.gamma_api_url: 市场发现 API 地址不能为空")
	}
	if c.Venue.CLOBAPIURL == "" {
		errs = append(errs, "venue.clob_api_url: 订单执行 API 地址不能为空")
	}

	// 验证主循环参数
	if c.Bot.BankrollUSD <= 0 {
		errs = append(errs, "bot.bankroll_usd: 初始资金必须为正数")
	}
	if c.Bot.EntryLeadSecs <= 0 {
		errs = append(errs, "bot.entry_lead_secs: 入场提前量必须为正数")
	}
	if c.Bot.EntryWindowSecs <= 0 {
		errs = append(errs, "bot.entry_window_secs: 入场窗口必须为正数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateUnitRange 验证取值在 [0,1] 的参数
// 参数 v: 参数值
// 参数 field: 字段名称，用于错误消息
// 返回: 若参数无效则返回错误
func validateUnitRange(v float64, field string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s: 取值必须在 0-1 之间，当前值: %f", field, v)
	}
	return nil
}
