// Package config 配置模块测试
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigValidation_UnitRangeParams 测试 [0,1] 范围参数验证
// 属性: 置信度、权重、Kelly 分数在 [0, 1] 范围外应验证失败
func TestConfigValidation_UnitRangeParams(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 属性: 置信度阈值超出 [0,1] 应验证失败
	properties.Property("置信度阈值超出范围应验证失败", prop.ForAll(
		func(v float64) bool {
			cfg := createValidConfig()
			cfg.Strategy.ConfidenceThreshold = v
			return cfg.Validate() != nil
		},
		gen.OneGenOf(
			gen.Float64Range(-1000, -0.0001),
			gen.Float64Range(1.0001, 1000),
		),
	))

	// 属性: Kelly 分数超出 [0,1] 应验证失败
	properties.Property("Kelly分数超出范围应验证失败", prop.ForAll(
		func(v float64) bool {
			cfg := createValidConfig()
			cfg.Risk.KellyFraction = v
			return cfg.Validate() != nil
		},
		gen.OneGenOf(
			gen.Float64Range(-1000, -0.0001),
			gen.Float64Range(1.0001, 1000),
		),
	))

	// 属性: 信号权重超出 [0,1] 应验证失败
	properties.Property("信号权重超出范围应验证失败", prop.ForAll(
		func(v float64) bool {
			cfg := createValidConfig()
			cfg.Strategy.WeightMomentum = v
			return cfg.Validate() != nil
		},
		gen.Float64Range(1.0001, 1000),
	))

	// 属性: 对冲置信度在 [0,1] 内应验证通过
	properties.Property("对冲置信度在有效范围内应通过验证", prop.ForAll(
		func(v float64) bool {
			cfg := createValidConfig()
			cfg.Hedge.MinConfidence = v
			return cfg.Validate() == nil
		},
		gen.Float64Range(0.0001, 1),
	))

	properties.TestingRun(t)
}

// TestConfigValidation_RiskParams 测试风控参数验证
func TestConfigValidation_RiskParams(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 属性: 单笔占比超出 (0,100] 应验证失败
	properties.Property("单笔占比超出范围应验证失败", prop.ForAll(
		func(v float64) bool {
			cfg := createValidConfig()
			cfg.Risk.MaxTradePct = v
			return cfg.Validate() != nil
		},
		gen.OneGenOf(
			gen.Float64Range(-1000, 0),
			gen.Float64Range(100.0001, 10000),
		),
	))

	// 属性: 最小下注大于最大下注应验证失败
	properties.Property("最小下注大于最大下注应验证失败", prop.ForAll(
		func(minSize float64) bool {
			cfg := createValidConfig()
			cfg.Risk.MinTradeSizeUSD = minSize
			cfg.Risk.MaxTradeSizeUSD = minSize - 1
			return cfg.Validate() != nil
		},
		gen.Float64Range(2, 1000),
	))

	// 属性: 连亏上限非正数应验证失败
	properties.Property("连亏上限非正数应验证失败", prop.ForAll(
		func(v int) bool {
			cfg := createValidConfig()
			cfg.Risk.MaxConsecutiveLosses = v
			return cfg.Validate() != nil
		},
		gen.IntRange(-1000, 0),
	))

	properties.TestingRun(t)
}

// TestConfigValidation_ArbParams 测试套利参数验证
func TestConfigValidation_ArbParams(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 属性: 套利阈值超出 (0,1) 应验证失败
	properties.Property("套利阈值超出范围应验证失败", prop.ForAll(
		func(v float64) bool {
			cfg := createValidConfig()
			cfg.Arb.Threshold = v
			return cfg.Validate() != nil
		},
		gen.OneGenOf(
			gen.Float64Range(-1000, -0.0001),
			gen.Float64Range(1, 1000),
		),
	))

	// 属性: 每日预算小于一次双侧买入应验证失败
	properties.Property("预算不足一次双侧买入应验证失败", prop.ForAll(
		func(size float64) bool {
			cfg := createValidConfig()
			cfg.Arb.SizePerSideUSD = size
			cfg.Arb.MaxDailyBudgetUSD = size*2 - 0.01
			return cfg.Validate() != nil
		},
		gen.Float64Range(1, 1000),
	))

	// 属性: 发现间隔小于扫描周期应验证失败
	properties.Property("发现间隔小于扫描周期应验证失败", prop.ForAll(
		func(poll float64) bool {
			cfg := createValidConfig()
			cfg.Arb.PollIntervalSecs = poll
			cfg.Arb.DiscoveryIntervalSecs = poll - 0.5
			return cfg.Validate() != nil
		},
		gen.Float64Range(1, 100),
	))

	properties.TestingRun(t)
}

// TestConfigValidation_StrategyOrdering 测试策略参数顺序约束
func TestConfigValidation_StrategyOrdering(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"波动率下限不低于上限", func(c *Config) { c.Strategy.MinVolatilityPct = 3.0; c.Strategy.MaxVolatilityPct = 3.0 }},
		{"RSI超卖不低于超买", func(c *Config) { c.Strategy.RSIOversold = 70; c.Strategy.RSIOverbought = 70 }},
		{"快速EMA不小于慢速", func(c *Config) { c.Strategy.EMAFast = 15; c.Strategy.EMASlow = 15 }},
		{"MACD快线不小于慢线", func(c *Config) { c.Strategy.MACDFast = 26; c.Strategy.MACDSlow = 26 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := createValidConfig()
			tc.mutate(cfg)
			if cfg.Validate() == nil {
				t.Error("无效的策略参数顺序应返回错误")
			}
		})
	}
}

// createValidConfig 创建一个有效的配置用于测试
func createValidConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// TestLoad_ValidFile 测试从有效文件加载配置
func TestLoad_ValidFile(t *testing.T) {
	content := `
app:
  name: test-bot
  log_level: debug

oracle:
  max_price_age_secs: 30
  min_consensus: 2

strategy:
  confidence_threshold: 0.65
  momentum_lookback: 4

risk:
  max_daily_trades: 10
  kelly_fraction: 0.5

arb:
  enabled: true
  threshold: 0.97
  timeframes: ["15m", "1h"]

bot:
  bankroll_usd: 250
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("创建临时文件失败: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	// 显式值生效
	if cfg.App.Name != "test-bot" {
		t.Errorf("App.Name = %s, want test-bot", cfg.App.Name)
	}
	if cfg.Strategy.ConfidenceThreshold != 0.65 {
		t.Errorf("Strategy.ConfidenceThreshold = %f, want 0.65", cfg.Strategy.ConfidenceThreshold)
	}
	if cfg.Bot.BankrollUSD != 250 {
		t.Errorf("Bot.BankrollUSD = %f, want 250", cfg.Bot.BankrollUSD)
	}
	if len(cfg.Arb.Timeframes) != 2 {
		t.Errorf("len(Arb.Timeframes) = %d, want 2", len(cfg.Arb.Timeframes))
	}

	// 未给出的项回落到默认值
	if cfg.Oracle.StreamWaitSecs != 6 {
		t.Errorf("Oracle.StreamWaitSecs = %d, want 6", cfg.Oracle.StreamWaitSecs)
	}
	if cfg.Risk.MaxTradeSizeUSD != 25.0 {
		t.Errorf("Risk.MaxTradeSizeUSD = %f, want 25.0", cfg.Risk.MaxTradeSizeUSD)
	}
	if cfg.Arb.Threshold != 0.97 {
		t.Errorf("Arb.Threshold = %f, want 0.97", cfg.Arb.Threshold)
	}
	if cfg.Hedge.MinConfidence != 0.65 {
		t.Errorf("Hedge.MinConfidence = %f, want 0.65", cfg.Hedge.MinConfidence)
	}
}

// TestLoad_InvalidFile 测试加载无效文件
func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("加载不存在的文件应返回错误")
	}
}

// TestLoad_InvalidYAML 测试加载无效 YAML
func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(tmpFile, []byte("invalid: yaml: content:"), 0644); err != nil {
		t.Fatalf("创建临时文件失败: %v", err)
	}

	_, err := Load(tmpFile)
	if err == nil {
		t.Error("加载无效 YAML 应返回错误")
	}
}

// TestSetDefaults_EmptyConfig 测试空配置填充全部默认值
func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应通过验证: %v", err)
	}
	if cfg.Strategy.ConfidenceThreshold != 0.60 {
		t.Errorf("ConfidenceThreshold = %f, want 0.60", cfg.Strategy.ConfidenceThreshold)
	}
	if cfg.Risk.MaxDailyTrades != 20 {
		t.Errorf("MaxDailyTrades = %d, want 20", cfg.Risk.MaxDailyTrades)
	}
	if cfg.Arb.MaxDailyBudgetUSD != 200.0 {
		t.Errorf("Arb.MaxDailyBudgetUSD = %f, want 200.0", cfg.Arb.MaxDailyBudgetUSD)
	}
	if len(cfg.Arb.Timeframes) != 4 {
		t.Errorf("len(Arb.Timeframes) = %d, want 4", len(cfg.Arb.Timeframes))
	}
	if cfg.Bot.EntryLeadSecs != 60 {
		t.Errorf("Bot.EntryLeadSecs = %d, want 60", cfg.Bot.EntryLeadSecs)
	}
}
