package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"btc-updown-bot/internal/config"
	"btc-updown-bot/internal/core/model"
	"btc-updown-bot/internal/util/backoff"
)

// 凭证环境变量
const (
	// EnvPrivateKey 签名私钥
	EnvPrivateKey = "POLY_PRIVATE_KEY"
	// EnvFunder 资金地址（sig_type 1/2 必填）
	EnvFunder = "POLY_FUNDER"
	// EnvSigType 签名类型: 0 直签，1/2 代理签名
	EnvSigType = "POLY_SIG_TYPE"
)

// maxRetries 瞬时错误（5xx、网络）最大重试次数
const maxRetries = 3

// ErrOrderRejected 订单被场所拒绝
var ErrOrderRejected = errors.New("订单被拒绝")

// ErrSizeTooSmall 下注金额低于场所最小值（$0.50）
var ErrSizeTooSmall = errors.New("下注金额过小")

// ErrPriceOutOfBounds 执行价超出 [0.01, 0.99] 边界
var ErrPriceOutOfBounds = errors.New("执行价超出边界")

// Credentials 场所接入凭证
// 从环境变量加载，绝不进入 YAML 配置。
type Credentials struct {
	// PrivateKey 签名私钥
	PrivateKey string
	// Funder 资金地址
	Funder string
	// SigType 签名类型
	SigType int
}

// LoadCredentials 从环境变量加载凭证
// 返回: 凭证对象；sig_type 非法或 1/2 缺少 funder 时返回错误。
// 私钥为空不报错，由调用方决定是否降级为干跑。
func LoadCredentials() (*Credentials, error) {
	creds := &Credentials{
		PrivateKey: os.Getenv(EnvPrivateKey),
		Funder:     os.Getenv(EnvFunder),
	}

	sigStr := os.Getenv(EnvSigType)
	if sigStr != "" {
		sig, err := strconv.Atoi(sigStr)
		if err != nil {
			return nil, fmt.Errorf("解析 %s 失败: %w", EnvSigType, err)
		}
		if sig < 0 || sig > 2 {
			return nil, fmt.Errorf("%s 非法: %d（有效值 0/1/2）", EnvSigType, sig)
		}
		creds.SigType = sig
	}

	if creds.SigType != 0 && creds.Funder == "" {
		return nil, fmt.Errorf("sig_type=%d 需要设置 %s", creds.SigType, EnvFunder)
	}

	return creds, nil
}

// HasKey 判断是否配置了私钥
func (c *Credentials) HasKey() bool {
	return c != nil && c.PrivateKey != ""
}

// Client 交易场所客户端
// 维护活跃市场注册表和交易记录；两者均由互斥锁保护。
type Client struct {
	// cfg 场所配置
	cfg config.VenueConfig
	// creds 接入凭证（干跑模式下可为空）
	creds *Credentials
	// gamma 市场发现 REST 客户端
	gamma *resty.Client
	// clob 订单执行 REST 客户端
	clob *resty.Client
	// limiter 请求限流器
	limiter *rate.Limiter
	// logger 日志记录器
	logger *zap.Logger
	// dryRun 干跑模式
	dryRun bool

	// mu 保护以下共享状态
	mu sync.Mutex
	// markets 活跃市场注册表 conditionID -> market
	markets map[string]*model.BinaryMarket
	// trades 交易记录（只追加）
	trades []*model.TradeRecord
}

// New 创建场所客户端
// 凭证从环境变量加载；未配置私钥且非干跑模式时返回错误（唯一的致命启动错误）。
func New(cfg config.VenueConfig, logger *zap.Logger) (*Client, error) {
	creds, err := LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("加载场所凭证失败: %w", err)
	}

	dryRun := cfg.DryRun
	if !creds.HasKey() {
		if !dryRun {
			return nil, fmt.Errorf("实盘模式需要设置 %s（或开启 venue.dry_run）", EnvPrivateKey)
		}
		logger.Warn("未配置场所私钥，订单将全部模拟")
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	gamma := resty.New().
		SetBaseURL(cfg.GammaAPIURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	clob := resty.New().
		SetBaseURL(cfg.CLOBAPIURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		cfg:     cfg,
		creds:   creds,
		gamma:   gamma,
		clob:    clob,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1),
		logger:  logger.Named("venue"),
		dryRun:  dryRun,
		markets: make(map[string]*model.BinaryMarket),
	}, nil
}

// DryRun 是否处于干跑模式
func (c *Client) DryRun() bool {
	return c.dryRun
}

// getJSON 限流 + 退避重试的 GET 请求
// 仅对网络错误和 5xx 重试；4xx 立即返回错误。
func (c *Client) getJSON(ctx context.Context, client *resty.Client, path string, params map[string]string, out interface{}) error {
	bo := backoff.NewDefault()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(bo.Next()):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			lastErr = fmt.Errorf("请求 %s 失败: %w", path, err)
			continue
		}
		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("%s 返回状态 %d", path, resp.StatusCode())
			continue
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("%s 返回状态 %d", path, resp.StatusCode())
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("解析 %s 响应失败: %w", path, err)
		}
		return nil
	}

	return lastErr
}
