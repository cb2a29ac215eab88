package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JinTanba/conditional-token-index/pkg/polynance"
)

const (
	// APIBaseURL Polynance API 服务地址（固定，不从环境变量读取）
	APIBaseURL = "http://localhost:9000"
	// PollInterval 待验证价格轮询周期
	PollInterval = 2 * time.Second
)

// ErrMissingSecrets 缺少必需的环境变量
var ErrMissingSecrets = errors.New("missing required secrets")

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config 进程配置
type Config struct {
	RPCURL     string
	PrivateKey string

	APIBaseURL   string
	PollInterval time.Duration

	// ChainID 为 0 时从 RPC 节点查询
	ChainID    int64
	StatusAddr string
	OrdersFile string

	Log LogConfig
}

// LoadDotEnv 加载 .env 文件；文件不存在不算错误
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}
	return nil
}

// LoadLogConfig 读取日志配置，不依赖密钥，日志可以先于 Load 初始化
func LoadLogConfig() LogConfig {
	return LogConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		File:       getEnv("LOG_FILE", ""),
		MaxSize:    parseIntEnv("LOG_MAX_SIZE", 100),
		MaxBackups: parseIntEnv("LOG_MAX_BACKUPS", 3),
		MaxAge:     parseIntEnv("LOG_MAX_AGE", 7),
		Compress:   parseBoolEnv("LOG_COMPRESS", true),
	}
}

// Load 从环境变量加载配置。POLYGON_RPC 和 PRIVATE_KEY 缺一不可
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:       strings.TrimSpace(os.Getenv("POLYGON_RPC")),
		PrivateKey:   strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		APIBaseURL:   APIBaseURL,
		PollInterval: PollInterval,
		StatusAddr:   getEnv("STATUS_ADDR", ""),
		OrdersFile:   getEnv("ORDERS_FILE", ""),
		Log:          LoadLogConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(os.Getenv("CHAIN_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("CHAIN_ID 无效: %q", raw)
		}
		cfg.ChainID = id
	}
	return cfg, nil
}

// Validate 验证必需的密钥
func (c *Config) Validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "POLYGON_RPC")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s is not set", ErrMissingSecrets, strings.Join(missing, " or "))
	}
	return nil
}

// Redacted 返回可以写入日志的配置摘要
func (c *Config) Redacted() string {
	chain := "auto"
	if c.ChainID > 0 {
		chain = strconv.FormatInt(c.ChainID, 10)
	}
	return fmt.Sprintf("rpc=%s api=%s poll=%s chainId=%s status=%q orders=%q",
		redactURL(c.RPCURL), c.APIBaseURL, c.PollInterval, chain, c.StatusAddr, c.OrdersFile)
}

// redactURL 只保留 scheme 和 host，RPC 地址的路径里常带 API key
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "***"
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host + "/***"
}

// ordersFile 订单文件结构
type ordersFile struct {
	Orders []polynance.ExecuteOrderParams `yaml:"orders" json:"orders"`
}

// LoadOrders 加载订单列表（支持 YAML 和 JSON）；path 为空时返回内置订单
func LoadOrders(path string) ([]polynance.ExecuteOrderParams, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultOrders(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取订单文件失败: %w", err)
	}

	var file ordersFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("解析 YAML 订单文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("解析 JSON 订单文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的订单文件格式: %s (支持 .yaml, .yml, .json)", filepath.Ext(path))
	}

	if len(file.Orders) == 0 {
		return nil, fmt.Errorf("订单文件 %s 中没有订单", path)
	}
	for i := range file.Orders {
		if err := file.Orders[i].Validate(); err != nil {
			return nil, fmt.Errorf("订单 #%d 无效: %w", i+1, err)
		}
	}
	return file.Orders, nil
}

// DefaultOrders 内置的五笔订单
func DefaultOrders() []polynance.ExecuteOrderParams {
	order := func(market, position string) polynance.ExecuteOrderParams {
		return polynance.ExecuteOrderParams{
			Provider:         "polymarket",
			MarketIDOrSlug:   market,
			PositionIDOrName: position,
			BuyOrSell:        polynance.SideSell,
			USDCFlowAbs:      6,
		}
	}
	return []polynance.ExecuteOrderParams{
		order("519068", "YES"),
		order("519066", "NO"),
		order("535793", "YES"),
		order("will-the-indiana-pacers-win-the-2025-nba-finals", "YES"),
		order("will-xai-have-the-top-ai-model-on-december-31", "NO"),
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
