package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	TWSE struct {
		ListURL             string  `yaml:"list_url"`
		ProductURLTmpl      string  `yaml:"product_url_tmpl"`
		TimeoutSeconds      float64 `yaml:"timeout_seconds"`
		VerifySSL           bool    `yaml:"verify_ssl"`
		Debug               bool    `yaml:"debug"`
		Retries             int     `yaml:"retries"`
		RetryBackoffSeconds float64 `yaml:"retry_backoff_seconds"`
		RateLimitSeconds    float64 `yaml:"rate_limit_seconds"`
		UserAgent           string  `yaml:"user_agent"`
		SnippetPath         string  `yaml:"snippet_path"`
	} `yaml:"twse"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		SSLMode  string `yaml:"sslmode"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"database"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	API struct {
		Port string `yaml:"port"`
	} `yaml:"api"`

	Scan struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"scan"`
}

// LoadConfig 从文件加载配置，环境变量优先级高于文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	overrideFromEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

// Default 无配置文件时的纯环境变量配置
func Default() *Config {
	var config Config
	overrideFromEnv(&config)
	applyDefaults(&config)
	return &config
}

// Timeout 请求超时
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TWSE.TimeoutSeconds * float64(time.Second))
}

// RetryBackoff 重试退避基数
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.TWSE.RetryBackoffSeconds * float64(time.Second))
}

// RateLimitDelay 逐笔请求之间的间隔
func (c *Config) RateLimitDelay() time.Duration {
	return time.Duration(c.TWSE.RateLimitSeconds * float64(time.Second))
}

// applyDefaults 填充缺省值
func applyDefaults(config *Config) {
	if config.App.Name == "" {
		config.App.Name = "etf-engine"
	}
	if config.TWSE.TimeoutSeconds <= 0 {
		config.TWSE.TimeoutSeconds = 10
	}
	if config.TWSE.Retries < 1 {
		config.TWSE.Retries = 3
	}
	if config.TWSE.RetryBackoffSeconds <= 0 {
		config.TWSE.RetryBackoffSeconds = 1.2
	}
	if config.TWSE.RateLimitSeconds < 0 {
		config.TWSE.RateLimitSeconds = 60
	}
	if config.Database.Host == "" {
		config.Database.Host = "localhost"
	}
	if config.Database.Port == 0 {
		config.Database.Port = 5432
	}
	if config.Database.User == "" {
		config.Database.User = "postgres"
	}
	if config.Database.DBName == "" {
		config.Database.DBName = "twa_etf_engine"
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "disable"
	}
	if config.Database.PoolSize < 1 {
		config.Database.PoolSize = 5
	}
	if config.API.Port == "" {
		config.API.Port = "8080"
	}
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// TWSE数据源配置
	if env := os.Getenv("TWSE_LIST_URL"); env != "" {
		config.TWSE.ListURL = env
	}
	if env := os.Getenv("TWSE_PRODUCT_URL_TMPL"); env != "" {
		config.TWSE.ProductURLTmpl = env
	}
	if v, ok := envFloat("TWSE_TIMEOUT"); ok {
		config.TWSE.TimeoutSeconds = v
	}
	if v, ok := envBool("TWSE_VERIFY_SSL"); ok {
		config.TWSE.VerifySSL = v
	}
	if v, ok := envBool("TWSE_DEBUG"); ok {
		config.TWSE.Debug = v
	}
	if v, ok := envInt("TWSE_RETRIES"); ok && v >= 1 {
		config.TWSE.Retries = v
	}
	if v, ok := envFloat("TWSE_RETRY_BACKOFF"); ok && v > 0 {
		config.TWSE.RetryBackoffSeconds = v
	}
	if v, ok := envFloat("TWSE_RATE_LIMIT_DELAY"); ok && v >= 0 {
		config.TWSE.RateLimitSeconds = v
	}
	if env := os.Getenv("TWSE_USER_AGENT"); env != "" {
		config.TWSE.UserAgent = env
	}

	// 数据库配置
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Host = env
	}
	if v, ok := envInt("DB_PORT"); ok && v > 0 {
		config.Database.Port = v
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.DBName = env
	}
	if env := os.Getenv("DB_SSLMODE"); env != "" {
		config.Database.SSLMode = env
	}
	if v, ok := envInt("DB_POOL_SIZE"); ok && v > 0 {
		config.Database.PoolSize = v
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}

	// 扫描调度配置
	if env := os.Getenv("SCAN_SCHEDULE"); env != "" {
		config.Scan.Schedule = env
	}
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(key string) (float64, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(key string) (bool, bool) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("configs/%s/app.yaml", env)
}
