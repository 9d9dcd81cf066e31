// 配置加载：config.env + 环境变量
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// 默认值
const (
	DefaultDatabase    = "data/feedback.db"
	DefaultHTTPAddr    = ":8080"
	DefaultLogFile     = "app.log"
	DefaultLogLevel    = "info"
	DefaultCacheTTL    = 24 * time.Hour
	DefaultEnvFile     = "config.env"
	DefaultPositiveMin = 4
	DefaultNegativeMax = 2
	DefaultNeutral     = 3
)

type Config struct {
	// LLM；Model/BaseURL/LLMTimeout 为空时使用生成器默认值
	APIKey     string        `env:"OPENROUTER_API_KEY"`
	Model      string        `env:"LLM_MODEL"`
	BaseURL    string        `env:"LLM_BASE_URL" validate:"omitempty,url"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" validate:"gte=0"`

	// 存储
	Database string `env:"FEEDBACK_DB" validate:"required"`

	// Redis 缓存，Addr 为空时禁用
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" validate:"gte=0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" validate:"gte=0"`

	HTTPAddr string `env:"HTTP_ADDR" validate:"required"`
	LogFile  string `env:"LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=trace debug info warning warn error fatal panic"`

	// 情感分桶阈值
	PositiveThreshold int     `env:"POSITIVE_THRESHOLD" validate:"min=1,max=5"`
	NegativeThreshold int     `env:"NEGATIVE_THRESHOLD" validate:"min=1,max=5,ltfield=PositiveThreshold"`
	NeutralRating     float64 `env:"NEUTRAL_RATING" validate:"gte=1,lte=5"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息中使用环境变量名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

// Load reads the env file (if present) and then the process environment.
// A missing env file is not an error; malformed numeric values are.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "加载配置文件 %s 失败", envFile)
		}
	}

	cfg := &Config{
		APIKey:        strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		Model:         getEnv("LLM_MODEL", ""),
		BaseURL:       getEnv("LLM_BASE_URL", ""),
		Database:      getEnv("FEEDBACK_DB", DefaultDatabase),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		HTTPAddr:      getEnv("HTTP_ADDR", DefaultHTTPAddr),
		LogFile:       getEnv("LOG_FILE", DefaultLogFile),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
	}

	var err error
	if cfg.LLMTimeout, err = getDuration("LLM_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.PositiveThreshold, err = getInt("POSITIVE_THRESHOLD", DefaultPositiveMin); err != nil {
		return nil, err
	}
	if cfg.NegativeThreshold, err = getInt("NEGATIVE_THRESHOLD", DefaultNegativeMax); err != nil {
		return nil, err
	}
	if cfg.NeutralRating, err = getFloat("NEUTRAL_RATING", DefaultNeutral); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(describe(err), "配置校验失败")
	}
	return cfg, nil
}

// describe flattens validator errors into "KEY failed tag=param" pairs.
func describe(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
