package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/repository/dao"
	"github.com/spf13/pflag"
)

const (
	DriverRedis = "redis"
)

// Config batchd的全部配置，优先级：命令行参数 > 环境变量 > 默认值
type Config struct {
	// StoreDriver postgres / sqlite / redis
	StoreDriver string
	// StoreDSN postgres或者sqlite的连接串
	StoreDSN string
	// RedisAddr redis地址，StoreDriver为redis时使用
	RedisAddr string
	// RedisPrefix redis key前缀
	RedisPrefix string
	// HTTPAddr 状态查询接口的监听地址，为空时不启动
	HTTPAddr string
	// LogLevel debug / info / warn / error
	LogLevel string
	// LogDev 开发模式日志格式
	LogDev bool
	// Limiter 单节点并发执行的Job数量
	Limiter int64
	// Timezone cron表达式使用的时区
	Timezone string
	// MarkRunning 执行前先写RUNNING状态
	MarkRunning bool
	// NodeName 节点名称，默认hostname
	NodeName string
	// ShutdownTimeout HTTP服务关闭的等待时间
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		StoreDriver:     dao.DriverSqlite,
		StoreDSN:        "batch_jobs.db",
		RedisAddr:       "localhost:6379",
		RedisPrefix:     "batch_scheduler",
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		Limiter:         _const.DefaultLimiter,
		Timezone:        "Local",
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadEnv 用环境变量覆盖默认值
func (c *Config) LoadEnv() error {
	str := map[string]*string{
		"BATCH_STORE_DRIVER": &c.StoreDriver,
		"BATCH_STORE_DSN":    &c.StoreDSN,
		"BATCH_REDIS_ADDR":   &c.RedisAddr,
		"BATCH_REDIS_PREFIX": &c.RedisPrefix,
		"BATCH_HTTP_ADDR":    &c.HTTPAddr,
		"BATCH_LOG_LEVEL":    &c.LogLevel,
		"BATCH_TIMEZONE":     &c.Timezone,
		"BATCH_NODE_NAME":    &c.NodeName,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("BATCH_LIMITER"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("BATCH_LIMITER: %w", err)
		}
		c.Limiter = n
	}
	if v, ok := os.LookupEnv("BATCH_MARK_RUNNING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BATCH_MARK_RUNNING: %w", err)
		}
		c.MarkRunning = b
	}
	return nil
}

// BindFlags 注册命令行参数，默认值取当前配置
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.StoreDriver, "store", c.StoreDriver, "job store driver: postgres, sqlite or redis")
	fs.StringVar(&c.StoreDSN, "dsn", c.StoreDSN, "postgres/sqlite data source name")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", c.RedisPrefix, "redis key prefix")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.LogDev, "log-dev", c.LogDev, "use development log encoder")
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case dao.DriverPostgres, dao.DriverSqlite, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.Limiter < 1 {
		return fmt.Errorf("limiter must be positive, got %d", c.Limiter)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}
