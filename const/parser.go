package _const

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Parser 定时时间解析器，只接受标准5段式cron表达式，@daily/@every这类描述符不支持
var Parser = cron.NewParser(cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow)

const (
	// DefaultLimiter 单节点同时执行的Job数量上限
	DefaultLimiter int64 = 64

	// 预检查阶段的随机等待：3轮，每轮5~20秒
	DefaultPauseRounds = 3
	DefaultPauseMin    = 5 * time.Second
	DefaultPauseMax    = 20 * time.Second
)
