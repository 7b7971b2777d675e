package batch_scheduler

import (
	"sync"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/robfig/cron/v3"
)

// ScheduleCache 缓存解析后的cron表达式，相同表达式的Job共用一个Schedule
type ScheduleCache struct {
	mp map[string]cron.Schedule
	mu *sync.RWMutex
}

func NewScheduleCache(size int) *ScheduleCache {
	return &ScheduleCache{
		mp: make(map[string]cron.Schedule, size),
		mu: &sync.RWMutex{},
	}
}

// Parse 先查缓存，没有再解析，解析失败的表达式不缓存
func (c *ScheduleCache) Parse(expr string) (cron.Schedule, error) {
	c.mu.RLock()
	sched, ok := c.mp[expr]
	c.mu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := _const.Parser.Parse(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mp[expr] = sched
	return sched, nil
}

func (c *ScheduleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mp)
}
