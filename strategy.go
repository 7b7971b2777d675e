package batch_scheduler

import (
	"errors"
	"math/rand/v2"
	"time"
)

var ErrOverMaxCount = errors.New("over max count")

// ScheduleStrategy 预检查阶段的等待策略，每次调用Next返回下一轮的等待时间，
// 轮次用完返回ErrOverMaxCount
type ScheduleStrategy interface {
	Next() (time.Duration, error)
}

// StrategyFactory 每次预检查都需要一个新的策略实例，计数不能共享
type StrategyFactory func() ScheduleStrategy

type FixedScheduleStrategy struct {
	// 固定时间间隔
	interval time.Duration
	// 最大次数
	maxCount int
	// 当前已经等待的次数
	counter int
}

func NewFixedScheduleStrategy(interval time.Duration, maxCount int) *FixedScheduleStrategy {
	return &FixedScheduleStrategy{
		interval: interval,
		maxCount: maxCount,
	}
}

func (s *FixedScheduleStrategy) Next() (time.Duration, error) {
	if s.counter >= s.maxCount {
		return 0, ErrOverMaxCount
	}
	s.counter++
	return s.interval, nil
}

// RandomScheduleStrategy 每轮在[min, max]内均匀随机取一个等待时间
type RandomScheduleStrategy struct {
	min      time.Duration
	max      time.Duration
	maxCount int
	counter  int
}

func NewRandomScheduleStrategy(min, max time.Duration, maxCount int) *RandomScheduleStrategy {
	if max < min {
		min, max = max, min
	}
	return &RandomScheduleStrategy{
		min:      min,
		max:      max,
		maxCount: maxCount,
	}
}

func (s *RandomScheduleStrategy) Next() (time.Duration, error) {
	if s.counter >= s.maxCount {
		return 0, ErrOverMaxCount
	}
	s.counter++
	return s.min + time.Duration(rand.Int64N(int64(s.max-s.min)+1)), nil
}
