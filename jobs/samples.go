// Package jobs 内置的示例批处理任务
package jobs

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/TimeWtr/batch_scheduler"
	_const "github.com/TimeWtr/batch_scheduler/const"
)

const (
	ReportJobID    int64 = 1
	ReconcileJobID int64 = 2
	ArchiveJobID   int64 = 3
)

// Durations 每个示例任务的模拟执行时长
type Durations struct {
	Report    time.Duration
	Reconcile time.Duration
	Archive   time.Duration
}

func DefaultDurations() Durations {
	return Durations{
		Report:    20 * time.Second,
		Reconcile: 30 * time.Second,
		Archive:   40 * time.Second,
	}
}

// NewRegistry 示例任务的注册中心
func NewRegistry(d Durations) (*batch_scheduler.Registry, error) {
	return batch_scheduler.NewRegistry(map[int64]batch_scheduler.RunnableFunc{
		ReportJobID:    countingJob(d.Report, 10, 100, 20, 40, _const.JobStatusCompleted),
		ReconcileJobID: countingJob(d.Reconcile, 100, 400, 1, 10, _const.JobStatusFailed),
		ArchiveJobID:   countingJob(d.Archive, 1000, 5000, 100, 120, _const.JobStatusCompleted),
	})
}

// countingJob 模拟一次批处理，返回成功数、失败数和耗时，ctx取消时提前结束。
// 计数以字符串写入job_content，和已有看板读取的格式保持一致
func countingJob(work time.Duration, okMin, okMax, failMin, failMax int,
	status _const.JobStatus) batch_scheduler.RunnableFunc {
	return func(ctx context.Context) (_const.JobStatus, batch_scheduler.Content) {
		start := time.Now().Truncate(time.Second)
		timer := time.NewTimer(work)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
		}

		end := time.Now().Truncate(time.Second)
		return status, batch_scheduler.Content{
			"success_count":  strconv.Itoa(between(okMin, okMax)),
			"failure_count":  strconv.Itoa(between(failMin, failMax)),
			"execution_time": end.Sub(start).String(),
		}
	}
}

func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}
