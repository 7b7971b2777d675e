package domain

import (
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
)

// JobDefinition 批处理任务的定义以及最近一次的执行状态
type JobDefinition struct {
	// JobID 任务唯一标识，创建后不可修改
	JobID int64
	// JobName 展示用名称
	JobName string
	// JobEnabled 关闭的任务永远不会执行
	JobEnabled bool
	// JobCron 5段式cron表达式
	JobCron string
	// JobRunLagCheck 两次执行之间的最小间隔，单位秒
	JobRunLagCheck int64
	// JobStatus 最近一次写回的状态
	JobStatus _const.JobStatus
	// JobContent 最近一次执行结果，序列化后的JSON
	JobContent string
	// LastUpdatedTs 最近一次状态写回的时间
	LastUpdatedTs time.Time
}

// LagCheck 返回Duration形式的执行间隔
func (j JobDefinition) LagCheck() time.Duration {
	return time.Duration(j.JobRunLagCheck) * time.Second
}
