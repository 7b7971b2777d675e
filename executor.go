package batch_scheduler

import (
	"context"

	_const "github.com/TimeWtr/batch_scheduler/const"
)

// Content 任务执行结果，写回前序列化成JSON
type Content map[string]any

// RunnableFunc 任务真正的执行逻辑
// 内部错误需要自己处理并返回JobStatusFailed，不应该panic
type RunnableFunc func(ctx context.Context) (_const.JobStatus, Content)
