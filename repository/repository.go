package repository

import (
	"context"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
)

// JobRepository 批处理任务存储，调度核心只依赖这几个方法
//
// 约定的错误：
//   - 任务不存在返回 domain.ErrJobNotFound
//   - 其他存储错误包装 domain.ErrStoreUnavailable
type JobRepository interface {
	// Get 按任务ID查询
	Get(ctx context.Context, jobID int64) (domain.JobDefinition, error)
	// ListAll 全量查询，调度器启动时调用一次
	ListAll(ctx context.Context) ([]domain.JobDefinition, error)
	// Update 写回执行状态、执行结果和更新时间，不存在的任务返回 domain.ErrJobNotFound
	Update(ctx context.Context, jobID int64, status _const.JobStatus, content string, ts time.Time) error
	// Save 新增或者覆盖任务定义，只用于初始化数据
	Save(ctx context.Context, job domain.JobDefinition) error
}
