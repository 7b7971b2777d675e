package batch_scheduler

import (
	"fmt"
	"sort"

	"github.com/TimeWtr/batch_scheduler/domain"
)

// Registry 任务ID到执行逻辑的映射，进程启动时构建一次，之后只读
type Registry struct {
	runnables map[int64]RunnableFunc
}

func NewRegistry(runnables map[int64]RunnableFunc) (*Registry, error) {
	mp := make(map[int64]RunnableFunc, len(runnables))
	for id, fn := range runnables {
		if fn == nil {
			return nil, fmt.Errorf("nil runnable for job %d", id)
		}
		mp[id] = fn
	}

	return &Registry{runnables: mp}, nil
}

// Lookup 找不到说明配置错误，返回domain.ErrRunnableNotFound
func (r *Registry) Lookup(jobID int64) (RunnableFunc, error) {
	fn, ok := r.runnables[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job_id=%d", domain.ErrRunnableNotFound, jobID)
	}
	return fn, nil
}

func (r *Registry) Has(jobID int64) bool {
	_, ok := r.runnables[jobID]
	return ok
}

// IDs 已注册的任务ID，升序
func (r *Registry) IDs() []int64 {
	ids := make([]int64, 0, len(r.runnables))
	for id := range r.runnables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
