package batch_scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"go.uber.org/zap/zaptest"
)

// memStore 内存版JobRepository，记录写入次数
type memStore struct {
	mu        sync.Mutex
	jobs      map[int64]domain.JobDefinition
	gets      int
	updates   int
	getErr    error
	listErr   error
	updateErr error
	// getErrAfter 第n次Get之后开始返回getErr，0表示一直返回
	getErrAfter int
}

func newMemStore(jobs ...domain.JobDefinition) *memStore {
	m := &memStore{jobs: make(map[int64]domain.JobDefinition, len(jobs))}
	for _, j := range jobs {
		m.jobs[j.JobID] = j
	}
	return m
}

func (m *memStore) Get(_ context.Context, jobID int64) (domain.JobDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil && m.gets > m.getErrAfter {
		return domain.JobDefinition{}, m.getErr
	}
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.JobDefinition{}, fmt.Errorf("%w: job_id=%d", domain.ErrJobNotFound, jobID)
	}
	return j, nil
}

func (m *memStore) ListAll(_ context.Context) ([]domain.JobDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	res := make([]domain.JobDefinition, 0, len(m.jobs))
	for _, j := range m.jobs {
		res = append(res, j)
	}
	sort.Slice(res, func(i, k int) bool { return res[i].JobID < res[k].JobID })
	return res, nil
}

func (m *memStore) Update(_ context.Context, jobID int64, status _const.JobStatus, content string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: job_id=%d", domain.ErrJobNotFound, jobID)
	}
	m.updates++
	j.JobStatus = status
	j.JobContent = content
	j.LastUpdatedTs = ts
	m.jobs[jobID] = j
	return nil
}

func (m *memStore) Save(_ context.Context, job domain.JobDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
	return nil
}

func (m *memStore) job(jobID int64) domain.JobDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[jobID]
}

func (m *memStore) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func testLogger(t *testing.T) Logger {
	return NewZapLogger(zaptest.NewLogger(t))
}

// noPause 测试中不做真实等待，但仍然走3轮
func noPause() ScheduleStrategy {
	return NewFixedScheduleStrategy(0, _const.DefaultPauseRounds)
}

func newTestChecker(t *testing.T, store *memStore, now time.Time) *PreliminaryChecker {
	return NewPreliminaryChecker(store, testLogger(t),
		WithPauseStrategy(noPause),
		WithClock(func() time.Time { return now }),
		WithNodeName("test-node"))
}

func enabledJob(id int64, lastUpdated time.Time, lag int64) domain.JobDefinition {
	return domain.JobDefinition{
		JobID:          id,
		JobName:        fmt.Sprintf("job-%d", id),
		JobEnabled:     true,
		JobCron:        "*/5 * * * *",
		JobRunLagCheck: lag,
		JobStatus:      _const.JobStatusCompleted,
		LastUpdatedTs:  lastUpdated,
	}
}
