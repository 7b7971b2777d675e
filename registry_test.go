package batch_scheduler

import (
	"errors"
	"testing"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
)

func TestRegistry(t *testing.T) {
	src := map[int64]RunnableFunc{
		3: staticRunnable(_const.JobStatusCompleted, nil),
		1: staticRunnable(_const.JobStatusFailed, nil),
	}
	r, err := NewRegistry(src)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	// 构建后修改源map不影响注册中心
	src[2] = staticRunnable(_const.JobStatusCompleted, nil)
	if r.Has(2) {
		t.Fatalf("registry must not share the source map")
	}

	if ids := r.IDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}

	if _, err = r.Lookup(1); err != nil {
		t.Fatalf("lookup 1: %v", err)
	}
	if _, err = r.Lookup(9); !errors.Is(err, domain.ErrRunnableNotFound) {
		t.Fatalf("expected ErrRunnableNotFound, got %v", err)
	}

	if _, err = NewRegistry(map[int64]RunnableFunc{1: nil}); err == nil {
		t.Fatalf("expected error for nil runnable")
	}
}
