package dao

import (
	"context"
	"errors"
	"testing"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRedisDAO(t *testing.T, opts ...RedisOptions) (*RedisJobDAO, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisJobDAO(client, "test", opts...), mr
}

func TestRedisJobDAO(t *testing.T) {
	d, _ := newRedisDAO(t)
	testJobRepository(t, d)
}

func TestRedisJobDAO_Layout(t *testing.T) {
	d, mr := newRedisDAO(t)
	ctx := context.Background()
	if err := d.Save(ctx, sampleJob(7)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if ok, _ := mr.SIsMember("test:jobs", "7"); !ok {
		t.Fatalf("job id not in set")
	}
	if got := mr.HGet("test:job:7", "job_cron"); got != "*/5 * * * *" {
		t.Fatalf("unexpected job_cron %q", got)
	}
	if got := mr.HGet("test:job:7", "job_status"); got != "0" {
		t.Fatalf("unexpected job_status %q", got)
	}
}

func TestRedisJobDAO_StaleMember(t *testing.T) {
	d, mr := newRedisDAO(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		if err := d.Save(ctx, sampleJob(id)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	mr.Del("test:job:1")

	jobs, err := d.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != 2 {
		t.Fatalf("expected only job 2, got %+v", jobs)
	}
}

// 一个任务的hash被改坏，其他任务照常列出，被改坏的任务Get仍然失败
func TestRedisJobDAO_CorruptHash(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d, mr := newRedisDAO(t, WithRedisLogger(zap.New(core)))
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		if err := d.Save(ctx, sampleJob(id)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	mr.HSet("test:job:2", "job_run_lag_check", "5m")

	jobs, err := d.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].JobID != 1 || jobs[1].JobID != 3 {
		t.Fatalf("expected jobs 1 and 3, got %+v", jobs)
	}
	if logs.FilterMessage("skip corrupt job hash").Len() != 1 {
		t.Fatalf("expected a warning for job 2, got %v", logs.All())
	}

	if _, err = d.Get(ctx, 2); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedisJobDAO_BadMember(t *testing.T) {
	d, mr := newRedisDAO(t)
	ctx := context.Background()
	if err := d.Save(ctx, sampleJob(1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := mr.SAdd("test:jobs", "not-a-number"); err != nil {
		t.Fatal(err)
	}

	jobs, err := d.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != 1 {
		t.Fatalf("expected only job 1, got %+v", jobs)
	}
}

// 任务被删除后写回状态不能重新创建hash
func TestRedisJobDAO_UpdateDeletedJob(t *testing.T) {
	d, mr := newRedisDAO(t)
	ctx := context.Background()
	if err := d.Save(ctx, sampleJob(1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.Del("test:job:1")

	err := d.Update(ctx, 1, _const.JobStatusCompleted, `{}`, time.Now())
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if mr.Exists("test:job:1") {
		t.Fatalf("update recreated the deleted job hash")
	}
}

func TestRedisJobDAO_Unavailable(t *testing.T) {
	d, mr := newRedisDAO(t)
	mr.Close()

	if _, err := d.Get(context.Background(), 1); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
