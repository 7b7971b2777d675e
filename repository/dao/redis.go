package dao

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ repository.JobRepository = (*RedisJobDAO)(nil)

const defaultRedisPrefix = "batch_scheduler"

// RedisJobDAO 每个任务存一个hash，所有任务ID存一个set
//
//	{prefix}:jobs       set  job_id
//	{prefix}:job:{id}   hash job_name job_enabled job_cron ...
type RedisJobDAO struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

type RedisOptions func(r *RedisJobDAO)

// WithRedisLogger ListAll跳过无法解析的任务时记录告警
func WithRedisLogger(logger *zap.Logger) RedisOptions {
	return func(r *RedisJobDAO) {
		r.logger = logger
	}
}

func NewRedisJobDAO(client redis.UniversalClient, prefix string, opts ...RedisOptions) *RedisJobDAO {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	r := &RedisJobDAO{client: client, prefix: prefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// updateScript 存在才写，避免任务被删除后Update重新创建出只有状态字段的hash
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'job_status', ARGV[1], 'job_content', ARGV[2], 'last_updated_ts', ARGV[3])
return 1
`)

func (r *RedisJobDAO) idsKey() string {
	return r.prefix + ":jobs"
}

func (r *RedisJobDAO) jobKey(jobID int64) string {
	return fmt.Sprintf("%s:job:%d", r.prefix, jobID)
}

func (r *RedisJobDAO) Get(ctx context.Context, jobID int64) (domain.JobDefinition, error) {
	fields, err := r.client.HGetAll(ctx, r.jobKey(jobID)).Result()
	if err != nil {
		return domain.JobDefinition{}, fmt.Errorf("%w: get job %d: %v", domain.ErrStoreUnavailable, jobID, err)
	}

	if len(fields) == 0 {
		return domain.JobDefinition{}, fmt.Errorf("%w: job_id=%d", domain.ErrJobNotFound, jobID)
	}

	return decodeJobHash(jobID, fields)
}

func (r *RedisJobDAO) ListAll(ctx context.Context) ([]domain.JobDefinition, error) {
	members, err := r.client.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrStoreUnavailable, err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			r.logger.Warn("skip bad job id",
				zap.String("key", r.idsKey()),
				zap.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, r.jobKey(id)))
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrStoreUnavailable, err)
	}

	res := make([]domain.JobDefinition, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// set中残留的ID，hash已经不存在
			continue
		}
		job, err := decodeJobHash(ids[i], fields)
		if err != nil {
			// 单个任务数据损坏不影响其他任务的调度，Get仍然返回错误
			r.logger.Warn("skip corrupt job hash",
				zap.Int64("job_id", ids[i]),
				zap.Error(err))
			continue
		}
		res = append(res, job)
	}
	return res, nil
}

// Update 判断存在和写入在同一个脚本里完成，并发写入时以最后一次写入为准
func (r *RedisJobDAO) Update(ctx context.Context, jobID int64,
	status _const.JobStatus, content string, ts time.Time) error {
	n, err := updateScript.Run(ctx, r.client, []string{r.jobKey(jobID)},
		strconv.Itoa(int(status)),
		content,
		ts.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: update job %d: %v", domain.ErrStoreUnavailable, jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: job_id=%d", domain.ErrJobNotFound, jobID)
	}
	return nil
}

func (r *RedisJobDAO) Save(ctx context.Context, job domain.JobDefinition) error {
	ts := job.LastUpdatedTs
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.jobKey(job.JobID),
			"job_name", job.JobName,
			"job_enabled", strconv.FormatBool(job.JobEnabled),
			"job_cron", job.JobCron,
			"job_run_lag_check", strconv.FormatInt(job.JobRunLagCheck, 10),
			"job_status", strconv.Itoa(int(job.JobStatus)),
			"job_content", job.JobContent,
			"last_updated_ts", ts.UTC().Format(time.RFC3339Nano),
		)
		pipe.SAdd(ctx, r.idsKey(), strconv.FormatInt(job.JobID, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: save job %d: %v", domain.ErrStoreUnavailable, job.JobID, err)
	}
	return nil
}

func decodeJobHash(jobID int64, fields map[string]string) (domain.JobDefinition, error) {
	bad := func(field string, err error) (domain.JobDefinition, error) {
		return domain.JobDefinition{}, fmt.Errorf("%w: job %d field %s: %v",
			domain.ErrStoreUnavailable, jobID, field, err)
	}

	enabled, err := strconv.ParseBool(fields["job_enabled"])
	if err != nil {
		return bad("job_enabled", err)
	}
	lag, err := strconv.ParseInt(fields["job_run_lag_check"], 10, 64)
	if err != nil {
		return bad("job_run_lag_check", err)
	}
	status, err := strconv.Atoi(fields["job_status"])
	if err != nil {
		return bad("job_status", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, fields["last_updated_ts"])
	if err != nil {
		return bad("last_updated_ts", err)
	}

	return domain.JobDefinition{
		JobID:          jobID,
		JobName:        fields["job_name"],
		JobEnabled:     enabled,
		JobCron:        fields["job_cron"],
		JobRunLagCheck: lag,
		JobStatus:      _const.JobStatus(status),
		JobContent:     fields["job_content"],
		LastUpdatedTs:  ts,
	}, nil
}
