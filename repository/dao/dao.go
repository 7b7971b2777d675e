package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ repository.JobRepository = (*GormJobDAO)(nil)

type GormJobDAO struct {
	db *gorm.DB
}

func NewGormJobDAO(db *gorm.DB) *GormJobDAO {
	return &GormJobDAO{db: db}
}

// Migrate 创建或者更新batch_jobs表结构
func (g *GormJobDAO) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&BatchJob{}); err != nil {
		return fmt.Errorf("%w: migrate batch_jobs: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (g *GormJobDAO) Get(ctx context.Context, jobID int64) (domain.JobDefinition, error) {
	var job BatchJob
	err := g.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.JobDefinition{}, fmt.Errorf("%w: job_id=%d", domain.ErrJobNotFound, jobID)
	}
	if err != nil {
		return domain.JobDefinition{}, fmt.Errorf("%w: get job %d: %v", domain.ErrStoreUnavailable, jobID, err)
	}

	return job.toDomain(), nil
}

func (g *GormJobDAO) ListAll(ctx context.Context) ([]domain.JobDefinition, error) {
	var jobs []BatchJob
	err := g.db.WithContext(ctx).Order("job_id").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrStoreUnavailable, err)
	}

	res := make([]domain.JobDefinition, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, job.toDomain())
	}
	return res, nil
}

// Update 直接覆盖写，不做版本校验，并发写入时以最后一次写入为准
func (g *GormJobDAO) Update(ctx context.Context, jobID int64,
	status _const.JobStatus, content string, ts time.Time) error {
	res := g.db.WithContext(ctx).Model(&BatchJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"job_status":      int(status),
			"job_content":     content,
			"last_updated_ts": ts.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: update job %d: %v", domain.ErrStoreUnavailable, jobID, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job_id=%d", domain.ErrJobNotFound, jobID)
	}

	return nil
}

func (g *GormJobDAO) Save(ctx context.Context, job domain.JobDefinition) error {
	m := fromDomain(job)
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: save job %d: %v", domain.ErrStoreUnavailable, job.JobID, err)
	}
	return nil
}

type BatchJob struct {
	// JobID 任务ID，由管理端指定，不自增
	JobID int64 `gorm:"column:job_id;primaryKey;autoIncrement:false" json:"job_id"`
	// JobName 任务名称
	JobName string `gorm:"column:job_name;type:varchar(150);not null" json:"job_name"`
	// JobEnabled 是否开启
	JobEnabled bool `gorm:"column:job_enabled;not null" json:"job_enabled"`
	// JobCron cron表达式
	JobCron string `gorm:"column:job_cron;type:varchar(250);not null" json:"job_cron"`
	// JobRunLagCheck 执行间隔检查，单位秒
	JobRunLagCheck int64 `gorm:"column:job_run_lag_check;not null" json:"job_run_lag_check"`
	// JobStatus 0完成 1执行中 2失败
	JobStatus int `gorm:"column:job_status;type:int;not null" json:"job_status"`
	// JobContent 执行结果
	JobContent *string `gorm:"column:job_content;type:text" json:"job_content"`
	// LastUpdatedTs 最近一次写回时间
	LastUpdatedTs time.Time `gorm:"column:last_updated_ts;not null" json:"last_updated_ts"`
}

func (BatchJob) TableName() string {
	return "batch_jobs"
}

func (b BatchJob) toDomain() domain.JobDefinition {
	var content string
	if b.JobContent != nil {
		content = *b.JobContent
	}

	return domain.JobDefinition{
		JobID:          b.JobID,
		JobName:        b.JobName,
		JobEnabled:     b.JobEnabled,
		JobCron:        b.JobCron,
		JobRunLagCheck: b.JobRunLagCheck,
		JobStatus:      _const.JobStatus(b.JobStatus),
		JobContent:     content,
		LastUpdatedTs:  b.LastUpdatedTs,
	}
}

func fromDomain(j domain.JobDefinition) BatchJob {
	var content *string
	if j.JobContent != "" {
		c := j.JobContent
		content = &c
	}

	ts := j.LastUpdatedTs
	if ts.IsZero() {
		ts = time.Now()
	}

	return BatchJob{
		JobID:          j.JobID,
		JobName:        j.JobName,
		JobEnabled:     j.JobEnabled,
		JobCron:        j.JobCron,
		JobRunLagCheck: j.JobRunLagCheck,
		JobStatus:      int(j.JobStatus),
		JobContent:     content,
		LastUpdatedTs:  ts.UTC(),
	}
}
