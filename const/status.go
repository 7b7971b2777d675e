package _const

import (
	"fmt"
	"strings"
)

// JobStatus 批处理任务的执行状态，数值与存储中的 job_status 列一一对应
type JobStatus int

const (
	JobStatusCompleted JobStatus = 0 // 执行完成
	JobStatusRunning   JobStatus = 1 // 执行中
	JobStatusFailed    JobStatus = 2 // 执行失败
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusCompleted:
		return "COMPLETED"
	case JobStatusRunning:
		return "RUNNING"
	case JobStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Valid 是否为定义过的三种状态之一
func (s JobStatus) Valid() bool {
	return s == JobStatusCompleted || s == JobStatusRunning || s == JobStatusFailed
}

// ParseJobStatus 支持状态码或者状态名称
func ParseJobStatus(v string) (JobStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "0", "COMPLETED":
		return JobStatusCompleted, nil
	case "1", "RUNNING":
		return JobStatusRunning, nil
	case "2", "FAILED":
		return JobStatusFailed, nil
	default:
		return 0, fmt.Errorf("unknown job status %q", v)
	}
}

// SchedulerStatus 调度器的状态，只有停止和运行两种
type SchedulerStatus int32

const (
	SchedulerStatusStopped SchedulerStatus = 0x00000000 // 未调度
	SchedulerStatusRunning SchedulerStatus = 0x00000001 // 调度中
)

func (s SchedulerStatus) String() string {
	switch s {
	case SchedulerStatusStopped:
		return "Stopped"
	case SchedulerStatusRunning:
		return "Running"
	default:
		return "Unknown"
	}
}
