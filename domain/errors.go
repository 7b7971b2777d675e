package domain

import "errors"

var (
	// ErrJobNotFound 存储中不存在该任务
	ErrJobNotFound = errors.New("job not found")
	// ErrStoreUnavailable 存储读写失败，调用方需要包装具体原因
	ErrStoreUnavailable = errors.New("job store unavailable")
	// ErrRunnableNotFound 注册中心没有该任务的执行方法，属于配置错误
	ErrRunnableNotFound = errors.New("runnable not registered")
	// ErrRunnablePanicked 执行方法违反约定抛出了panic
	ErrRunnablePanicked = errors.New("runnable panicked")
	// ErrPermissionDenied 预检查不允许本次执行
	ErrPermissionDenied = errors.New("preliminary check denied")

	ErrJobDisabled   = deniedError("job is disabled")
	ErrJobRunning    = deniedError("job is already running")
	ErrLagNotElapsed = deniedError("job ran too recently")

	// ErrSchedulerRunning 重复启动调度器
	ErrSchedulerRunning = errors.New("scheduler already running")
)

// denied 预检查拒绝的具体原因，统一可以被errors.Is(err, ErrPermissionDenied)识别
type denied struct {
	reason string
}

func deniedError(reason string) error {
	return &denied{reason: reason}
}

func (d *denied) Error() string {
	return d.reason
}

func (d *denied) Unwrap() error {
	return ErrPermissionDenied
}
