package progression

import "errors"

var (
	// ErrAlreadyCompletedToday 启用每日上限时，用户今天已完成过任务
	ErrAlreadyCompletedToday = errors.New("task already completed today")
	// ErrAlreadyCompleted 同一 (用户, 任务) 已完成
	ErrAlreadyCompleted = errors.New("task already completed")
	// ErrUnknownTask 任务不属于该计划
	ErrUnknownTask = errors.New("unknown task")
	// ErrTaskLocked 前面的任务尚未完成
	ErrTaskLocked = errors.New("task is locked")
	// ErrInvalidCompletionDate 今天早于上次连胜日期
	ErrInvalidCompletionDate = errors.New("completion date precedes last streak date")
	// ErrStorageUnavailable 包装所有持久化失败，不重试
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrDuplicateCompletion 由 Store 返回：(用户, 任务) 唯一约束拒绝了插入
	ErrDuplicateCompletion = errors.New("duplicate completion")
	// ErrDuplicateDay 由 Store 返回：(用户, 日期) 唯一约束拒绝了插入
	ErrDuplicateDay = errors.New("duplicate completion day")
)

// IsRejection 判断 err 是否为预期内、可展示给用户的拒绝，而非故障
func IsRejection(err error) bool {
	return errors.Is(err, ErrAlreadyCompletedToday) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrUnknownTask) ||
		errors.Is(err, ErrTaskLocked) ||
		errors.Is(err, ErrInvalidCompletionDate)
}

// isConstraintViolation 判断 Store 是否报告了唯一约束冲突
func isConstraintViolation(err error) bool {
	return errors.Is(err, ErrDuplicateCompletion) || errors.Is(err, ErrDuplicateDay)
}

// constraintRejection 按触发的约束把冲突翻译成对应的拒绝
func constraintRejection(err error) error {
	if errors.Is(err, ErrDuplicateDay) {
		return ErrAlreadyCompletedToday
	}
	return ErrAlreadyCompleted
}
