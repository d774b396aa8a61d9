package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Store 是 Tracker 依赖的持久化接口
// InsertCompletion 必须由唯一约束兜底：(用户, 任务) 冲突返回 ErrDuplicateCompletion，
// (用户, 日期) 冲突返回 ErrDuplicateDay
type Store interface {
	// Transaction 在同一事务绑定的 Store 上执行 fn
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// Tasks 返回计划任务，按 Position 升序
	Tasks(ctx context.Context, userID uint, planID string) ([]Task, error)
	// Completions 返回规则范围内的用户完成记录
	Completions(ctx context.Context, userID uint, planID string) ([]Completion, error)
	Streak(ctx context.Context, userID uint) (Streak, error)
	InsertCompletion(ctx context.Context, c Completion) error
	SaveStreak(ctx context.Context, userID uint, s Streak) error
}

// Result 是 Complete 成功时的返回值
type Result struct {
	Completion Completion
	Streak     int
}

// Progress 汇总用户在计划中的进度
type Progress struct {
	PlanID    string
	Tasks     []TaskState
	Next      *Task
	Completed int
	Total     int
	Done      bool
	Streak    Streak
}

// Tracker 在 Store 上运行 Engine，每次完成一个事务
type Tracker struct {
	store  Store
	engine Engine
	now    func() time.Time
	logger *zap.Logger
}

// TrackerOption 定制 Tracker
type TrackerOption func(*Tracker)

// WithClock 替换 time.Now
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger 设置日志，默认不输出
func WithLogger(logger *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker 构造 Tracker
func NewTracker(store Store, engine Engine, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		engine: engine,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Engine 返回 tracker 使用的 engine
func (t *Tracker) Engine() Engine {
	return t.engine
}

// Complete 记录任务完成并推进连胜
// 完成记录与连胜更新要么同时写入，要么都不写入
func (t *Tracker) Complete(ctx context.Context, userID uint, planID, taskID string) (Result, error) {
	now := t.now()
	var result Result

	err := t.store.Transaction(ctx, func(tx Store) error {
		tasks, err := tx.Tasks(ctx, userID, planID)
		if err != nil {
			return storageErr("load tasks", err)
		}
		completions, err := tx.Completions(ctx, userID, planID)
		if err != nil {
			return storageErr("load completions", err)
		}
		streak, err := tx.Streak(ctx, userID)
		if err != nil {
			return storageErr("load streak", err)
		}

		outcome, err := t.engine.Attempt(tasks, UserState{Completions: completions, Streak: streak}, userID, taskID, now)
		if err != nil {
			return err
		}
		outcome.Completion.PlanID = planID

		if err := tx.InsertCompletion(ctx, outcome.Completion); err != nil {
			if isConstraintViolation(err) {
				return constraintRejection(err)
			}
			return storageErr("insert completion", err)
		}
		if err := tx.SaveStreak(ctx, userID, outcome.Streak); err != nil {
			return storageErr("save streak", err)
		}

		result = Result{Completion: outcome.Completion, Streak: outcome.Streak.Count}
		return nil
	})
	if err != nil {
		if isConstraintViolation(err) {
			err = constraintRejection(err)
		}
		if !IsRejection(err) && !errors.Is(err, ErrStorageUnavailable) {
			err = storageErr("transaction", err)
		}
		t.logger.Info("completion rejected",
			zap.String("rule", t.engine.rule.Name),
			zap.Uint("user_id", userID),
			zap.String("plan_id", planID),
			zap.String("task_id", taskID),
			zap.Error(err))
		return Result{}, err
	}

	t.logger.Info("completion accepted",
		zap.String("rule", t.engine.rule.Name),
		zap.Uint("user_id", userID),
		zap.String("plan_id", planID),
		zap.String("task_id", taskID),
		zap.Int("streak", result.Streak))
	return result, nil
}

// Progress 返回计划内每个任务的解锁状态与当前连胜
func (t *Tracker) Progress(ctx context.Context, userID uint, planID string) (Progress, error) {
	tasks, err := t.store.Tasks(ctx, userID, planID)
	if err != nil {
		return Progress{}, storageErr("load tasks", err)
	}
	completions, err := t.store.Completions(ctx, userID, planID)
	if err != nil {
		return Progress{}, storageErr("load completions", err)
	}
	streak, err := t.store.Streak(ctx, userID)
	if err != nil {
		return Progress{}, storageErr("load streak", err)
	}

	completed := CompletedSet(completions)
	states := Unlock(tasks, completed)

	progress := Progress{PlanID: planID, Tasks: states, Total: len(tasks), Streak: streak}
	for _, state := range states {
		if state.Completed {
			progress.Completed++
		}
	}
	if next, ok := NextActionable(tasks, completed); ok {
		progress.Next = &next
	} else {
		progress.Done = true
	}
	return progress, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) || IsRejection(err) || isConstraintViolation(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
