// Package progression 决定用户在有序计划中下一个可以完成的任务，以及完成后连胜如何变化。
package progression

import (
	"time"
)

// Task 是计划中按顺序排列、不可修改的任务
type Task struct {
	ID       string
	Position int
	Text     string
}

// Completion 记录用户在某个日历日完成了任务
// Day 为本地日历日期对应的 UTC 零点
type Completion struct {
	UserID      uint
	PlanID      string
	TaskID      string
	Day         time.Time
	CompletedAt time.Time
}

// Streak 连续有完成记录的天数
type Streak struct {
	Count    int
	LastDate *time.Time
}

// UserState 是判定一次完成所需的全部用户状态
type UserState struct {
	Completions []Completion
	Streak      Streak
}

// Rule 描述一种完成配置
// 完成记录的范围由 Store 决定：灵修目标取用户全部灵修记录，AI 计划取用户全部 AI 计划记录
type Rule struct {
	Name string
	// DailyCap 在范围内每个用户每天最多完成一个任务
	DailyCap bool
}

var (
	// DevotionalRule 所有灵修目标合计每天一个任务
	DevotionalRule = Rule{Name: "devotional", DailyCap: true}
	// PlanRule 所有 AI 计划合计每天一个任务，且每个任务只能完成一次
	PlanRule = Rule{Name: "plan", DailyCap: true}
)

// TaskState 描述任务相对解锁边界的状态
type TaskState struct {
	Task       Task
	Completed  bool
	Unlocked   bool
	Actionable bool
}

// Outcome 是被接受的完成尝试的结果
type Outcome struct {
	Completion Completion
	Streak     Streak
}

// Engine 在固定时区下应用 Rule，零值使用 time.Local
type Engine struct {
	rule Rule
	loc  *time.Location
}

// NewEngine 构造 Engine，loc 为 nil 时使用 time.Local
func NewEngine(rule Rule, loc *time.Location) Engine {
	if loc == nil {
		loc = time.Local
	}
	return Engine{rule: rule, loc: loc}
}

// Rule 返回构造时的配置
func (e Engine) Rule() Rule {
	return e.rule
}

// Today 把 now 换算为所在时区的日历日
func (e Engine) Today(now time.Time) time.Time {
	loc := e.loc
	if loc == nil {
		loc = time.Local
	}
	return CalendarDay(now, loc)
}

// CalendarDay 返回 t 在 loc 中的日历日期对应的 UTC 零点
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween 计算 a 到 b 相差的日历天数
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// CompletedSet 收集已完成的任务 ID
func CompletedSet(completions []Completion) map[string]struct{} {
	set := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		set[c.TaskID] = struct{}{}
	}
	return set
}

// NextActionable 返回第一个未完成的任务，计划全部完成时返回 false
func NextActionable(tasks []Task, completed map[string]struct{}) (Task, bool) {
	for _, task := range tasks {
		if _, ok := completed[task.ID]; !ok {
			return task, true
		}
	}
	return Task{}, false
}

// Unlock 返回每个任务的完成与解锁状态
// 已完成或之前的任务全部完成即为解锁，只有最靠前的未完成解锁任务可操作
func Unlock(tasks []Task, completed map[string]struct{}) []TaskState {
	states := make([]TaskState, len(tasks))
	prefixDone := true
	frontierSeen := false
	for i, task := range tasks {
		_, done := completed[task.ID]
		state := TaskState{Task: task, Completed: done, Unlocked: done || prefixDone}
		if state.Unlocked && !done && !frontierSeen {
			state.Actionable = true
			frontierSeen = true
		}
		if !done {
			prefixDone = false
		}
		states[i] = state
	}
	return states
}

// NextStreak 计算今天完成后的连胜天数
func NextStreak(prev Streak, today time.Time) (int, error) {
	if prev.LastDate == nil {
		return 1, nil
	}

	diff := DaysBetween(*prev.LastDate, today)
	switch {
	case diff < 0:
		return prev.Count, ErrInvalidCompletionDate
	case diff == 0:
		// 同一天不重复累加
		return prev.Count, nil
	case diff == 1:
		return prev.Count + 1, nil
	default:
		return 1, nil
	}
}

// Attempt 判定在 now 完成 taskID 是否被接受，不做任何持久化
// tasks 需按 Position 升序，state 为规则范围内的用户完成记录
func (e Engine) Attempt(tasks []Task, state UserState, userID uint, taskID string, now time.Time) (Outcome, error) {
	today := e.Today(now)

	index := -1
	for i, task := range tasks {
		if task.ID == taskID {
			index = i
			break
		}
	}
	if index < 0 {
		return Outcome{}, ErrUnknownTask
	}

	if e.rule.DailyCap {
		for _, c := range state.Completions {
			if c.UserID == userID && c.Day.Equal(today) {
				return Outcome{}, ErrAlreadyCompletedToday
			}
		}
	}

	completed := CompletedSet(state.Completions)
	if _, done := completed[taskID]; done {
		return Outcome{}, ErrAlreadyCompleted
	}

	next, ok := NextActionable(tasks, completed)
	if !ok || next.ID != taskID {
		return Outcome{}, ErrTaskLocked
	}

	count, err := NextStreak(state.Streak, today)
	if err != nil {
		return Outcome{}, err
	}

	lastDate := today
	return Outcome{
		Completion: Completion{
			UserID:      userID,
			TaskID:      taskID,
			Day:         today,
			CompletedAt: now,
		},
		Streak: Streak{Count: count, LastDate: &lastDate},
	}, nil
}
