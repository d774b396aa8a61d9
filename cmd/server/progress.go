package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/walklog/internal/progression"
	"github.com/walklog/internal/safety"
	"github.com/walklog/internal/service"
)

func progressCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a user's devotional goal and AI plan progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--user is required")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			api := a.newAPI(safety.NewDefaultFilter())
			out := cmd.OutOrStdout()

			user, err := api.Users().GetByEmail(email)
			if err != nil {
				return fmt.Errorf("%s: %w", email, err)
			}

			goal, err := api.Goals().Current(user.ID)
			switch {
			case errors.Is(err, service.ErrNoGoalSelected):
				fmt.Fprintln(out, "no devotional goal selected")
			case err != nil:
				return err
			default:
				p, err := api.Goals().Progress(ctx, user.ID, goal.ID)
				if err != nil {
					return err
				}
				renderProgress(out, "Goal: "+goal.Title, p)
			}

			plan, err := api.Plans().Latest(ctx, user.ID)
			switch {
			case errors.Is(err, service.ErrPlanNotFound):
				fmt.Fprintln(out, "no ai plan generated")
			case err != nil:
				return err
			default:
				p, err := api.Plans().Progress(ctx, user.ID, plan.ID)
				if err != nil {
					return err
				}
				renderProgress(out, "Plan: "+plan.Title, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "user", "", "user email")
	return cmd
}

func renderProgress(w io.Writer, title string, p progression.Progress) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Day", "Task", "Status"})
	for _, state := range p.Tasks {
		tw.AppendRow(table.Row{state.Task.Position, state.Task.Text, taskStatus(state)})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d", p.Completed, p.Total), streakLabel(p.Streak)})
	tw.Render()
}

func taskStatus(state progression.TaskState) string {
	switch {
	case state.Completed:
		return "done"
	case state.Actionable:
		return "next"
	case state.Unlocked:
		return "open"
	default:
		return "locked"
	}
}

func streakLabel(s progression.Streak) string {
	if s.LastDate == nil || s.Count == 0 {
		return "streak 0"
	}
	return fmt.Sprintf("streak %d (last %s)", s.Count, s.LastDate.Format(time.DateOnly))
}
