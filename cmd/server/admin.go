package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/safety"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open 会自动迁移
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d models in %s\n", len(db.Models()), a.cfg.DatabasePath)
			return nil
		},
	}
}

func initAdminCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "init-admin",
		Short: "Create the administrator account or promote an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if email == "" {
				email = a.cfg.SuperAdminEmail
			}
			if password == "" {
				password = a.cfg.SuperAdminPassword
			}
			if email == "" || password == "" {
				return errors.New("--email and --password are required (or set SUPER_ADMIN_EMAIL / SUPER_ADMIN_PASSWORD)")
			}

			user, err := a.newAPI(safety.NewDefaultFilter()).Users().EnsureAdmin(email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s (id %d)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&password, "password", "", "administrator password")
	return cmd
}

// seedGoal 是空库时写入的示例目标
var seedGoal = service.GoalInput{
	Title:       "Seven days in the Psalms",
	Description: "One psalm each morning, read slowly and prayed back.",
	Tasks: []string{
		"Read Psalm 1 and note what the blessed person delights in.",
		"Read Psalm 23 and pray it line by line.",
		"Read Psalm 27 and write down one fear you hand over.",
		"Read Psalm 46 and sit in silence for five minutes.",
		"Read Psalm 91 and memorise verse 1.",
		"Read Psalm 103 and list three benefits you are thankful for.",
		"Read Psalm 139 and thank God for how you were made.",
	},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert a sample devotional goal and today's good news card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			api := a.newAPI(safety.NewDefaultFilter())
			out := cmd.OutOrStdout()

			goals, err := api.Goals().List()
			if err != nil {
				return err
			}
			if len(goals) == 0 {
				goal, err := api.Goals().Create(seedGoal)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created goal %q with %d tasks\n", goal.Title, len(goal.Tasks))
			} else {
				fmt.Fprintf(out, "skipped goals: %d already present\n", len(goals))
			}

			card, err := api.GoodNews().Create(service.GoodNewsInput{
				Title:   "His mercies are new every morning",
				Content: "Great is thy faithfulness. Lamentations 3:22-23",
			}, nil, time.Now())
			switch {
			case errors.Is(err, service.ErrGoodNewsExists):
				fmt.Fprintln(out, "skipped good news: today's card exists")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "created good news for %s\n", card.Date.Format(time.DateOnly))
			}

			a.logger.Info("seed finished", zap.Int("existing_goals", len(goals)))
			return nil
		},
	}
}
