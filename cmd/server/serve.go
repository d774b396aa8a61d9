package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/walklog/internal/router"
	"github.com/walklog/internal/safety"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(ginMode(a.cfg.GinMode))

	filter, err := a.loadFilter()
	if err != nil {
		return err
	}
	api := a.newAPI(filter)

	if a.cfg.SuperAdminEmail != "" && a.cfg.SuperAdminPassword != "" {
		if _, err := api.Users().EnsureAdmin(a.cfg.SuperAdminEmail, a.cfg.SuperAdminPassword); err != nil {
			return err
		}
		a.logger.Info("super admin ensured", zap.String("email", a.cfg.SuperAdminEmail))
	}

	r := router.SetupRouter(api, router.Config{
		SessionSecret: a.cfg.SessionSecret,
		UploadDir:     a.cfg.UploadDir,
		UploadURLPath: a.cfg.UploadURLPath,
		SecureCookie:  a.cfg.GinMode == gin.ReleaseMode,
	}, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// 屏蔽词文件热更新
	if a.cfg.BlocklistPath != "" {
		watcher, err := safety.NewWatcher(filter, a.cfg.BlocklistPath, a.logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := watcher.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			watcher.Stop()
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info("walklog listening", zap.String("addr", a.cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
