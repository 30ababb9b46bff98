package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"face-analysis/internal/config"
	"face-analysis/internal/logger"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
)

// Version - версия утилиты
const Version = "1.0.0"

var (
	cfg      *config.Config
	rootLog  log.Logger
	logLevel string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "facectl",
		Short:         "Утилита сервиса анализа лиц",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			// stdout занят результатом handle, логи пишем в stderr
			rootLog = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "уровень логирования (по умолчанию LOG_LEVEL)")

	root.AddCommand(newHandleCmd(), newMigrateCmd(), newHealthCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
