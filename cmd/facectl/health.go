package main

import (
	"context"
	"fmt"
	"time"

	"face-analysis/internal/app"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Проверить доступность шлюза, кэша и базы",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := app.New(cfg, rootLog)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			failed := 0
			for _, check := range application.HealthChecks() {
				if err := check.Check(ctx); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "❌ %s: %v\n", check.Name, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s\n", check.Name)
			}
			if failed > 0 {
				return fmt.Errorf("проверок не пройдено: %d", failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "таймаут проверок")
	return cmd
}
