package main

import (
	"fmt"
	"io"
	"os"

	"face-analysis/internal/app"

	"github.com/spf13/cobra"
)

func newHandleCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Проанализировать одно изображение: байты на stdin, JSON на stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("не удалось открыть %s: %w", input, err)
				}
				defer f.Close()
				in = f
			}

			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("ошибка чтения входа: %w", err)
			}

			application, cleanup, err := app.New(cfg, rootLog)
			if err != nil {
				return err
			}
			defer cleanup()

			body := application.Orchestrator.Handle(cmd.Context(), raw)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "файл изображения, - для stdin")
	return cmd
}
