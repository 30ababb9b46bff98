package main

import (
	"fmt"

	"face-analysis/internal/repository"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции базы истории анализов",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlx.ConnectContext(cmd.Context(), "postgres", cfg.Database.GetDSN())
			if err != nil {
				return fmt.Errorf("ошибка подключения к БД: %w", err)
			}
			defer db.Close()

			if err := repository.Migrate(db.DB, cfg.Database.Name); err != nil {
				return err
			}
			log.NewHelper(rootLog).Infof("миграции применены к %s", cfg.Database.Name)
			return nil
		},
	}
}
