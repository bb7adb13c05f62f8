package main

import (
	"github.com/spf13/cobra"

	"groundchat/config"
	"groundchat/repository/pgstore"
)

func migrateCMD() *cobra.Command {
	var (
		configPath string
		dir        string
		steps      int
	)
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply postgres schema migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return pgstore.Migrate(dir, dsn, args[0], steps)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (file:// URL)")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
