package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Dashboard cache maintenance",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete expired dashboard cache rows and sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.Close()

		purged, err := env.store.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}

		zap.L().Info("cache clean complete", zap.Int64("purged", purged))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}
