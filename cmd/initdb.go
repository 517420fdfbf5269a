package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the SQLite schema, indexes, and full-text mirrors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStoreRaw()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return eris.Wrap(err, "initdb")
		}

		zap.L().Info("database initialized", zap.String("path", cfg.Store.Path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
