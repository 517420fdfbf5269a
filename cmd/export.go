package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/export"
	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/store"
)

var (
	exportFormat  string
	exportOut     string
	exportLevels  []string
	exportStates  []string
	exportHasMail bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export filtered contacts to csv, json, xlsx, or vcard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		var filter store.Filter
		for _, raw := range exportLevels {
			level := model.Level(strings.ToLower(raw))
			if !level.Valid() {
				return eris.Errorf("unknown level %q", raw)
			}
			filter.Levels = append(filter.Levels, level)
		}
		for _, s := range exportStates {
			filter.States = append(filter.States, strings.ToUpper(s))
		}
		if cmd.Flags().Changed("has-email") {
			filter.HasEmail = &exportHasMail
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, total, err := st.Contacts(ctx, filter, store.Page{Number: 1, PerPage: 100000})
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			out, err = os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer out.Close()
		}
		if err := export.Contacts(out, format, rows); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", string(format)),
			zap.Int("contacts", total),
			zap.String("out", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json, xlsx, vcard")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	exportCmd.Flags().StringSliceVar(&exportLevels, "levels", nil, "government levels to include")
	exportCmd.Flags().StringSliceVar(&exportStates, "states", nil, "state codes to include")
	exportCmd.Flags().BoolVar(&exportHasMail, "has-email", false, "only contacts with (or without) an email")
	rootCmd.AddCommand(exportCmd)
}
