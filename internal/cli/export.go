package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/entrypoint"
	"github.com/clinicmgr/clinic/internal/exporters"
)

func newExportCommand() *cobra.Command {
	var from, to, out string

	names := make([]string, 0, len(exporters.Kinds))
	for _, k := range exporters.Kinds {
		names = append(names, string(k))
	}

	cmd := &cobra.Command{
		Use:       "export <kind>",
		Short:     "Write a CSV or markdown export",
		Long:      "Write an export into EXPORT_DIR. Kinds: " + strings.Join(names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := exporters.ParseKind(args[0])
			if err != nil {
				return err
			}
			rng := exporters.DefaultRange(time.Now())
			if from != "" {
				rng.From = from
			}
			if to != "" {
				rng.To = to
			}
			return withApp(func(app *entrypoint.App) error {
				result, err := app.Exporter.Export(cmd.Context(), kind, rng)
				app.Audit.LogExport(0, string(kind), result.Path, result.Rows, err)
				if err != nil {
					return err
				}
				cmd.Printf("Wrote %d rows to %s\n", result.Rows, result.Path)
				return nil
			}, func(cfg *config.Config) {
				if out != "" {
					cfg.Export.Dir = out
				}
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (default: start of this month)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&out, "out", "", "Write into this directory instead of EXPORT_DIR")
	return cmd
}
