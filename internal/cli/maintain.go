package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/internal/scanner"
	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
)

type maintenanceReport struct {
	Pruned int64          `json:"pruned" yaml:"pruned"`
	Scan   scanner.Report `json:"scan" yaml:"scan"`
}

// maintain prunes oversized undo entries, rebuilds the backlink index and
// merges the search index segments.
func maintain(ctx context.Context, store *sqlite.Backend, s *scanner.Scanner, log logrus.FieldLogger) (maintenanceReport, error) {
	var report maintenanceReport
	var err error
	if report.Pruned, err = store.UndoLog().Prune(ctx, 0); err != nil {
		return report, fmt.Errorf("prune undo log: %w", err)
	}
	if report.Scan, err = s.Rebuild(ctx); err != nil {
		return report, fmt.Errorf("rescan: %w", err)
	}
	if err := store.Search().Optimize(ctx); err != nil {
		return report, fmt.Errorf("optimize search index: %w", err)
	}
	log.WithFields(logrus.Fields{
		"pruned":  report.Pruned,
		"scanned": report.Scan.Scanned,
		"edges":   report.Scan.Edges,
	}).Info("maintenance finished")
	return report, nil
}

func newMaintainCmd(a *app) *cobra.Command {
	var (
		once     bool
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Prune the undo log, rescan backlinks and optimize search",
		Long: `Run library maintenance on a schedule until interrupted. The schedule is a
cron expression with a leading seconds field, or a descriptor such as
"@daily" or "@every 6h"; it defaults to maintenance_schedule in
config.yaml. With --once maintenance runs a single time and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			s, err := a.scanner()
			if err != nil {
				return err
			}

			if once {
				report, err := maintain(cmd.Context(), store, s, a.log)
				if err != nil {
					return err
				}
				return a.emit(cmd, report, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Pruned %d undo entries; scanned %d files, %d links\n",
						report.Pruned, report.Scan.Scanned, report.Scan.Edges)
					return err
				})
			}

			manager, err := a.tasks()
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = a.settings.GetString(cfgKeyMaintenanceSchedule)
			}
			err = manager.Schedule(schedule, "maintenance", func(ctx context.Context) error {
				_, err := maintain(ctx, store, s, a.log)
				return err
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), "Maintenance scheduled (%s), interrupt to stop\n", schedule)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run once and exit")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default: maintenance_schedule)")
	return cmd
}
