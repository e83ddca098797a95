package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grovetools/envwatch/internal/registry"
	"github.com/grovetools/envwatch/internal/watch"
	"github.com/grovetools/envwatch/tui/theme"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the root in the foreground and print each change batch",
		Long: `Watches the environment root without the daemon. Filesystem events are
grouped per environment over the debounce window and printed as one batch.
Unless --dry-run is set, every batch is refreshed and the outcome printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, "watch")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			t := theme.DefaultTheme

			opts, err := registry.OptionsFromConfig(s.cfg, s.root, s.logger)
			if err != nil {
				return err
			}

			var onBatch watch.BatchFunc
			if dryRun {
				onBatch = func(ctx context.Context, batch watch.Batch) {
					fmt.Fprintf(out, "%s %s\n", t.Muted.Render(time.Now().Format("15:04:05")), strings.Join(batch, ", "))
				}
			} else {
				reg, err := registry.Open(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Watching %d environment(s) under %s\n", reg.Len(), s.root)
				onBatch = func(ctx context.Context, batch watch.Batch) {
					report := reg.Refresh(ctx, batch, false)
					writeBatch(out, t, batch, report)
				}
			}

			classifier := watch.NewClassifier(s.root, opts.Exclude)
			w := watch.NewWatcher(s.root, watch.NewFSNotifySource(s.logger), classifier, s.cfg.Watch.DebounceDuration(), s.logger)
			if err := w.Run(ctx, onBatch); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print batches without refreshing")
	return cmd
}

func writeBatch(w io.Writer, t *theme.Theme, batch watch.Batch, report registry.Report) {
	var parts []string
	add := func(status, label string, names []string) {
		if len(names) > 0 {
			parts = append(parts, t.RenderStatus(status, label)+" "+strings.Join(names, ","))
		}
	}
	add("success", "refreshed", report.Refreshed)
	add("info", "added", report.Added)
	add("warning", "removed", report.Removed)
	add("error", "failed", report.Failed)
	if len(parts) == 0 {
		parts = append(parts, t.Muted.Render("unchanged"))
	}
	fmt.Fprintf(w, "%s [%s] %s\n", t.Muted.Render(time.Now().Format("15:04:05")), strings.Join(batch, ", "), strings.Join(parts, "  "))
}
