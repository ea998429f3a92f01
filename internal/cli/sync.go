package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

func newSyncCmd(opts *options) *cobra.Command {
	var (
		dryRun     bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "sync [type|all]",
		Short: "Sync one entity type, or all of them",
		Long: `Fetch the list for an entity type and reconcile every item into the local
store, attaching media along the way.

Examples:
  # Preview what a sync of shows would change
  sharepoint-list-sync sync shows --dry-run

  # Sync every configured type
  sharepoint-list-sync sync all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				bars := newProgressBars(cmd.ErrOrStderr(), !noProgress)
				defer bars.finish()

				var (
					runs []*domain.SyncRun
					err  error
				)
				if target == "all" {
					runs, err = a.syncer.SyncAll(ctx, dryRun, bars.update)
				} else {
					var run *domain.SyncRun
					run, err = a.syncer.SyncWithProgress(ctx, target, dryRun, bars.update)
					if run != nil {
						runs = append(runs, run)
					}
				}
				bars.finish()

				printRuns(out, runs)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")
	return cmd
}

// progressBars shows one bar per entity type
type progressBars struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	bars    map[string]*pb.ProgressBar
	done    bool
}

func newProgressBars(out io.Writer, enabled bool) *progressBars {
	return &progressBars{out: out, enabled: enabled, bars: make(map[string]*pb.ProgressBar)}
}

func (p *progressBars) update(entityType string, done, total int) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}

	bar, ok := p.bars[entityType]
	if !ok {
		bar = pb.New(total)
		bar.SetWriter(p.out)
		bar.SetTemplate(`{{string . "type"}} {{counters . }} {{bar . }} {{percent . }} {{etime . }}`)
		bar.Set("type", fmt.Sprintf("%-14s", entityType))
		bar.Start()
		p.bars[entityType] = bar
	}
	bar.SetCurrent(int64(done))
	if done >= total {
		bar.Finish()
	}
}

func (p *progressBars) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	for _, bar := range p.bars {
		if bar.IsStarted() {
			bar.Finish()
		}
	}
}

// printRuns writes a run summary table
func printRuns(out io.Writer, runs []*domain.SyncRun) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tCREATED\tUPDATED\tUNCHANGED\tSKIPPED\tMEDIA FAILED\tFAILED\tDURATION\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if !r.Succeeded() {
			status = r.Error
		}
		if r.DryRun {
			status = "dry-run " + status
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.EntityType, r.Created, r.Updated, r.Unchanged, r.Skipped, r.MediaFailed, r.Failed,
			r.Duration().Round(time.Millisecond), status)
	}
	tw.Flush()
}
