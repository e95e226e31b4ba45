package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entitydao/internal/cli/ui"
	"github.com/conduit-lang/entitydao/internal/config"
	"github.com/conduit-lang/entitydao/pkg/orm/stats"
)

const sqlColumnWidth = 60

// NewStatsCommand creates the stats command group
func NewStatsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Read statement telemetry from the shared Redis sink",
	}
	cmd.AddCommand(newStatsTailCommand(opts))
	cmd.AddCommand(newStatsServeCommand(opts))
	return cmd
}

// openRedisReader connects to the Redis list configured under
// stats.redis, whether or not redis is one of the active sinks.
func openRedisReader(e *env) (*config.Sinks, stats.Reader, error) {
	cfg := e.cfg.Stats
	cfg.Sink = "redis"
	sinks, err := config.OpenSinks(cfg, e.logger)
	if err != nil {
		return nil, nil, err
	}
	reader, _ := sinks.Reader()
	return sinks, reader, nil
}

func newStatsTailCommand(opts *rootOptions) *cobra.Command {
	var (
		limit      int
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent statements, newest first",
		Long: `Tail prints recent statements from the Redis sink. Failed statements
are shown in red and statements slower than stats.slow_threshold in
yellow.

Examples:
  daoctl stats tail --limit 50
  daoctl stats tail --failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			sinks, reader, err := openRedisReader(e)
			if err != nil {
				return err
			}
			defer sinks.Close()

			// --failed filters the whole list before --limit applies
			window := limit
			if failedOnly {
				window = 0
			}
			records, err := reader.Recent(cmd.Context(), window)
			if err != nil {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(),
				[]string{"STARTED", "CONN", "ROWS", "TOTAL", "SQL", "ERROR"},
				&ui.TableOptions{NoColor: opts.noColor})
			for _, rec := range records {
				if failedOnly && !rec.Failed() {
					continue
				}
				if limit > 0 && table.Len() >= limit {
					break
				}
				table.AddStatusRow(recordStatus(rec, e.cfg.Stats.SlowThreshold),
					rec.StartedAt.Format(time.RFC3339),
					rec.ConnName,
					strconv.FormatInt(rec.Rows, 10),
					rec.Total.Round(time.Microsecond).String(),
					truncate(rec.SQL, sqlColumnWidth),
					rec.Err,
				)
			}
			if table.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no statements recorded")
				return nil
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only show failed statements")
	return cmd
}

func newStatsServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded statements over HTTP",
		Long: `Serve exposes the Redis sink over HTTP:

  GET /healthz
  GET /records?limit=N

When stats.http.jwt_secret is set, /records requires an HS256 bearer
token signed with it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			sinks, reader, err := openRedisReader(e)
			if err != nil {
				return err
			}
			defer sinks.Close()

			if addr == "" {
				addr = e.cfg.Stats.HTTP.Addr
			}
			srv := &http.Server{
				Addr: addr,
				Handler: stats.NewHandler(reader,
					stats.WithJWTSecret(e.cfg.Stats.HTTP.JWTSecret),
					stats.WithHandlerLogger(e.logger)),
				ReadHeaderTimeout: 5 * time.Second,
			}

			e.logger.Info("stats endpoint listening", zap.String("addr", addr))
			return serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: stats.http.addr)")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func recordStatus(rec stats.Record, slow time.Duration) ui.Status {
	switch {
	case rec.Failed():
		return ui.StatusFailed
	case slow > 0 && rec.Total >= slow:
		return ui.StatusSlow
	}
	return ui.StatusNone
}

// truncate collapses whitespace and cuts s to n runes
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
