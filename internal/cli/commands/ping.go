package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entitydao/internal/cli/ui"
	"github.com/conduit-lang/entitydao/pkg/orm/transaction"
)

// NewPingCommand creates the ping command
func NewPingCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping [connections...]",
		Short: "Check that configured connections are reachable",
		Long: `Ping opens every configured connection, or only the named ones, and
prints one status line per connection. It fails when any connection is
unreachable.

Examples:
  daoctl ping
  daoctl ping main replica --timeout 2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			names := e.cfg.ConnectionNames()
			if len(args) > 0 {
				for i, name := range args {
					// viper lower-cases connection names
					name = strings.ToLower(name)
					args[i] = name
					if _, ok := e.cfg.Connections[name]; !ok {
						ui.UnknownConnection(name, names, opts.noColor).Write(cmd.ErrOrStderr())
						return fmt.Errorf("unknown connection %q", name)
					}
				}
				names = args
			}

			m, err := transaction.OpenManager(e.cfg.TransactionConfigs(), transaction.WithLogger(e.logger))
			if err != nil {
				return err
			}
			defer m.Close()

			table := ui.NewTable(cmd.OutOrStdout(), []string{"CONN", "DRIVER", "DIALECT", "LATENCY", "STATUS"}, &ui.TableOptions{NoColor: opts.noColor})
			failed := 0
			for _, name := range names {
				conn := e.cfg.Connections[name]
				latency, err := ping(cmd.Context(), m, name, timeout)
				if err != nil {
					failed++
					table.AddStatusRow(ui.StatusFailed, name, conn.Driver, string(m.Dialect(name).Name()), "-", err.Error())
					continue
				}
				table.AddStatusRow(ui.StatusOK, name, conn.Driver, string(m.Dialect(name).Name()), latency.Round(time.Microsecond).String(), "ok")
			}
			table.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d connections unreachable", failed, len(names))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout for each ping")
	return cmd
}

func ping(ctx context.Context, m *transaction.Manager, name string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := m.Ping(ctx, name); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
