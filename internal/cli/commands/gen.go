package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entitydao/internal/cli/ui"
	"github.com/conduit-lang/entitydao/internal/orm/codegen"
	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
	"github.com/conduit-lang/entitydao/pkg/orm/transaction"
)

// interactive reports whether tables may be picked with a prompt
var interactive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// pickTables asks the user which tables to generate
var pickTables = func(tables []string) ([]string, error) {
	var selected []string
	prompt := &survey.MultiSelect{
		Message:  "Tables to generate:",
		Options:  tables,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &selected, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, err
	}
	return selected, nil
}

// NewGenCommand creates the gen command
func NewGenCommand(opts *rootOptions) *cobra.Command {
	var (
		conn       string
		pkg        string
		out        string
		schemaName string
	)

	cmd := &cobra.Command{
		Use:   "gen [tables...]",
		Short: "Generate change-tracking entity types from database tables",
		Long: `Gen introspects tables on a connection and writes one Go file per
table: a struct embedding tracking.Tracker, its schema descriptor and
change-tracking setters.

Without table arguments the tables are picked interactively when stdin is
a terminal; otherwise every table and view is generated.

Examples:
  daoctl gen users orders --out internal/models
  daoctl gen --conn replica --package audit --out internal/audit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.close()

			if conn == "" {
				conn = e.cfg.DefaultConn
			}
			conn = strings.ToLower(conn)
			connCfg, ok := e.cfg.TransactionConfigs()[conn]
			if !ok {
				ui.UnknownConnection(conn, e.cfg.ConnectionNames(), opts.noColor).Write(cmd.ErrOrStderr())
				return fmt.Errorf("unknown connection %q", conn)
			}

			db, err := transaction.Open(connCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			d := dialect.New(connCfg.Dialect)
			if !d.Known() {
				d = dialect.ForDriver(connCfg.Driver)
			}
			in, err := codegen.NewIntrospector(db, d, schemaName)
			if err != nil {
				return err
			}

			infos, err := in.Tables(cmd.Context())
			if err != nil {
				return err
			}
			available := make([]string, len(infos))
			for i, info := range infos {
				available[i] = info.Name
			}

			tables, err := selectTables(cmd, args, available, opts.noColor)
			if err != nil {
				return err
			}
			if len(tables) == 0 {
				return fmt.Errorf("no tables found on connection %s", conn)
			}

			gen := codegen.NewEntityGenerator(pkg)
			written, err := gen.WriteTables(cmd.Context(), in, out, tables)
			for _, path := range written {
				ui.Success(cmd.OutOrStdout(), "wrote "+path, opts.noColor)
			}
			if err != nil {
				return err
			}
			e.logger.Debug("entities generated",
				zap.String("conn", conn),
				zap.Int("files", len(written)))
			return nil
		},
	}

	cmd.Flags().StringVar(&conn, "conn", "", "connection to introspect (default: default_conn)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "models", "package name of the generated files")
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&schemaName, "schema", "", "PostgreSQL schema or MySQL database to introspect")
	return cmd
}

// selectTables resolves the tables to generate from the arguments, a
// prompt, or everything available.
func selectTables(cmd *cobra.Command, args, available []string, noColor bool) ([]string, error) {
	if len(args) == 0 {
		if len(available) > 0 && interactive() {
			return pickTables(available)
		}
		return available, nil
	}

	known := make(map[string]string, len(available))
	for _, name := range available {
		known[strings.ToLower(name)] = name
	}
	tables := make([]string, 0, len(args))
	for _, arg := range args {
		name, ok := known[strings.ToLower(arg)]
		if !ok {
			ui.UnknownTable(arg, available, noColor).Write(cmd.ErrOrStderr())
			return nil, fmt.Errorf("unknown table %q", arg)
		}
		tables = append(tables, name)
	}
	return tables, nil
}
