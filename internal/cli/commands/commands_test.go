package commands

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entitydao/internal/cli/ui"
	"github.com/conduit-lang/entitydao/pkg/orm/stats"
)

type fixture struct {
	dir    string
	dbPath string
	config string
}

// newFixture creates a SQLite database with users and orders tables and
// a configuration pointing at it. conns is appended to the connections
// section, extra to the end of the file.
func newFixture(t *testing.T, conns, extra string) *fixture {
	t.Helper()

	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })

	dir := t.TempDir()
	f := &fixture{dir: dir, dbPath: filepath.Join(dir, "app.db")}

	db, err := sql.Open("sqlite3", f.dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`create table users (id integer primary key, email text not null, nickname text)`)
	require.NoError(t, err)
	_, err = db.Exec(`create table orders (id integer primary key, user_id integer not null, total real not null)`)
	require.NoError(t, err)

	content := fmt.Sprintf(`
default_conn: main
connections:
  main:
    driver: sqlite3
    dsn: %s
%slog:
  level: error
%s`, f.dbPath, conns, extra)
	f.config = filepath.Join(dir, "entitydao.yaml")
	require.NoError(t, os.WriteFile(f.config, []byte(content), 0o644))
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", f.config, "--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "daoctl", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"version", "ping", "gen", "stats"})

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestPing(t *testing.T) {
	f := newFixture(t, "", "")

	out, _, err := f.run(t, "ping")
	require.NoError(t, err)

	assert.Contains(t, out, "CONN")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "sqlite3")
	assert.Contains(t, out, "ok")
}

func TestPing_UnknownConnection(t *testing.T) {
	f := newFixture(t, "", "")

	_, errOut, err := f.run(t, "ping", "mian")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown connection "mian"`)
	assert.Contains(t, errOut, "Did you mean: main?")
}

func TestPing_Unreachable(t *testing.T) {
	f := newFixture(t, `  missing:
    driver: sqlite3
    dsn: file:/nonexistent/dir/app.db?mode=ro
`, "")

	out, _, err := f.run(t, "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 connections unreachable")
	assert.Contains(t, out, "missing")
}

func TestGen(t *testing.T) {
	f := newFixture(t, "", "")
	outDir := filepath.Join(f.dir, "models")

	out, _, err := f.run(t, "gen", "users", "--out", outDir, "--package", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ wrote "+filepath.Join(outDir, "users.go"))

	src, err := os.ReadFile(filepath.Join(outDir, "users.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "package models")
	assert.Contains(t, string(src), "type User struct {")

	_, err = os.Stat(filepath.Join(outDir, "orders.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestGen_AllTables(t *testing.T) {
	f := newFixture(t, "", "")
	outDir := filepath.Join(f.dir, "models")

	prev := interactive
	interactive = func() bool { return false }
	defer func() { interactive = prev }()

	_, _, err := f.run(t, "gen", "--out", outDir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "users.go"))
	assert.FileExists(t, filepath.Join(outDir, "orders.go"))
}

func TestGen_Interactive(t *testing.T) {
	f := newFixture(t, "", "")
	outDir := filepath.Join(f.dir, "models")

	prevInteractive, prevPick := interactive, pickTables
	defer func() { interactive, pickTables = prevInteractive, prevPick }()

	var offered []string
	interactive = func() bool { return true }
	pickTables = func(tables []string) ([]string, error) {
		offered = tables
		return []string{"orders"}, nil
	}

	_, _, err := f.run(t, "gen", "--out", outDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "users"}, offered)
	assert.FileExists(t, filepath.Join(outDir, "orders.go"))
	assert.NoFileExists(t, filepath.Join(outDir, "users.go"))
}

func TestGen_UnknownTable(t *testing.T) {
	f := newFixture(t, "", "")

	_, errOut, err := f.run(t, "gen", "usres", "--out", filepath.Join(f.dir, "models"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown table "usres"`)
	assert.Contains(t, errOut, "Did you mean: users?")
}

func TestGen_UnknownConnection(t *testing.T) {
	f := newFixture(t, "", "")

	_, errOut, err := f.run(t, "gen", "--conn", "replica")
	require.Error(t, err)
	assert.Contains(t, errOut, "UNKNOWN CONNECTION: replica")
}

func TestStatsTail(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, "", fmt.Sprintf(`stats:
  slow_threshold: 100ms
  redis:
    addr: %s
    key: test:stats
`, mr.Addr()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sink := stats.NewRedisSinkWithClient(client, stats.RedisConfig{Key: "test:stats"}, nil)

	ctx := context.Background()
	sink.Record(ctx, stats.Record{
		ConnName:  "main",
		SQL:       "select *\n  from users where id=? ",
		Rows:      1,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Total:     2 * time.Millisecond,
	})
	sink.Record(ctx, stats.Record{
		ConnName:  "main",
		SQL:       "insert into users (email) values (?)",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		Total:     time.Millisecond,
		Err:       "unique constraint violation",
	})

	t.Run("all", func(t *testing.T) {
		out, _, err := f.run(t, "stats", "tail")
		require.NoError(t, err)

		assert.Contains(t, out, "select * from users where id=?")
		assert.Contains(t, out, "unique constraint violation")
		assert.Contains(t, out, "2026-01-02T03:04:05Z")
	})

	t.Run("failed only", func(t *testing.T) {
		out, _, err := f.run(t, "stats", "tail", "--failed")
		require.NoError(t, err)

		assert.Contains(t, out, "insert into users")
		assert.NotContains(t, out, "select * from users")
	})

	t.Run("limit", func(t *testing.T) {
		out, _, err := f.run(t, "stats", "tail", "-n", "1")
		require.NoError(t, err)

		// newest first
		assert.Contains(t, out, "insert into users")
		assert.NotContains(t, out, "select * from users")
	})
}

func TestStatsTail_FailedBeforeLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, "", fmt.Sprintf("stats:\n  redis:\n    addr: %s\n    key: test:stats\n", mr.Addr()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sink := stats.NewRedisSinkWithClient(client, stats.RedisConfig{Key: "test:stats"}, nil)

	ctx := context.Background()
	sink.Record(ctx, stats.Record{ConnName: "main", SQL: "delete from orders", Err: "locked"})
	sink.Record(ctx, stats.Record{ConnName: "main", SQL: "select * from users"})
	sink.Record(ctx, stats.Record{ConnName: "main", SQL: "select * from orders"})

	out, _, err := f.run(t, "stats", "tail", "--failed", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "delete from orders")
	assert.NotContains(t, out, "no statements recorded")
}

func TestStatsTail_Empty(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, "", fmt.Sprintf("stats:\n  redis:\n    addr: %s\n", mr.Addr()))

	out, _, err := f.run(t, "stats", "tail")
	require.NoError(t, err)
	assert.Equal(t, "no statements recorded\n", out)
}

func TestServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	assert.NoError(t, serve(ctx, srv))
}

func TestRecordStatus(t *testing.T) {
	assert.Equal(t, ui.StatusFailed, recordStatus(stats.Record{Err: "boom"}, time.Second))
	assert.Equal(t, ui.StatusSlow, recordStatus(stats.Record{Total: 2 * time.Second}, time.Second))
	assert.Equal(t, ui.StatusNone, recordStatus(stats.Record{Total: 2 * time.Second}, 0))
	assert.Equal(t, ui.StatusNone, recordStatus(stats.Record{Total: time.Millisecond}, time.Second))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "select 1", truncate("select\n\t1", 10))
	assert.Equal(t, "select ...", truncate("select * from users", 10))
	assert.Equal(t, "where ü...", truncate("where üüüüüüüü", 10))
	assert.Equal(t, "where üüüü", truncate("where üüüü", 10))
}
