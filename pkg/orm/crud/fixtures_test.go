package crud

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
	"github.com/conduit-lang/entitydao/pkg/orm/stats"
	"github.com/conduit-lang/entitydao/pkg/orm/tracking"
	"github.com/conduit-lang/entitydao/pkg/orm/transaction"
)

// item declares name before id so insert order differs from field order
type item struct {
	tracking.Tracker
	ID   int64
	Name string
}

func (*item) Descriptor() *schema.Descriptor[item] {
	return &schema.Descriptor[item]{
		Table: "t",
		Columns: []schema.Column[item]{
			schema.Field("name", func(i *item) *string { return &i.Name }),
			schema.Field("id", func(i *item) *int64 { return &i.ID }, schema.PrimaryKey()),
		},
	}
}

func (i *item) SetName(v string) { tracking.Set(&i.Tracker, "name", &i.Name, v) }

type counter struct {
	tracking.Tracker
	ID    int64
	Label string
}

func (*counter) Descriptor() *schema.Descriptor[counter] {
	return &schema.Descriptor[counter]{
		Table: "counter",
		Columns: []schema.Column[counter]{
			schema.Field("id", func(c *counter) *int64 { return &c.ID }, schema.PrimaryKey(), schema.AutoIncrement()),
			schema.Field("label", func(c *counter) *string { return &c.Label }),
		},
	}
}

func (c *counter) SetLabel(v string) { tracking.Set(&c.Tracker, "label", &c.Label, v) }

type membership struct {
	tracking.Tracker
	GroupID int64
	UserID  int64
	Role    string
}

func (*membership) Descriptor() *schema.Descriptor[membership] {
	return &schema.Descriptor[membership]{
		Table: "membership",
		Columns: []schema.Column[membership]{
			schema.Field("group_id", func(m *membership) *int64 { return &m.GroupID }, schema.PrimaryKey()),
			schema.Field("user_id", func(m *membership) *int64 { return &m.UserID }, schema.PrimaryKey()),
			schema.Field("role", func(m *membership) *string { return &m.Role }),
		},
	}
}

func (m *membership) SetRole(v string) { tracking.Set(&m.Tracker, "role", &m.Role, v) }

// event has no primary key
type event struct {
	tracking.Tracker
	Message string
}

func (*event) Descriptor() *schema.Descriptor[event] {
	return &schema.Descriptor[event]{
		Table: "event",
		Columns: []schema.Column[event]{
			schema.Field("message", func(e *event) *string { return &e.Message }),
		},
	}
}

func (e *event) SetMessage(v string) { tracking.Set(&e.Tracker, "message", &e.Message, v) }

// note declares no table; callers must pass one
type note struct {
	tracking.Tracker
	ID int64
}

func (*note) Descriptor() *schema.Descriptor[note] {
	return &schema.Descriptor[note]{
		Columns: []schema.Column[note]{
			schema.Field("id", func(n *note) *int64 { return &n.ID }, schema.PrimaryKey()),
		},
	}
}

// reading picks its table per instance
type reading struct {
	tracking.Tracker
	ID    int64
	Month string
}

func (*reading) Descriptor() *schema.Descriptor[reading] {
	return &schema.Descriptor[reading]{
		Table: "reading",
		Columns: []schema.Column[reading]{
			schema.Field("id", func(r *reading) *int64 { return &r.ID }, schema.PrimaryKey()),
		},
	}
}

func (r *reading) EntityTableName() string {
	if r.Month == "" {
		return ""
	}
	return "reading_" + r.Month
}

func newMockExecutor(t *testing.T, driver string, opts ...Option) (*Executor, sqlmock.Sqlmock, *stats.Collector) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mgr := transaction.NewManager()
	mgr.Add("main", db, dialect.New(driver))

	collector := stats.NewCollector(0)
	opts = append([]Option{WithRouter(route.New("main")), WithSink(collector)}, opts...)
	return NewExecutor(mgr, opts...), mock, collector
}

func lastRecord(t *testing.T, c *stats.Collector) stats.Record {
	t.Helper()

	recs, err := c.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	return recs[0]
}
