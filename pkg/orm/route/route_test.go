package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouter_Route(t *testing.T) {
	r := New("main",
		Rule{Prefix: "audit_", Read: "replica", Write: "main"},
		Rule{Prefix: "Report", Read: "warehouse"},
		Rule{Prefix: "log_", Write: "logs"},
	)

	tests := []struct {
		name   string
		table  string
		access Access
		want   string
	}{
		{"read rule", "audit_event", Read, "replica"},
		{"write rule", "audit_event", Write, "main"},
		{"prefix is case-insensitive", "REPORT_daily", Read, "warehouse"},
		{"write falls back to read side", "report_daily", Write, "warehouse"},
		{"read falls back to write side", "log_entry", Read, "logs"},
		{"no match uses default", "users", Write, "main"},
		{"empty table uses default", "", Read, "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.table, tt.access))
		})
	}
}

func TestRouter_NoDefault(t *testing.T) {
	r := New("", Rule{Prefix: "a_", Read: "ra"})

	assert.Equal(t, "", r.Route("users", Read))
	assert.Equal(t, "ra", r.Route("a_x", Write))
	assert.Equal(t, "", r.Default())
}

func TestTableFromSQL(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"select * from users where id=?", "users"},
		{"SELECT id FROM Audit_Event e JOIN users u ON u.id = e.uid", "audit_event"},
		{"select * from public.orders", "orders"},
		{"select * from `orders`", "orders"},
		{"select count(1) from (select * from users) as subquery", "users"},
		{"insert into audit_event (id) values (?)", "audit_event"},
		{"UPDATE users SET name=? WHERE id=?", "users"},
		{"delete from users where id=?", "users"},
		{"select extract(year from created_at) y from audit_log", "audit_log"},
		{"select coalesce((select max(id) from orders), 0) from users", "users"},
		{"select 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, TableFromSQL(tt.query))
		})
	}
}

func TestRouter_RouteSQL(t *testing.T) {
	r := New("main", Rule{Prefix: "audit_", Read: "replica", Write: "main"})

	assert.Equal(t, "replica", r.RouteSQL("select * from audit_event where id=?", Read))
	assert.Equal(t, "main", r.RouteSQL("select * from users", Read))
}

func TestAccess_String(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
}
