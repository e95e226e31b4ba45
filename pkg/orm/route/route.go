// Package route resolves logical connection names from table names.
package route

import (
	"regexp"
	"strings"
)

// Access distinguishes read traffic from write traffic.
type Access int

const (
	Read Access = iota
	Write
)

func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}

// Rule maps tables whose name starts with Prefix to logical connections.
// An empty Read or Write falls back to the other side, then to the
// router's default.
type Rule struct {
	Prefix string
	Read   string
	Write  string
}

// Router picks a logical connection per table. Rules are evaluated in
// order and the first prefix match wins. A Router is immutable after
// construction and safe for concurrent use.
type Router struct {
	def   string
	rules []Rule
}

// New creates a router with a default connection and ordered rules.
func New(defaultConn string, rules ...Rule) *Router {
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		r.Prefix = strings.ToLower(r.Prefix)
		normalized[i] = r
	}
	return &Router{def: defaultConn, rules: normalized}
}

// Default returns the fallback connection name.
func (r *Router) Default() string {
	return r.def
}

// Route returns the connection for table. The result is empty only when
// nothing matches and no default is configured.
func (r *Router) Route(table string, access Access) string {
	table = strings.ToLower(table)
	for _, rule := range r.rules {
		if !strings.HasPrefix(table, rule.Prefix) {
			continue
		}
		conn := rule.Write
		other := rule.Read
		if access == Read {
			conn, other = other, conn
		}
		if conn == "" {
			conn = other
		}
		if conn != "" {
			return conn
		}
	}
	return r.def
}

var tableRef = regexp.MustCompile("(?i)\\b(?:from|into|update)\\s+[\"`\\[]?([a-z0-9_$.]+)")

// TableFromSQL extracts the first table named after FROM, INTO or UPDATE,
// or "" when there is none. Names outside parentheses win, so
// extract(year from created_at) does not count; when every match sits in
// parentheses, as with a FROM over a subquery, the first one is used.
func TableFromSQL(query string) string {
	matches := tableRef.FindAllStringSubmatchIndex(query, -1)
	if matches == nil {
		return ""
	}

	m := matches[0]
	depth, pos := 0, 0
	for _, cand := range matches {
		for ; pos < cand[0]; pos++ {
			switch query[pos] {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if depth <= 0 {
			m = cand
			break
		}
	}

	table := query[m[2]:m[3]]
	// schema.table routes by the bare table name
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return strings.ToLower(table)
}

// RouteSQL routes a raw statement by the first table it names.
func (r *Router) RouteSQL(query string, access Access) string {
	return r.Route(TableFromSQL(query), access)
}
