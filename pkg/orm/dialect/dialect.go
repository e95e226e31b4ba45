// Package dialect holds the backend specific SQL rewrites the executor
// needs: pagination and placeholder rebinding.
package dialect

import (
	"regexp"
	"strconv"
	"strings"
)

// Name is a normalized dialect name
type Name string

const (
	NameMySQL     Name = "mysql"
	NameSQLite    Name = "sqlite"
	NamePostgres  Name = "postgres"
	NameOracle    Name = "oracle"
	NameSQLServer Name = "sqlserver"
	NameUnknown   Name = ""
)

// PagedSQL is the result of a pagination rewrite. Offset and Limit are
// bound, in that order, after the caller's own parameters.
type PagedSQL struct {
	SQL    string
	Offset int
	Limit  int
}

// Args appends the pagination values to params.
func (p PagedSQL) Args(params []any) []any {
	args := make([]any, 0, len(params)+2)
	args = append(args, params...)
	return append(args, p.Offset, p.Limit)
}

// Dialect describes one database backend.
type Dialect struct {
	name Name
}

// New builds a dialect from a dialect or driver name (case-insensitive).
// Unrecognized names yield the unknown dialect.
func New(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return Dialect{name: NameMySQL}
	case "sqlite", "sqlite3":
		return Dialect{name: NameSQLite}
	case "postgres", "postgresql", "pgx", "pq":
		return Dialect{name: NamePostgres}
	case "oracle", "godror", "oci8":
		return Dialect{name: NameOracle}
	case "sqlserver", "mssql":
		return Dialect{name: NameSQLServer}
	default:
		return Dialect{name: NameUnknown}
	}
}

// ForDriver returns the dialect for a database/sql driver name.
func ForDriver(driver string) Dialect {
	return New(driver)
}

// Name returns the normalized name
func (d Dialect) Name() Name {
	return d.name
}

// Known reports whether the dialect was recognized.
func (d Dialect) Known() bool {
	return d.name != NameUnknown
}

var orderBy = regexp.MustCompile(`(?i)\border\s+by\b`)

// Paginate rewrites a select statement to fetch limit rows starting at
// offset. The statement keeps ? placeholders; call Rebind before
// preparing it.
func (d Dialect) Paginate(query string, offset, limit int) PagedSQL {
	query = strings.TrimRight(strings.TrimSpace(query), ";")

	var paged string
	switch d.name {
	case NameMySQL, NameSQLite:
		paged = query + " limit ?,?"
	case NamePostgres:
		paged = query + " offset ? limit ?"
	case NameSQLServer:
		if !orderBy.MatchString(query) {
			query += " order by (select null)"
		}
		paged = query + " offset ? rows fetch next ? rows only"
	default:
		// Oracle 12c and anything else unknown get the SQL:2008 form.
		paged = query + " offset ? rows fetch next ? rows only"
	}

	return PagedSQL{SQL: paged, Offset: offset, Limit: limit}
}

// KeyStrategy is how an insert obtains a database-assigned primary key
type KeyStrategy int

const (
	// KeyLastInsertID binds NULL for the key and reads the driver's last
	// insert id.
	KeyLastInsertID KeyStrategy = iota
	// KeyReturning writes default for the key and appends
	// "returning <key>" to the insert.
	KeyReturning
	// KeyOutput leaves the identity column out of the insert and reads it
	// back through "output inserted.<key>".
	KeyOutput
)

// GeneratedKeys returns the key strategy of the dialect.
func (d Dialect) GeneratedKeys() KeyStrategy {
	switch d.name {
	case NamePostgres:
		return KeyReturning
	case NameSQLServer:
		// identity columns accept neither NULL nor default
		return KeyOutput
	default:
		return KeyLastInsertID
	}
}

// Rebind converts ? placeholders to the dialect's native form: $1, $2 for
// Postgres and :1, :2 for Oracle. Other dialects are returned unchanged.
//
// Quoted literals and identifiers are copied as is, and ?? is written as a
// single literal ?, which keeps operators such as jsonb's ? usable.
func (d Dialect) Rebind(query string) string {
	var prefix byte
	switch d.name {
	case NamePostgres:
		prefix = '$'
	case NameOracle:
		prefix = ':'
	default:
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 4)
	argIndex := 1
	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '?':
			if i+1 < len(query) && query[i+1] == '?' {
				i++
				break
			}
			sb.WriteByte(prefix)
			sb.WriteString(strconv.Itoa(argIndex))
			argIndex++
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}
