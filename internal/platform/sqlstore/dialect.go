package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// sqliteTimeLayout sorts lexically in chronological order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	name     string
	numbered bool
	// lockSuffix is appended to a SELECT to lock the selected row.
	lockSuffix string
	// lockByUpdate takes the row lock with a no-op UPDATE where the
	// database has no row-level locking clause.
	lockByUpdate bool
	textTime     bool
	goose        goose.Dialect
}

// Supported dialects.
var (
	Postgres = Dialect{
		name:       "postgres",
		numbered:   true,
		lockSuffix: " FOR UPDATE NOWAIT",
		goose:      goose.DialectPostgres,
	}
	SQLite = Dialect{
		name:         "sqlite",
		lockByUpdate: true,
		textTime:     true,
		goose:        goose.DialectSQLite3,
	}
)

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Name returns the dialect name.
func (d Dialect) Name() string { return d.name }

func (d Dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) bindTime(t time.Time) any {
	t = t.UTC()
	if d.textTime {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// query accumulates SQL text and its positional arguments.
type query struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func newQuery(d Dialect) *query {
	return &query{d: d}
}

func (q *query) write(parts ...string) *query {
	for _, p := range parts {
		q.sb.WriteString(p)
	}
	return q
}

// arg records v and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return q.d.placeholder(len(q.args))
}

// in renders a parenthesized placeholder list for ids.
func (q *query) in(ids []string) string {
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = q.arg(id)
	}
	return "(" + strings.Join(ph, ", ") + ")"
}

func (q *query) String() string {
	return q.sb.String()
}
