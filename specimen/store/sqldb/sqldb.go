package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/specimen/extract"
)

// Static and compile-time check to ensure Store implements PageFetcher.
var _ extract.PageFetcher = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// The table holding the specimen records.
	Table string

	// The ordering column used when a query does not name one.
	DefaultOrderBy string

	// Statements executed once on the connection before any query, ie.
	// "SET max_heap_table_size = 1024 * 1024 * 1024".
	SessionStatements []string
}

// Store reads pages of specimen rows from a relational database. It holds a
// single dedicated connection for its whole lifetime so that session
// settings apply to every query it issues.
type Store struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect Dialect
	opts    Options
}

// Open connects to the database identified by uri and prepares the session.
func Open(ctx context.Context, uri string, opts Options) (*Store, error) {
	dialect, dsn, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	if err = validateIdentifier(opts.Table); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}

	if opts.DefaultOrderBy != "" {
		if err = validateIdentifier(opts.DefaultOrderBy); err != nil {
			return nil, fmt.Errorf("order by: %w", err)
		}
	}

	db, err := sql.Open(dialect.String(), dsn)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("connect to %s source: %w", dialect, err)
	}

	for _, stmt := range opts.SessionStatements {
		if _, err = conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			_ = db.Close()

			return nil, fmt.Errorf("session statement %q: %w", stmt, err)
		}
	}

	return &Store{
		db:      db,
		conn:    conn,
		dialect: dialect,
		opts:    opts,
	}, nil
}

// Close releases the dedicated connection and the underlying pool.
func (s *Store) Close() error {
	connErr := s.conn.Close()
	if err := s.db.Close(); err != nil {
		return err
	}

	return connErr
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// FetchPage returns at most limit rows matching q, skipping the first
// offset rows of the ordered result set.
func (s *Store) FetchPage(
	ctx context.Context, q extract.Query, limit, offset int,
) ([]specimen.RawRow, error) {
	query, args, err := s.pageQuery(q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	return page, nil
}

func (s *Store) pageQuery(q extract.Query, limit, offset int) (string, []interface{}, error) {
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = s.opts.DefaultOrderBy
	}

	if orderBy == "" {
		return "", nil, ErrMissingOrderBy
	}

	if err := validateIdentifier(orderBy); err != nil {
		return "", nil, err
	}

	var (
		sb   strings.Builder
		args = make([]interface{}, 0, len(q.Filter)+2)
	)

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(s.opts.Table)

	for i, cond := range q.Filter {
		if err := validateIdentifier(cond.Column); err != nil {
			return "", nil, err
		}

		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}

		args = append(args, cond.Value)
		sb.WriteString(cond.Column)
		sb.WriteString(" = ")
		sb.WriteString(s.dialect.placeholder(len(args)))
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)

	args = append(args, limit)
	sb.WriteString(" LIMIT ")
	sb.WriteString(s.dialect.placeholder(len(args)))

	args = append(args, offset)
	sb.WriteString(" OFFSET ")
	sb.WriteString(s.dialect.placeholder(len(args)))

	return sb.String(), args, nil
}

func scanRows(rows *sql.Rows) ([]specimen.RawRow, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	vals := make([]interface{}, len(cols))
	for i := range vals {
		vals[i] = new(interface{})
	}

	var page []specimen.RawRow
	for rows.Next() {
		if err = rows.Scan(vals...); err != nil {
			return nil, err
		}

		row := make(specimen.RawRow, len(cols))
		for i, col := range cols {
			if v, ok := stringValue(*(vals[i].(*interface{}))); ok {
				row[col] = v
			}
		}

		page = append(page, row)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return page, nil
}

// stringValue converts a scanned column value into its string form. It
// returns false for NULL values.
func stringValue(v interface{}) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), true
	default:
		return fmt.Sprint(v), true
	}
}
