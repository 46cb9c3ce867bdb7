package dump

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Postgres produces a portable SQL dump of the public schema over an
// existing connection pool. Schemas are rebuilt from information_schema
// (Postgres has no SHOW CREATE TABLE), rows become one INSERT each with
// values escaped for standard-conforming strings.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres returns a dumper over db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

// ListTables returns the base tables of the public schema, sorted by name
// so dumps are stable run to run.
func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// SchemaOf reconstructs a CREATE TABLE statement for table from the column
// catalog. It covers types, NOT NULL, and defaults; constraints beyond that
// are out of scope for a portable text dump.
func (p *Postgres) SchemaOf(ctx context.Context, table string) (string, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			name, dataType, nullable string
			maxLen                   sql.NullInt64
			colDefault               sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &maxLen, &nullable, &colDefault); err != nil {
			return "", err
		}
		col := quoteIdent(name) + " " + dataType
		if maxLen.Valid {
			col += "(" + strconv.FormatInt(maxLen.Int64, 10) + ")"
		}
		if colDefault.Valid {
			col += " DEFAULT " + colDefault.String
		}
		if nullable == "NO" {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %q has no columns", table)
	}

	return "CREATE TABLE " + quoteIdent(table) + " (\n    " + strings.Join(cols, ",\n    ") + "\n)", nil
}

// DumpTable writes one INSERT statement per row of table to w.
func (p *Postgres) DumpTable(ctx context.Context, table string, w io.Writer) error {
	rows, err := p.DB.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var sb strings.Builder
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		sb.Reset()
		sb.WriteString("INSERT INTO ")
		sb.WriteString(quoteIdent(table))
		sb.WriteString(" VALUES (")
		for i, v := range values {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(literal(v))
		}
		sb.WriteString(");\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return rows.Err()
}

// literal renders one scanned value as a SQL literal.
func literal(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return quoteString(x.Format("2006-01-02 15:04:05.999999-07"))
	case []byte:
		return quoteString(string(x))
	case string:
		return quoteString(x)
	default:
		return quoteString(fmt.Sprint(x))
	}
}

// quoteString escapes a value for a standard-conforming string literal:
// single quotes are doubled.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
