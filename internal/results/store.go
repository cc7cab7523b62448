package results

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"racefeed/internal/config"
	"racefeed/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

var resultsSchema = sqlitedb.Schema{
	Name:    "results",
	DDL:     schemaSQL,
	Version: 1,
	Remedy:  "restore a backup made by the matching release",
}

const (
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = "2006-01-02"
)

// ErrNotFound reports a missing canonical row.
var ErrNotFound = errors.New("not found")

// Store is the canonical results database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the results database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.ResultsDBPath())
}

// OpenPath opens the results database at dbPath. Transactions take the write
// lock on BEGIN so concurrent resolvers queue up instead of failing on upgrade.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sqlitedb.Open(dbPath, sqlitedb.WithImmediateTx())
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := sqlitedb.EnsureSchema(context.Background(), db, resultsSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = func() time.Time { return now().UTC() }
}

// Tx is one unit of canonical writes. Every audited change made through a Tx
// is attributed to its actor.
type Tx struct {
	ctx   context.Context
	tx    *sql.Tx
	now   time.Time
	actor string
}

// WithTx runs fn in a write transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, actor string, fn func(tx *Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	tx := &Tx{ctx: ctx, tx: sqlTx, now: s.now(), actor: actor}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results view: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&Tx{ctx: ctx, tx: sqlTx, now: s.now(), actor: "view"})
}

// Actor returns the name changes in this transaction are attributed to.
func (tx *Tx) Actor() string {
	return tx.actor
}

func (tx *Tx) exec(query string, args ...any) (sql.Result, error) {
	return tx.tx.ExecContext(tx.ctx, query, args...)
}

func (tx *Tx) insert(query string, args ...any) (int64, error) {
	res, err := tx.exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (tx *Tx) stamp() string {
	return tx.now.Format(timeLayout)
}

// fieldChange is one candidate column update.
type fieldChange struct {
	column string
	old    any
	new    any
}

// updateIfChanged writes the columns whose value differs and audits each one.
// It returns the names of the columns that changed.
func (tx *Tx) updateIfChanged(table string, id int64, fields []fieldChange, touch bool) ([]string, error) {
	var (
		sets    []string
		args    []any
		changed []string
	)
	for _, f := range fields {
		oldText, newText := auditValue(f.old), auditValue(f.new)
		if oldText == newText {
			continue
		}
		sets = append(sets, f.column+" = ?")
		args = append(args, f.new)
		changed = append(changed, f.column)
		if _, err := tx.exec(
			`INSERT INTO changes (table_name, row_id, field, old_value, new_value, actor, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			table, id, f.column, oldText, newText, tx.actor, tx.stamp(),
		); err != nil {
			return nil, fmt.Errorf("audit %s.%s: %w", table, f.column, err)
		}
	}
	if len(sets) == 0 {
		return nil, nil
	}
	if touch {
		sets = append(sets, "updated_at = ?")
		args = append(args, tx.stamp())
	}
	args = append(args, id)
	if _, err := tx.exec("UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return nil, fmt.Errorf("update %s %d: %w", table, id, err)
	}
	return changed, nil
}

// audit records a change that is not a plain column update.
func (tx *Tx) audit(table string, id int64, field, oldValue, newValue string) error {
	_, err := tx.exec(
		`INSERT INTO changes (table_name, row_id, field, old_value, new_value, actor, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		table, id, field, oldValue, newValue, tx.actor, tx.stamp(),
	)
	return err
}

// Changes lists the audit trail of one row, oldest first.
func (tx *Tx) Changes(table string, id int64) ([]Change, error) {
	rows, err := tx.tx.QueryContext(tx.ctx,
		`SELECT table_name, row_id, field, old_value, new_value, actor, created_at FROM changes WHERE table_name = ? AND row_id = ? ORDER BY id`,
		table, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Change
	for rows.Next() {
		var (
			c  Change
			at string
		)
		if err := rows.Scan(&c.Table, &c.RowID, &c.Field, &c.OldValue, &c.NewValue, &c.Actor, &at); err != nil {
			return nil, err
		}
		c.At, _ = time.Parse(timeLayout, at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func auditValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		if value {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(value)
	}
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	parsed, err := time.Parse(dateLayout, raw.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
