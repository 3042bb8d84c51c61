// Package repo provides typed repositories over the lifedeck SQLite tables.
//
// Each entity family gets a small repository with the same verbs: GetAll
// (ordered by the family's natural key), scoped queries, Upsert (insert or
// replace keyed by id) and Delete. Multi-table deletes cascade inside a
// single transaction. Reads never fail on a malformed JSON column; the
// field degrades to its default and the rest of the row is kept.
//
// Queries are built with squirrel and executed through sqlx, so the same
// repository code runs against *sqlx.DB or a *sqlx.Tx.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

// inTx runs fn inside a transaction. When q is already a transaction fn
// joins it and the caller owns commit/rollback.
func inTx(ctx context.Context, q Querier, fn func(Querier) error) error {
	conn, ok := q.(*sqlx.DB)
	if !ok {
		return fn(q)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// selectAll runs b and converts every scanned row with conv.
func selectAll[R, T any](ctx context.Context, q Querier, b sq.SelectBuilder, conv func(R) T) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []R
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, conv(r))
	}
	return out, nil
}

// upsertSQL builds a named INSERT ... ON CONFLICT DO UPDATE statement.
// cols[0] is the conflict key.
func upsertSQL(table string, cols []string) string {
	named := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		named[i] = ":" + c
		if i > 0 {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), strings.Join(named, ", "), cols[0], strings.Join(sets, ", "))
}

func deleteByID(ctx context.Context, q Querier, table, id string) error {
	query, args, err := sq.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", table, id, err)
	}
	return nil
}

// clearRef nulls column wherever it references id.
func clearRef(ctx context.Context, q Querier, table, column, id string) error {
	query, args, err := sq.Update(table).Set(column, nil).Where(sq.Eq{column: id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear %s.%s: %w", table, column, err)
	}
	return nil
}

func clearTable(ctx context.Context, q Querier, table string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// Timestamps are stored as RFC3339Nano text in UTC.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func refToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullToRef(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// refEq matches a nullable reference column; nil selects IS NULL.
func refEq(column string, ref *string) sq.Eq {
	if ref == nil {
		return sq.Eq{column: nil}
	}
	return sq.Eq{column: *ref}
}
