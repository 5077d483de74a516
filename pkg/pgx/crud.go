package pgx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

var ErrNoColumns = errors.New("no columns provided")

type queryBuilder struct {
	schema    string
	table     string
	values    []any
	nextIndex int
}

func newQueryBuilder(tableName string, schema ...string) *queryBuilder {
	schemaName := "public"
	if len(schema) > 0 && schema[0] != "" {
		schemaName = schema[0]
	}
	return &queryBuilder{
		schema:    schemaName,
		table:     tableName,
		nextIndex: 1,
	}
}

func (qb *queryBuilder) addValue(value any) string {
	qb.values = append(qb.values, value)
	placeholder := fmt.Sprintf("$%d", qb.nextIndex)
	qb.nextIndex++
	return placeholder
}

func (qb *queryBuilder) tableIdentifier() string {
	return pgx.Identifier{qb.schema, qb.table}.Sanitize()
}

// UpsertQuery builds an INSERT ... ON CONFLICT statement for data. On a
// conflict with conflictColumn only the columns named in update are
// overwritten from the excluded row; with no update columns the conflicting
// insert is skipped. Columns are emitted in sorted order.
func UpsertQuery(tableName, conflictColumn string, data map[string]any, update []string, schema ...string) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, ErrNoColumns
	}
	if _, ok := data[conflictColumn]; !ok {
		return "", nil, fmt.Errorf("conflict column %q not in data", conflictColumn)
	}

	qb := newQueryBuilder(tableName, schema...)

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	columns := make([]string, 0, len(keys))
	placeholders := make([]string, 0, len(keys))
	for _, key := range keys {
		columns = append(columns, pgx.Identifier{key}.Sanitize())
		placeholders = append(placeholders, qb.addValue(data[key]))
	}

	action := "DO NOTHING"
	if len(update) > 0 {
		setClauses := make([]string, 0, len(update))
		for _, col := range update {
			if _, ok := data[col]; !ok {
				return "", nil, fmt.Errorf("update column %q not in data", col)
			}
			ident := pgx.Identifier{col}.Sanitize()
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
		}
		action = "DO UPDATE SET " + strings.Join(setClauses, ", ")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		qb.tableIdentifier(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		pgx.Identifier{conflictColumn}.Sanitize(),
		action,
	)
	return query, qb.values, nil
}

// UpsertRow inserts data into the table, merging into the row that already
// holds the same conflictColumn value. See UpsertQuery.
func UpsertRow(ctx context.Context, conn Conn, tableName, conflictColumn string, data map[string]any, update []string, schema ...string) error {
	query, args, err := UpsertQuery(tableName, conflictColumn, data, update, schema...)
	if err != nil {
		return err
	}

	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}
