package sqlite

import (
	"context"
	"database/sql"
)

type credentialRow struct {
	ID              string
	UseCount        int64
	LastUsedAt      int64
	LastValidatedAt int64
	Valid           sql.NullBool
}

type queries struct {
	db *sql.DB
}

const listCredentials = `SELECT id, use_count, last_used_at, last_validated_at, valid FROM credentials`

func (q *queries) ListCredentials(ctx context.Context) ([]credentialRow, error) {
	rows, err := q.db.QueryContext(ctx, listCredentials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []credentialRow
	for rows.Next() {
		var r credentialRow
		if err := rows.Scan(&r.ID, &r.UseCount, &r.LastUsedAt, &r.LastValidatedAt, &r.Valid); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const recordUse = `INSERT INTO credentials (id, use_count, last_used_at) VALUES (?, 1, ?)
ON CONFLICT(id) DO UPDATE SET use_count = use_count + 1, last_used_at = excluded.last_used_at`

func (q *queries) RecordUse(ctx context.Context, id string, at int64) error {
	_, err := q.db.ExecContext(ctx, recordUse, id, at)
	return err
}

const recordCheck = `INSERT INTO credentials (id, last_validated_at, valid) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET last_validated_at = excluded.last_validated_at, valid = excluded.valid`

func (q *queries) RecordCheck(ctx context.Context, id string, at int64, valid bool) error {
	_, err := q.db.ExecContext(ctx, recordCheck, id, at, valid)
	return err
}

const deleteCredential = `DELETE FROM credentials WHERE id = ?`

func (q *queries) DeleteCredential(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteCredential, id)
	return err
}
