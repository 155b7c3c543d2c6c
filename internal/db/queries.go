package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `
	SELECT id, drug_info_json, confidence, voice_guidance,
		session_id, placeholder, created_at
	FROM history
`

// NextID returns a monotonic, time-derived id: now in Unix milliseconds, or
// one past the current maximum when the clock has not advanced.
func NextID(ctx context.Context, q Querier, now time.Time) (int64, error) {
	var maxID sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT MAX(id) FROM history").Scan(&maxID); err != nil {
		return 0, errors.NewInternal(err)
	}
	id := now.UnixMilli()
	if maxID.Valid && maxID.Int64 >= id {
		id = maxID.Int64 + 1
	}
	return id, nil
}

// Insert stores a new history record. r.ID must already be assigned.
func Insert(ctx context.Context, q Querier, r *drug.HistoryRecord, createdAt time.Time) error {
	info, err := json.Marshal(r.DrugInfo)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO history (
			id, drug_name, drug_info_json, confidence, voice_guidance,
			session_id, placeholder, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		r.ID, r.DrugInfo.Name, string(info), r.ConfidencePercent, r.VoiceGuidance,
		toNullString(r.SessionID), r.Placeholder, createdAt.UnixMilli(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Trim deletes every record except the newest keep. It returns how many
// rows were removed.
func Trim(ctx context.Context, q Querier, keep int) (int, error) {
	query := `
		DELETE FROM history
		WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)
	`
	result, err := q.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// GetByID retrieves one record.
func GetByID(ctx context.Context, q Querier, id int64) (*drug.HistoryRecord, error) {
	row := q.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(formatID(id))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// List returns records newest first along with the total count.
func List(ctx context.Context, q Querier, limit, offset int) ([]drug.HistoryRecord, int, error) {
	var total int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx, selectColumns+" ORDER BY id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []drug.HistoryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// StreamForExport returns all records newest first. The caller closes rows
// and scans each with ScanRecordFromRows.
func StreamForExport(ctx context.Context, q Querier) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, selectColumns+" ORDER BY id DESC")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanRecordFromRows scans the current row of a StreamForExport result.
func ScanRecordFromRows(rows *sql.Rows) (*drug.HistoryRecord, error) {
	return scanRecord(rows)
}

// DeleteAll removes every record and returns the count.
func DeleteAll(ctx context.Context, q Querier) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM history")
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a HistoryRecord.
func scanRecord(row scanner) (*drug.HistoryRecord, error) {
	var (
		r         drug.HistoryRecord
		infoJSON  string
		sessionID sql.NullString
		createdAt int64
	)

	err := row.Scan(
		&r.ID, &infoJSON, &r.ConfidencePercent, &r.VoiceGuidance,
		&sessionID, &r.Placeholder, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(infoJSON), &r.DrugInfo); err != nil {
		return nil, err
	}
	r.SessionID = sessionID.String
	r.Timestamp = drug.FormatTimestamp(time.UnixMilli(createdAt))

	return &r, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
