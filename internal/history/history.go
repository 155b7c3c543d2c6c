// Package history implements the saved-results operations on top of the
// SQLite store: a bounded, newest-first list of recognitions.
package history

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/db"
	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = config.MaxHistoryCap
)

// NoDrugInfoMessage is the rejection for saving a result without a name.
const NoDrugInfoMessage = "no drug information to save"

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	Result        *drug.RecognitionResult // required, must carry a drug name
	VoiceGuidance string                  // optional, default: Result.VoiceGuidance
	SessionID     string                  // optional
	Now           time.Time               // optional, default: time.Now()
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	Record  drug.HistoryRecord `json:"record"`
	Evicted int                `json:"evicted"`
}

// Save appends a record and evicts the oldest beyond the configured cap,
// all in one transaction.
func Save(ctx context.Context, database *sql.DB, cfg *config.Config, input SaveInput) (*SaveOutput, error) {
	r := input.Result
	if r == nil || !r.Success || !r.DrugInfo.HasName() {
		return nil, errors.NewInvalidRequest(NoDrugInfoMessage)
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	keep := config.MaxHistoryCap
	if cfg != nil {
		keep = cfg.EffectiveHistoryCap()
	}

	info := *r.DrugInfo
	info.Normalize()
	voice := strings.TrimSpace(input.VoiceGuidance)
	if voice == "" {
		voice = r.VoiceGuidance
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewPersistenceFailed(err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := db.NextID(ctx, tx, now)
	if err != nil {
		return nil, errors.NewPersistenceFailed(err)
	}

	rec := drug.HistoryRecord{
		ID:                id,
		DrugInfo:          info,
		Timestamp:         drug.FormatTimestamp(now),
		ConfidencePercent: drug.ClampConfidence(r.ConfidencePercent),
		VoiceGuidance:     voice,
		SessionID:         input.SessionID,
		Placeholder:       r.Placeholder,
	}
	if err := db.Insert(ctx, tx, &rec, now); err != nil {
		return nil, errors.NewPersistenceFailed(err)
	}

	evicted, err := db.Trim(ctx, tx, keep)
	if err != nil {
		return nil, errors.NewPersistenceFailed(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewPersistenceFailed(err)
	}

	return &SaveOutput{Record: rec, Evicted: evicted}, nil
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int // default: 20, max: 50
	Offset int // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []drug.HistoryRecord `json:"items"`
	Pagination Pagination           `json:"pagination"`
	Sort       string               `json:"sort"`
}

// List returns saved records, most recent first.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.List(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []drug.HistoryRecord{}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "newest_first",
	}, nil
}

// Fetch returns one record by id.
func Fetch(ctx context.Context, database *sql.DB, id int64) (*drug.HistoryRecord, error) {
	if id <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}
	return db.GetByID(ctx, database, id)
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Cleared int    `json:"cleared"`
	Message string `json:"message"`
}

// Clear removes every saved record.
func Clear(ctx context.Context, database *sql.DB) (*ClearOutput, error) {
	n, err := db.DeleteAll(ctx, database)
	if err != nil {
		return nil, err
	}
	msg := "History cleared"
	if n == 0 {
		msg = "History was already empty"
	}
	return &ClearOutput{Cleared: n, Message: msg}, nil
}
