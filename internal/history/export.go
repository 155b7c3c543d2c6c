package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/db"
	"github.com/hpungsan/medscan/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional, default: ~/.medscan/exports/history-<timestamp>.jsonl
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	MedscanExport bool   `json:"_medscan_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// Export writes every record, newest first, to a JSONL file. The file is
// written to a temp name and renamed into place so a failed export leaves
// any existing file intact.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, "history-"+now.Format("2006-01-02T150405")+".jsonl")
	}

	if err := ValidatePath(exportPath, cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)

	header := ExportHeader{MedscanExport: true, SchemaVersion: "1.0", ExportedAt: now.Unix()}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.StreamForExport(ctx, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("export cancelled: %w", err))
		}

		rec, err := db.ScanRecordFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Encode(rec); err != nil {
			return nil, errors.NewInternal(err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}
