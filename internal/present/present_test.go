package present

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/db"
	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/feedback"
	"github.com/hpungsan/medscan/internal/history"
)

type retakeCounter struct{ n int }

func (r *retakeCounter) Retake() { r.n++ }

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func amoxicillin() *drug.RecognitionResult {
	return &drug.RecognitionResult{
		Success:           true,
		DrugInfo:          &drug.DrugInfo{Name: "Amoxicillin", Dosage: "0.5g", Usage: "three times daily"},
		ConfidencePercent: 91,
	}
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestNarration(t *testing.T) {
	r := amoxicillin()
	p := New(r, Options{})
	require.Equal(t,
		"Recognition succeeded. Drug name: Amoxicillin. Dosage: 0.5g. Usage: three times daily. Please use as directed by your physician.",
		p.Narration())

	r.VoiceGuidance = "backend says hello"
	require.Equal(t, "backend says hello", p.Narration(), "backend voice guidance wins")
}

func TestNarration_Chinese(t *testing.T) {
	p := New(&drug.RecognitionResult{Success: true, DrugInfo: &drug.DrugInfo{Name: "阿莫西林"}}, Options{Config: &config.Config{Locale: "zh"}})
	require.True(t, strings.HasPrefix(p.Narration(), "识别成功。"))
	require.True(t, strings.HasSuffix(p.Narration(), "请遵医嘱使用。"))
}

func TestNarration_EmptyInfo(t *testing.T) {
	p := New(&drug.RecognitionResult{Success: true, DrugInfo: &drug.DrugInfo{}}, Options{})
	require.Equal(t, "No drug information recognized.", p.Narration())
}

func TestDisplayTextAndMarkdown(t *testing.T) {
	p := New(amoxicillin(), Options{})
	require.Equal(t, "Drug name: Amoxicillin; Dosage: 0.5g; Usage: three times daily", p.DisplayText())
	require.Contains(t, p.Markdown(), "Amoxicillin")
	require.Contains(t, p.Markdown(), "91%")
}

func TestReadAloud(t *testing.T) {
	var notes feedback.Recorder
	p := New(amoxicillin(), Options{Notifier: &notes})
	p.ReadAloud()
	require.Equal(t, []string{p.Narration()}, notes.Messages())
}

func TestDebugDump(t *testing.T) {
	p := New(amoxicillin(), Options{})
	var back drug.RecognitionResult
	require.NoError(t, json.Unmarshal([]byte(p.DebugDump()), &back))
	require.Equal(t, "Amoxicillin", back.DrugInfo.Name)
	require.Contains(t, p.DebugDump(), "\n  \"success\": true")
}

func TestSave(t *testing.T) {
	database := setupDB(t)
	var notes feedback.Recorder
	p := New(amoxicillin(), Options{DB: database, Notifier: &notes, SessionID: "01JSESSION", Logger: quiet()})

	out, err := p.Save(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Amoxicillin", out.Record.DrugInfo.Name)
	require.Equal(t, p.Narration(), out.Record.VoiceGuidance)
	require.Equal(t, "01JSESSION", out.Record.SessionID)
	require.Equal(t, []string{"Saved"}, notes.Messages())

	list, err := history.List(context.Background(), database, history.ListInput{})
	require.NoError(t, err)
	require.Equal(t, 1, list.Pagination.Total)
}

func TestSave_NoDrugName(t *testing.T) {
	database := setupDB(t)
	var notes feedback.Recorder
	r := &drug.RecognitionResult{Success: true, DrugInfo: &drug.DrugInfo{Dosage: "1 tablet"}}
	p := New(r, Options{DB: database, Notifier: &notes, Logger: quiet()})

	_, err := p.Save(context.Background())
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Equal(t, []string{"No drug information to save"}, notes.Messages())

	list, err := history.List(context.Background(), database, history.ListInput{})
	require.NoError(t, err)
	require.Equal(t, 0, list.Pagination.Total)
}

func TestSave_StorageFailure(t *testing.T) {
	database := setupDB(t)
	database.Close()
	var notes feedback.Recorder
	p := New(amoxicillin(), Options{DB: database, Notifier: &notes, Logger: quiet()})

	_, err := p.Save(context.Background())
	require.True(t, errors.Is(err, errors.ErrPersistenceFailed))
	require.Equal(t, []string{"Save failed"}, notes.Messages())
}

func TestSave_NoDatabase(t *testing.T) {
	p := New(amoxicillin(), Options{Logger: quiet()})
	_, err := p.Save(context.Background())
	require.True(t, errors.Is(err, errors.ErrPersistenceFailed))
}

func TestRetake(t *testing.T) {
	var sess retakeCounter
	p := New(amoxicillin(), Options{Session: &sess})
	p.Retake()
	require.Equal(t, 1, sess.n)
	require.Nil(t, p.Result())
}
