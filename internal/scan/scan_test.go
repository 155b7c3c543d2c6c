package scan

import (
	"context"
	"database/sql"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/medscan/internal/backend"
	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/db"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/feedback"
	"github.com/hpungsan/medscan/internal/session"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

const recognized = `{"success":true,"drug_info":{"drug_name":"Amoxicillin","dosage":"0.5g"},"ocr_confidence":88}`

// fakeService answers analyze-image with the scripted bodies in order,
// repeating the last one.
type fakeService struct {
	mu        sync.Mutex
	analyze   []string
	recognize string
	healthy   bool
	analyzed  int
	shots     []string // uploaded filename of each analyze call
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/api/health":
		if !f.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case "/api/analyze-image":
		if _, hdr, err := r.FormFile("image"); err == nil {
			f.shots = append(f.shots, hdr.Filename)
		}
		body := f.analyze[min(f.analyzed, len(f.analyze)-1)]
		f.analyzed++
		_, _ = w.Write([]byte(body))
	case "/api/recognize":
		_, _ = w.Write([]byte(f.recognize))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) Shots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shots...)
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newDeps(t *testing.T, svc *fakeService) Deps {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	cfg := config.DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	client := backend.New(cfg.BaseURL, 5*time.Second,
		backend.WithHTTPClient(srv.Client()),
		backend.WithLogger(quiet()),
	)
	return Deps{Config: cfg, Backend: client, Logger: quiet()}
}

func writeImages(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, "label"+string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(paths[i], pngHeader, 0600))
	}
	return paths
}

func proceed() string { return `{"analysis":{"guidance":{"action":"continue"}}}` }

func TestRun_Recognized(t *testing.T) {
	svc := &fakeService{healthy: true, analyze: []string{proceed()}, recognize: recognized}
	deps := newDeps(t, svc)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1)})
	require.NoError(t, err)
	require.True(t, out.Recognized())
	require.Equal(t, "Amoxicillin", out.Result.DrugInfo.Name)
	require.Equal(t, session.StatusDone, out.Session.Status)
	require.Equal(t, 1, out.Session.Attempts)
	require.Contains(t, out.Narration, "Amoxicillin")
	require.Contains(t, out.Markdown, "88%")
	require.Nil(t, out.Saved)
	require.Contains(t, out.Notifications, "Recognizing drug information")
	require.Empty(t, out.Transitions)
}

func TestRun_RetakeMovesToNextImage(t *testing.T) {
	svc := &fakeService{
		healthy:   true,
		analyze:   []string{`{"analysis":{"guidance":{"action":"retake","message":"Image is blurry"}}}`, proceed()},
		recognize: recognized,
	}
	deps := newDeps(t, svc)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 2), Debug: true})
	require.NoError(t, err)
	require.True(t, out.Recognized())
	require.Equal(t, 2, out.Session.Attempts)
	require.Contains(t, out.Notifications, "Image is blurry")
	require.Equal(t, []string{"labela.png", "labelb.png"}, svc.Shots())
	require.NotEmpty(t, out.Transitions)
	require.Contains(t, out.Raw, `"success": true`)
}

func TestRun_RetakeWithoutMoreImages(t *testing.T) {
	svc := &fakeService{
		healthy: true,
		analyze: []string{`{"analysis":{"guidance":{"action":"retake"}}}`},
	}
	deps := newDeps(t, svc)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1)})
	require.NoError(t, err)
	require.False(t, out.Recognized())
	require.Equal(t, session.StatusIdle, out.Session.Status)
	require.Contains(t, out.Notifications, "Please retake the photo")
}

func TestRun_WaitsOutFlashRetry(t *testing.T) {
	svc := &fakeService{
		healthy:   true,
		analyze:   []string{`{"analysis":{"guidance":{"action":"flash","wait_time":0.01}}}`, proceed()},
		recognize: recognized,
	}
	deps := newDeps(t, svc)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1)})
	require.NoError(t, err)
	require.True(t, out.Recognized())
	require.Equal(t, 2, out.Session.Attempts)
	require.True(t, out.Session.FlashEnabled)
	require.Contains(t, out.Notifications, "Insufficient light, turning on flash")
}

func TestRun_FlashRetryReshootsSameImage(t *testing.T) {
	svc := &fakeService{
		healthy:   true,
		analyze:   []string{`{"analysis":{"guidance":{"action":"flash","wait_time":0.01}}}`, proceed()},
		recognize: recognized,
	}
	deps := newDeps(t, svc)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 2)})
	require.NoError(t, err)
	require.True(t, out.Recognized())
	require.Equal(t, []string{"labela.png", "labela.png"}, svc.Shots())
}

func TestRun_Unreachable(t *testing.T) {
	svc := &fakeService{healthy: false}
	deps := newDeps(t, svc)

	_, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1)})
	require.True(t, errors.Is(err, errors.ErrConnectivity))
}

func TestRun_ExplicitFailure(t *testing.T) {
	svc := &fakeService{
		healthy:   true,
		analyze:   []string{proceed()},
		recognize: `{"success":false,"error":"No drug label found"}`,
	}
	deps := newDeps(t, svc)

	_, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1), Fallback: true})
	require.True(t, errors.Is(err, errors.ErrRecognitionFailed))
	require.Contains(t, err.Error(), "No drug label found")
}

func TestRun_FallbackOnMalformedResponse(t *testing.T) {
	svc := &fakeService{healthy: true, analyze: []string{proceed()}, recognize: `not json`}
	deps := newDeps(t, svc)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1), Fallback: true})
	require.NoError(t, err)
	require.True(t, out.Result.Placeholder)
}

func TestRun_Save(t *testing.T) {
	svc := &fakeService{healthy: true, analyze: []string{proceed()}, recognize: recognized}
	deps := newDeps(t, svc)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	deps.DB = database

	var mirror feedback.Recorder
	deps.Notifier = &mirror

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1), Save: true})
	require.NoError(t, err)
	require.NotNil(t, out.Saved)
	require.Equal(t, out.Session.ID, out.Saved.SessionID)
	require.Contains(t, out.Notifications, "Saved")
	require.True(t, mirror.Contains("Saved"))
}

func TestRun_SaveFailureKeepsResult(t *testing.T) {
	svc := &fakeService{healthy: true, analyze: []string{proceed()}, recognize: recognized}
	deps := newDeps(t, svc)
	deps.DB = closedDB(t)

	out, err := Run(context.Background(), deps, Input{Images: writeImages(t, 1), Save: true})
	require.True(t, errors.Is(err, errors.ErrPersistenceFailed))
	require.True(t, out.Recognized())
	require.Contains(t, out.Notifications, "Save failed")
}

func TestRun_InvalidInput(t *testing.T) {
	_, err := Run(context.Background(), Deps{}, Input{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Run(context.Background(), Deps{}, Input{Images: []string{"x.png"}})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestHealth(t *testing.T) {
	deps := newDeps(t, &fakeService{healthy: true})
	out := Health(context.Background(), deps, deps.Config.BaseURL)
	require.True(t, out.Reachable)
	require.Equal(t, "Service connected", out.Message)

	deps = newDeps(t, &fakeService{healthy: false})
	out = Health(context.Background(), deps, deps.Config.BaseURL)
	require.False(t, out.Reachable)
	require.Equal(t, "Cannot reach the recognition service, check the connection", out.Message)
}

func closedDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	database.Close()
	return database
}
