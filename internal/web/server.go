package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hpungsan/medscan/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the history viewer.
func NewServer(db *sql.DB, cfg *config.Config, version, bind string, port int) *http.Server {
	h := &Handlers{
		db:       db,
		cfg:      cfg,
		renderer: NewRenderer(mustSub(templateFS, "templates"), version, cfg.Locale),
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/history", http.StatusFound)
	})
	mux.HandleFunc("GET /history", h.HandleList)
	mux.HandleFunc("GET /history/{id}", h.HandleDetail)
	mux.HandleFunc("POST /history/clear", h.HandleClear)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(mustSub(staticFS, "static"))))

	return &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// mustSub strips dir from an embedded FS. The directories are compiled in,
// so failure is a build defect.
func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("web: embedded %s: %v", dir, err))
	}
	return sub
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until SIGINT or SIGTERM, then shuts down with a 5s grace period.
func Run(srv *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("medscan history viewer on http://%s", srv.Addr)
	if host, _, err := net.SplitHostPort(srv.Addr); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			log.Printf("warning: %s listens on every interface; saved history is visible to the network", srv.Addr)
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("shutting down history viewer")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
