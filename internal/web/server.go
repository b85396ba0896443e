// Package web serves a read-mostly HTML viewer over the stored stories and
// their generated test cases.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/steveyegge/qa-agent/internal/storage"
	"github.com/steveyegge/qa-agent/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"formatTime": formatTime,
}).ParseFS(templateFS, "templates/*.html"))

// Server is the viewer's HTTP handler
type Server struct {
	store  storage.Storage
	logger *zap.Logger
	router chi.Router
}

// NewServer builds the viewer router over store
func NewServer(store storage.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/story/{id}", s.handleStory)
	r.Post("/story/{id}/delete", s.handleDelete)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("viewer listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("viewer server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("viewer shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("viewer stopped")
	return nil
}

type storyRow struct {
	*types.UserStory
	LastGenerated time.Time
}

type indexPage struct {
	Title   string
	Error   string
	Stories []storyRow
}

type documentView struct {
	*types.TestCaseDocument
	HTML template.HTML
}

type storyPage struct {
	Title     string
	Story     *types.UserStory
	Documents []documentView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stories, err := s.store.ListStories(ctx)
	if err != nil {
		s.serverError(w, r, "list stories", err)
		return
	}

	page := indexPage{
		Title: "User stories",
		Error: r.URL.Query().Get("error"),
	}
	for _, story := range stories {
		row := storyRow{UserStory: story}
		latest, err := s.store.LatestTestCase(ctx, story.ID)
		if err != nil {
			s.serverError(w, r, "latest test case", err)
			return
		}
		if latest != nil {
			row.LastGenerated = latest.GeneratedAt
		}
		page.Stories = append(page.Stories, row)
	}

	s.render(w, r, "index", page)
}

func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := storyID(r)
	if !ok {
		redirectNotFound(w, r)
		return
	}

	story, err := s.store.GetStory(ctx, id)
	if err != nil {
		s.serverError(w, r, "get story", err)
		return
	}
	if story == nil {
		redirectNotFound(w, r)
		return
	}

	docs, err := s.store.ListTestCases(ctx, id)
	if err != nil {
		s.serverError(w, r, "list test cases", err)
		return
	}

	page := storyPage{Title: story.Key, Story: story}
	for _, doc := range docs {
		page.Documents = append(page.Documents, documentView{
			TestCaseDocument: doc,
			HTML:             renderMarkdown(doc.Content),
		})
	}

	s.render(w, r, "story", page)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := storyID(r)
	if !ok {
		redirectNotFound(w, r)
		return
	}

	if err := s.store.DeleteStory(r.Context(), id); err != nil {
		s.serverError(w, r, "delete story", err)
		return
	}
	s.logger.Info("story deleted from viewer", zap.Int64("story_id", id))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed",
			zap.String("template", name),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error("viewer request failed",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func storyID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func redirectNotFound(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/?error="+url.QueryEscape("story not found"), http.StatusFound)
}

// requestLogger logs one line per request with zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
