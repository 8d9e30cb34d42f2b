// Package api serves crawl jobs over HTTP: a client posts a category, the
// server runs a session for it in the background and exposes its progress,
// records and category map.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Session is the part of a crawl session the server drives.
type Session interface {
	CrawlCategory(ctx context.Context, category string) ([]types.Member, error)
	Records() []*types.PageRecord
	CategoryMap() map[string][]string
	Stats() map[string]any
	Export() (string, error)
	Close() error
}

// JobRequest is the body of POST /api/jobs.
type JobRequest struct {
	Category          string   `json:"category"`
	WantedTemplates   []string `json:"wanted_templates,omitempty"`
	ExtraFields       []string `json:"extra_fields,omitempty"`
	ForbiddenKeywords []string `json:"forbidden_keywords,omitempty"`
	MaxDepth          int      `json:"max_depth,omitempty"`
	NoViews           bool     `json:"no_views,omitempty"`
	Export            bool     `json:"export,omitempty"`
}

// SessionFactory builds a session for a job.
type SessionFactory func(req JobRequest) (Session, error)

// Job tracks a crawl job.
type Job struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Category   string         `json:"category"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Pages      int            `json:"pages"`
	RunID      string         `json:"run_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	Stats      map[string]any `json:"stats,omitempty"`

	session Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Server provides a REST API for running crawl jobs.
type Server struct {
	mux        *http.ServeMux
	port       int
	logger     *slog.Logger
	newSession SessionFactory

	jobs   map[string]*Job
	jobsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new API server.
func NewServer(port int, factory SessionFactory, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mux:        http.NewServeMux(),
		port:       port,
		logger:     logger.With("component", "api_server"),
		newSession: factory,
		jobs:       make(map[string]*Job),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then cancels every running
// job and waits for them to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("API server starting", "addr", srv.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Shutdown()
	return err
}

// Shutdown cancels all running jobs and waits for them.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCancelJob)
	s.mux.HandleFunc("GET /api/jobs/{id}/records", s.handleRecords)
	s.mux.HandleFunc("GET /api/jobs/{id}/categories", s.handleCategories)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var body JobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Category == "" {
		s.errorResponse(w, http.StatusBadRequest, types.ErrCategoryRequired.Error())
		return
	}

	session, err := s.newSession(body)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		Category:  body.Category,
		StartedAt: time.Now(),
		session:   session,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, job, body.Export)

	s.logger.Info("job started", "job_id", job.ID, "category", body.Category)
	s.jsonResponse(w, http.StatusCreated, s.view(job))
}

func (s *Server) run(ctx context.Context, job *Job, export bool) {
	defer s.wg.Done()
	defer close(job.done)
	defer job.cancel()

	pages, crawlErr := job.session.CrawlCategory(ctx, job.Category)
	closeErr := job.session.Close()

	var runID string
	var exportErr error
	if export && crawlErr == nil {
		runID, exportErr = job.session.Export()
	}

	now := time.Now()
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job.Pages = len(pages)
	job.RunID = runID
	job.FinishedAt = &now
	job.Stats = job.session.Stats()

	err := errors.Join(crawlErr, closeErr, exportErr)
	switch {
	case errors.Is(crawlErr, context.Canceled):
		job.Status = StatusCancelled
	case err != nil:
		job.Status = StatusFailed
		job.Error = err.Error()
	default:
		job.Status = StatusDone
	}
	s.logger.Info("job finished", "job_id", job.ID, "status", job.Status, "pages", job.Pages)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.jobsMu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, s.viewLocked(j))
	}
	s.jobsMu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.Before(jobs[k].StartedAt) })
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, s.view(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	job.cancel()
	<-job.done
	s.jsonResponse(w, http.StatusOK, s.view(job))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, job.session.Records())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, job.session.CategoryMap())
}

// Wait blocks until the job with id has finished. It reports false for an
// unknown id.
func (s *Server) Wait(id string) bool {
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	s.jobsMu.RUnlock()
	if ok {
		<-job.done
	}
	return ok
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	id := r.PathValue("id")
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	s.jobsMu.RUnlock()

	if !ok {
		s.errorResponse(w, http.StatusNotFound, "job not found")
	}
	return job, ok
}

func (s *Server) view(job *Job) Job {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	return s.viewLocked(job)
}

func (s *Server) viewLocked(job *Job) Job {
	v := *job
	if v.Status == StatusRunning {
		v.Stats = job.session.Stats()
	}
	return v
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}
