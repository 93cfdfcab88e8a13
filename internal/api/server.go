// Package api exposes the ranking engine over HTTP
package api

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"gorevsig/adapters/excel"
	"gorevsig/adapters/stats/stages"
	"gorevsig/app"
	"gorevsig/domain/core"
	"gorevsig/domain/signature"
	"gorevsig/internal"
	"gorevsig/internal/errors"
	"gorevsig/ports"
)

// Config holds HTTP server options
type Config struct {
	MaxBodyBytes int64
}

// Server routes ranking requests to a RankingService
type Server struct {
	router  *chi.Mux
	service *app.RankingService
	runs    ports.RunRepository
	metrics *Metrics
	config  Config
	logger  *internal.Logger
}

// NewServer creates the router. runs may be nil, in which case the run
// lookup routes answer 404.
func NewServer(service *app.RankingService, runs ports.RunRepository, config Config, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 32 << 20
	}

	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		runs:    runs,
		metrics: NewMetrics(),
		config:  config,
		logger:  logger.With("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(s.requestLogger)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/rankings", s.handleRank)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("%s %s %s (%dms)", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, time.Since(started).Milliseconds())
	})
}

// RankingRequest carries either typed records or a raw table
type RankingRequest struct {
	Records []signature.Record `json:"records,omitempty"`
	Table   *TableRequest      `json:"table,omitempty"`
}

// TableRequest is a raw signature table with a header row
type TableRequest struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handleRank accepts JSON or text/csv bodies. ?verify=true runs the engine
// twice and fails on a fingerprint mismatch.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	in, err := decodeInput(r)
	if err != nil {
		s.writeError(w, r, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	verify, _ := strconv.ParseBool(r.URL.Query().Get("verify"))
	var result *app.RankingResult
	if verify {
		result, err = s.service.Verify(r.Context(), in)
	} else {
		result, err = s.service.Rank(r.Context(), in)
	}
	if err != nil {
		s.metrics.observeFailure(errors.GetCode(err))
		s.writeError(w, r, err)
		return
	}

	s.metrics.observeRun(len(result.Compounds))
	render.JSON(w, r, result)
}

func decodeInput(r *http.Request) (stages.Input, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		table, err := excel.ParseCSV(r.Body)
		if err != nil {
			return stages.Input{}, err
		}
		return stages.Input{Table: table}, nil
	}

	var req RankingRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return stages.Input{}, err
	}
	switch {
	case len(req.Records) > 0:
		return stages.Input{Records: req.Records}, nil
	case req.Table != nil && len(req.Table.Header) > 0:
		return stages.Input{Table: &stages.RawTable{Header: req.Table.Header, Rows: req.Table.Rows}}, nil
	}
	return stages.Input{}, errors.InvalidInput("request needs records or a table")
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, r, errors.NotFound("run store"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	manifests, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, manifests)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, r, errors.NotFound("run store"))
		return
	}
	rn, err := s.runs.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, rn)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := statusFor(err, code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Code: code, Error: err.Error()})
}

func statusFor(err error, code string) int {
	var maxBytes *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, core.ErrNotFound), code == errors.CodeNotFound:
		return http.StatusNotFound
	case code == errors.CodeInvalidInput, code == errors.CodeConfigInvalid, code == errors.CodeValidationError:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
