// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/contractengine/internal/license"
	"github.com/dshills/contractengine/internal/llm"
	"github.com/dshills/contractengine/internal/schema"
)

// HeaderLicenseKey carries the caller's license key on POST /analyze.
const HeaderLicenseKey = "X-License-Key"

// Analyzer runs one contract analysis. *llm.Engine satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req llm.Request) (*schema.AnalysisResult, error)
}

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	Verifier     license.Verifier    // nil disables license checks
	Gatherer     prometheus.Gatherer // nil serves no /metrics route
	Logger       *slog.Logger
}

// Server routes HTTP requests to an Analyzer.
type Server struct {
	analyzer Analyzer
	opts     Options
	verifier license.Verifier
	validate *validator.Validate
	logger   *slog.Logger
	router   *mux.Router
}

// AnalyzeRequest is the POST /analyze body.
type AnalyzeRequest struct {
	ContractText string `json:"contract_text" validate:"required"`
	PartyRole    string `json:"party_role" validate:"max=200"`
	DealContext  string `json:"deal_context" validate:"max=20000"`
}

// New builds a Server and its routes.
func New(a Analyzer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = license.AllowAll{}
	}
	s := &Server{
		analyzer: a,
		opts:     opts,
		verifier: verifier,
		validate: newValidator(),
		logger:   opts.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recoverer(s.logger))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.Handle("/analyze", MaxBytes(s.opts.MaxBodyBytes)(http.HandlerFunc(s.handleAnalyze))).Methods(http.MethodPost)

	// mux applies r.Use middleware to matched routes only.
	r.NotFoundHandler = s.unmatched(http.StatusNotFound, apiError{Error: "not found", Kind: "not_found"})
	r.MethodNotAllowedHandler = s.unmatched(http.StatusMethodNotAllowed, apiError{Error: "method not allowed", Kind: "bad_request"})
	return r
}

func (s *Server) unmatched(status int, body apiError) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, status, body)
	})
	return RequestID(Logger(s.logger)(h))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on opts.Addr until ctx is done, then shuts down gracefully,
// giving in-flight analyses shutdownGrace to finish.
func (s *Server) Run(ctx context.Context, shutdownGrace time.Duration) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.checkLicense(w, r) {
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, http.StatusRequestEntityTooLarge, apiError{Error: "request body too large", Kind: "bad_request"})
			return
		}
		writeError(w, r, http.StatusBadRequest, apiError{Error: "invalid JSON body: " + err.Error(), Kind: "bad_request"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, apiError{Error: validationMessage(err), Kind: "bad_request"})
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), llm.Request{
		ContractText: req.ContractText,
		PartyRole:    req.PartyRole,
		DealContext:  req.DealContext,
	})
	if err != nil {
		status, body := analysisError(err)
		s.logger.WarnContext(r.Context(), "analysis failed",
			"kind", body.Kind,
			"status", status,
			"error", err,
			"request_id", RequestIDFrom(r.Context()),
		)
		writeError(w, r, status, body)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// checkLicense writes an error response and returns false when the request
// may not proceed.
func (s *Server) checkLicense(w http.ResponseWriter, r *http.Request) bool {
	if _, off := s.verifier.(license.AllowAll); off {
		return true
	}
	key := r.Header.Get(HeaderLicenseKey)
	if key == "" {
		writeError(w, r, http.StatusUnauthorized, apiError{Error: "missing " + HeaderLicenseKey + " header", Kind: "license"})
		return false
	}
	res, err := s.verifier.Verify(r.Context(), key)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "license verification failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, apiError{Error: "license verification unavailable", Kind: "license"})
		return false
	}
	if !res.Valid {
		writeError(w, r, http.StatusForbidden, apiError{Error: res.Message, Kind: "license"})
		return false
	}
	return true
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage reports the first failing field of the request body.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " exceeds " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
