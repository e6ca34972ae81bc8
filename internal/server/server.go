package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/STEPPE/internal/calibration"
	"github.com/copyleftdev/STEPPE/internal/config"
	"github.com/copyleftdev/STEPPE/internal/logging"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Request metrics are package-level so repeated server construction (as
// in tests) does not re-register collectors.
var (
	opRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steppe_calibration_requests_total",
		Help: "Number of calibration operations served, by operation and outcome.",
	}, []string{"operation", "outcome"})

	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steppe_calibration_request_duration_seconds",
		Help:    "Duration of calibration operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Server exposes the calibration numerics over HTTP and JSON-RPC so
// pipeline stages running out of process can call them. It holds no
// per-request state; every operation is a pure function of its inputs
// plus, for observation sampling, the process-wide random source.
type Server struct {
	cfg    *config.Config
	logger Logger
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/posdef", s.handlePosDef)
		r.Post("/zscore", s.handleZScore)
		r.Post("/zscore/invert", s.handleZScoreInvert)
		r.Post("/observation/sample", s.handleObservationSample)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// posDefRequest asks for positive-definite repair of a covariance matrix.
type posDefRequest struct {
	Matrix [][]float64 `json:"matrix"`
	// Tol overrides the configured diagonal safety margin when positive.
	Tol float64 `json:"tol,omitempty"`
}

type posDefResponse struct {
	Matrix [][]float64 `json:"matrix"`
}

// zscoreRequest carries either a matrix (features along columns) or a
// single feature vector, plus the standardization parameters.
type zscoreRequest struct {
	Matrix [][]float64 `json:"matrix,omitempty"`
	Vector []float64   `json:"vector,omitempty"`
	Mean   []float64   `json:"mean"`
	Std    []float64   `json:"std"`
}

type zscoreResponse struct {
	Matrix [][]float64 `json:"matrix,omitempty"`
	Vector []float64   `json:"vector,omitempty"`
}

type observationSampleRequest struct {
	Table [][]float64 `json:"table"`
	// Seed reseeds the process-wide source before drawing when non-zero,
	// making the draw reproducible.
	Seed int64 `json:"seed,omitempty"`
}

type observationSampleResponse struct {
	Row []float64 `json:"row"`
}

// posDefTol resolves the tolerance for a repair request: request value,
// then configured default, then the library default.
func (s *Server) posDefTol(requested float64) float64 {
	if requested > 0 {
		return requested
	}
	if s.cfg != nil && s.cfg.Calibration.PosDefTol > 0 {
		return s.cfg.Calibration.PosDefTol
	}
	return calibration.DefaultPosDefTol
}

// correctMatrix runs positive-definite repair for both transports.
func (s *Server) correctMatrix(req *posDefRequest) (*posDefResponse, error) {
	m, err := s.denseFromRows(req.Matrix)
	if err != nil {
		return nil, err
	}

	out, err := calibration.CorrectToPositiveDefinite(m, s.posDefTol(req.Tol))
	if err != nil {
		return nil, err
	}
	return &posDefResponse{Matrix: rowsFromMatrix(out)}, nil
}

// standardize applies the forward or inverse z-score transform for both
// transports.
func (s *Server) standardize(req *zscoreRequest, invert bool) (*zscoreResponse, error) {
	if (req.Matrix == nil) == (req.Vector == nil) {
		return nil, calibration.NewError(calibration.KindShape,
			"exactly one of matrix or vector must be provided")
	}

	if req.Vector != nil {
		var (
			out []float64
			err error
		)
		if invert {
			out, err = calibration.FromZScoreVec(req.Vector, req.Mean, req.Std)
		} else {
			out, err = calibration.ToZScoreVec(req.Vector, req.Mean, req.Std)
		}
		if err != nil {
			return nil, err
		}
		return &zscoreResponse{Vector: out}, nil
	}

	m, err := s.denseFromRows(req.Matrix)
	if err != nil {
		return nil, err
	}
	var out *mat.Dense
	if invert {
		out, err = calibration.FromZScore(m, req.Mean, req.Std)
	} else {
		out, err = calibration.ToZScore(m, req.Mean, req.Std)
	}
	if err != nil {
		return nil, err
	}
	return &zscoreResponse{Matrix: rowsFromMatrix(out)}, nil
}

// sampleObservation draws one row from the supplied observation table.
func (s *Server) sampleObservation(req *observationSampleRequest) (*observationSampleResponse, error) {
	table, err := s.denseFromRows(req.Table)
	if err != nil {
		return nil, err
	}

	var row *mat.VecDense
	if req.Seed != 0 {
		row, err = calibration.SampleObservationSeeded(calibration.DefaultSource(), table, req.Seed)
	} else {
		row, err = calibration.SampleObservationDefault(table)
	}
	if err != nil {
		return nil, err
	}

	out := make([]float64, row.Len())
	for i := range out {
		out[i] = row.AtVec(i)
	}
	return &observationSampleResponse{Row: out}, nil
}

func (s *Server) handlePosDef(w http.ResponseWriter, r *http.Request) {
	var req posDefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondRESTError(w, "posdef", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.serveOp(w, "posdef", func() (interface{}, error) {
		return s.correctMatrix(&req)
	})
}

func (s *Server) handleZScore(w http.ResponseWriter, r *http.Request) {
	var req zscoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondRESTError(w, "zscore", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.serveOp(w, "zscore", func() (interface{}, error) {
		return s.standardize(&req, false)
	})
}

func (s *Server) handleZScoreInvert(w http.ResponseWriter, r *http.Request) {
	var req zscoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondRESTError(w, "zscore_invert", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.serveOp(w, "zscore_invert", func() (interface{}, error) {
		return s.standardize(&req, true)
	})
}

func (s *Server) handleObservationSample(w http.ResponseWriter, r *http.Request) {
	var req observationSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondRESTError(w, "observation_sample", http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.serveOp(w, "observation_sample", func() (interface{}, error) {
		return s.sampleObservation(&req)
	})
}

// serveOp runs one calibration operation, records metrics, and writes the
// JSON response or error.
func (s *Server) serveOp(w http.ResponseWriter, operation string, fn func() (interface{}, error)) {
	start := time.Now()
	result, err := fn()
	opDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		s.respondRESTError(w, operation, statusForError(err), err)
		return
	}

	opRequests.WithLabelValues(operation, "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// statusForError maps the calibration error taxonomy onto HTTP statuses:
// bad inputs are the caller's fault, numerical failures are not.
func statusForError(err error) int {
	switch {
	case errors.Is(err, calibration.ErrShape),
		errors.Is(err, calibration.ErrDomain),
		errors.Is(err, calibration.ErrIndex):
		return http.StatusBadRequest
	case errors.Is(err, calibration.ErrComputation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) respondRESTError(w http.ResponseWriter, operation string, status int, err error) {
	opRequests.WithLabelValues(operation, "error").Inc()
	s.logger.Error("Calibration request failed", map[string]interface{}{
		"operation": operation,
		"status":    status,
		"error":     err.Error(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "matrix.correct":
		var req posDefRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			result, err = s.correctMatrix(&req)
		}
	case "data.standardize":
		var req zscoreRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			result, err = s.standardize(&req, false)
		}
	case "data.destandardize":
		var req zscoreRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			result, err = s.standardize(&req, true)
		}
	case "observation.sample":
		var req observationSampleRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			result, err = s.sampleObservation(&req)
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// denseFromRows converts a JSON row-major matrix into a dense matrix,
// enforcing rectangularity and the configured size bound.
func (s *Server) denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, calibration.NewError(calibration.KindShape, "matrix must not be empty")
	}

	maxDim := 0
	if s.cfg != nil {
		maxDim = s.cfg.Calibration.MaxMatrixDim
	}
	cols := len(rows[0])
	if maxDim > 0 && (len(rows) > maxDim || cols > maxDim) {
		return nil, calibration.NewErrorf(calibration.KindShape,
			"matrix dimensions %dx%d exceed the configured limit %d", len(rows), cols, maxDim)
	}

	m := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, calibration.NewErrorf(calibration.KindShape,
				"row %d has %d entries, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// rowsFromMatrix converts a matrix into its JSON row-major form.
func rowsFromMatrix(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// Close cleans up resources
func (s *Server) Close() error {
	return nil
}
