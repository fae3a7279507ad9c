package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"honey-grader/internal/features"
	"honey-grader/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	predictor *Predictor
	history   PredictionLog
	router    *chi.Mux
	server    *http.Server
}

// PredictionLog records served predictions.
type PredictionLog interface {
	StorePrediction(storage.PredictionRecord) error
}

// PredictionRequest is either a raw reading (voltage + adulterant) or an
// encoded vector with its feature names.
type PredictionRequest struct {
	Voltage      *float64  `json:"voltage,omitempty"`
	Adulterant   string    `json:"adulterant,omitempty"`
	FeatureNames []string  `json:"feature_names,omitempty"`
	Features     []float64 `json:"features,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Prediction
	RequestID string  `json:"request_id,omitempty"`
	Latency   float64 `json:"latency_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewModelServer creates a new HTTP server for model serving. metricsHandler
// is mounted on /metrics when non-nil.
func NewModelServer(predictor *Predictor, port int, metricsHandler http.Handler) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		router:    chi.NewRouter(),
	}

	ms.router.Use(middleware.RequestID)
	ms.router.Use(middleware.Recoverer)
	ms.router.Use(middleware.Timeout(5 * time.Second))

	ms.router.Post("/predict", ms.handlePredict)
	ms.router.Get("/health", ms.handleHealth)
	ms.router.Get("/model/info", ms.handleModelInfo)
	ms.router.Post("/model/reload", ms.handleReload)
	if metricsHandler != nil {
		ms.router.Handle("/metrics", metricsHandler)
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ms.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// WithHistory makes the server record every successful prediction.
func (ms *ModelServer) WithHistory(l PredictionLog) *ModelServer {
	ms.history = l
	return ms
}

// Handler returns the router, for tests and embedding.
func (ms *ModelServer) Handler() http.Handler {
	return ms.router
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	var (
		pred *Prediction
		err  error
		rec  = storage.PredictionRecord{RequestID: req.RequestID}
	)
	switch {
	case len(req.Features) > 0:
		pred, err = ms.predictor.PredictVector(req.FeatureNames, req.Features)
		rec.Features = req.Features
	case req.Voltage != nil && req.Adulterant != "":
		pred, err = ms.predictor.PredictRow(*req.Voltage, req.Adulterant)
		rec.Features = []float64{*req.Voltage}
		rec.Adulterant = req.Adulterant
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "either voltage and adulterant or features are required"})
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, features.ErrUnknownCategory) || errors.Is(err, ErrFeatureMismatch) {
			status = http.StatusUnprocessableEntity
		}
		log.Warn().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	if ms.history != nil {
		rec.Quality = pred.Quality
		for _, p := range pred.Probabilities {
			if p.Quality == pred.Quality {
				rec.Probability = p.Probability
			}
		}
		if err := ms.history.StorePrediction(rec); err != nil {
			log.Warn().Err(err).Msg("failed to record prediction")
		}
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		Prediction: *pred,
		RequestID:  req.RequestID,
		Latency:    float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ms.predictor.Info())
}

func (ms *ModelServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := ms.predictor.Reload(); err != nil {
		log.Error().Err(err).Msg("model reload failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ms.predictor.Info())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
