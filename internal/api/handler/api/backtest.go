package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/newthinker/rotator/internal/api/job"
	"github.com/newthinker/rotator/internal/api/response"
	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/metrics"
	"github.com/newthinker/rotator/internal/provider"
	"github.com/newthinker/rotator/internal/report"
	"github.com/newthinker/rotator/internal/storage/archive"
	"github.com/newthinker/rotator/internal/strategy"
	"go.uber.org/zap"
)

const (
	jobType         = "backtest"
	backtestTimeout = 5 * time.Minute
	maxBodyBytes    = 1 << 20
)

// BacktestRequest is the request body for starting a backtest. Strategy
// fields left out keep the server's configured values.
type BacktestRequest struct {
	Start    string                `json:"start"`
	End      string                `json:"end"`
	Strategy config.StrategyConfig `json:"strategy"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore   *job.Store
	provider   provider.Provider
	generators *strategy.Registry
	base       config.StrategyConfig
	archive    archive.Storage
	metrics    *metrics.Registry
	logger     *zap.Logger
	interval   string
	timeout    time.Duration
}

// Option configures a BacktestHandler.
type Option func(*BacktestHandler)

// WithArchive persists finished runs and serves them after their job expires.
func WithArchive(s archive.Storage) Option {
	return func(h *BacktestHandler) { h.archive = s }
}

// WithMetrics records run statistics.
func WithMetrics(m *metrics.Registry) Option {
	return func(h *BacktestHandler) { h.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *BacktestHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithInterval sets the bar interval requested from the provider.
func WithInterval(interval string) Option {
	return func(h *BacktestHandler) { h.interval = interval }
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) Option {
	return func(h *BacktestHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(
	jobStore *job.Store,
	prov provider.Provider,
	generators *strategy.Registry,
	base config.StrategyConfig,
	opts ...Option,
) *BacktestHandler {
	h := &BacktestHandler{
		jobStore:   jobStore,
		provider:   prov,
		generators: generators,
		base:       base,
		logger:     zap.NewNop(),
		interval:   "1d",
		timeout:    backtestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := BacktestRequest{Strategy: h.base}
	req.Strategy.Universe = append([]string(nil), h.base.Universe...)

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	if req.Start == "" || req.End == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, errors.New("start and end are required")))
		return
	}
	start, err := time.Parse(core.DateLayout, req.Start)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	end, err := time.Parse(core.DateLayout, req.End)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if end.Before(start) {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end %s before start %s", req.End, req.Start)))
		return
	}

	gen, err := h.generators.New(req.Strategy)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	var runID string
	opts := []backtest.Option{
		backtest.WithLogger(h.logger),
		backtest.WithRunID(func() string { return runID }),
	}
	if h.metrics != nil {
		opts = append(opts, backtest.WithRecorder(h.metrics))
	}
	bt, err := backtest.New(req.Strategy, gen, opts...)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	// Create job
	j := h.jobStore.Create(jobType)
	runID = j.ID
	h.reportActive()

	// Run backtest in background
	go h.runBacktest(j.ID, bt, start, end)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, bt *backtest.Backtester, start, end time.Time) {
	defer h.reportActive()

	// Mark as running
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	result, err := bt.RunWithProvider(ctx, h.provider, start, end, provider.WithInterval(h.interval))

	if err != nil {
		h.logger.Warn("backtest job failed", zap.String("job_id", jobID), zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		return
	}

	if h.archive != nil {
		if _, err := report.Archive(ctx, h.archive, result); err != nil {
			h.logger.Warn("archiving backtest failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
}

// Get returns the status of a backtest job. Expired jobs are served from
// the archive when one is configured.
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	j, err := h.jobStore.Get(jobID)
	if err != nil {
		if res, ok := h.fromArchive(r.Context(), jobID); ok {
			response.JSON(w, http.StatusOK, map[string]any{
				"job_id":   jobID,
				"status":   job.StatusComplete,
				"progress": 100,
				"result":   res,
				"source":   "archive",
			})
			return
		}
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// List returns every live job without results.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStore.List()
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		if j.Type != jobType {
			continue
		}
		out = append(out, map[string]any{
			"job_id":     j.ID,
			"status":     j.Status,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		})
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *BacktestHandler) fromArchive(ctx context.Context, runID string) (*backtest.Result, bool) {
	if h.archive == nil || runID == "" {
		return nil, false
	}
	res, err := report.LoadSummary(ctx, h.archive, runID)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("reading archived run failed", zap.String("run_id", runID), zap.Error(err))
		}
		return nil, false
	}
	return res, true
}

func (h *BacktestHandler) reportActive() {
	if h.metrics != nil {
		h.metrics.SetJobsActive(jobType, h.jobStore.Active(jobType))
	}
}

func asCoreError(err error) *core.Error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	return core.WrapError(core.ErrRunFailed, err)
}
