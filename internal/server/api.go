package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/desertthunder/audiotap/internal/formatter"
	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/repositories"
	"github.com/desertthunder/audiotap/internal/shared"
	"github.com/desertthunder/audiotap/internal/tasks"
)

const maxBodyBytes = 1 << 20

// ReportStore is the read side of the report archive.
type ReportStore interface {
	Get(ctx context.Context, id string) (models.Report, error)
	List(ctx context.Context, opts repositories.ListOpts) ([]repositories.ArchivedReport, error)
}

// Options configures [NewAPI]. Only Manager is required.
type Options struct {
	Manager  *tasks.Manager
	Hub      *Hub
	Store    ReportStore
	Sinks    []tasks.Sink // extra sinks every started task emits to
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Limiter  *rate.Limiter
	Logger   *log.Logger
}

// API serves the analysis endpoints.
type API struct {
	manager  *tasks.Manager
	hub      *Hub
	store    ReportStore
	sink     tasks.Sink
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	logger   *log.Logger
	started  time.Time
}

// NewAPI builds the handler set. A nil Hub gets a fresh one.
func NewAPI(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(logger, opts.Metrics)
	}

	sinks := tasks.MultiSink{hub}
	for _, s := range opts.Sinks {
		if s != nil {
			sinks = append(sinks, s)
		}
	}

	return &API{
		manager:  opts.Manager,
		hub:      hub,
		store:    opts.Store,
		sink:     sinks,
		gatherer: opts.Gatherer,
		metrics:  opts.Metrics,
		limiter:  opts.Limiter,
		logger:   logger,
		started:  time.Now(),
	}
}

// Hub returns the websocket hub tasks started through the API emit to.
func (a *API) Hub() *Hub {
	return a.hub
}

// Router returns a [BasicRouter] with every route and the standard middleware stack.
func (a *API) Router() *BasicRouter {
	r := NewBasicRouter()
	r.Use(Recoverer(a.logger), RequestLogger(a.logger), Instrument(a.metrics), RateLimit(a.limiter, "/start_analysis"))

	r.Handle(http.MethodPost, "/start_analysis", http.HandlerFunc(a.handleStart))
	r.Handle(http.MethodPost, "/stop_analysis", http.HandlerFunc(a.handleStop))
	r.Handle(http.MethodGet, "/status/{id}", http.HandlerFunc(a.handleStatus))
	r.Handle(http.MethodGet, "/report/{id}", http.HandlerFunc(a.handleReport))
	r.Handle(http.MethodGet, "/plugins", http.HandlerFunc(a.handlePlugins))
	r.Handle(http.MethodGet, "/tasks", http.HandlerFunc(a.handleTasks))
	r.Handle(http.MethodGet, "/reports", http.HandlerFunc(a.handleReports))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.handleHealth))
	r.Handle(http.MethodGet, "/ws", http.HandlerFunc(a.handleWS))

	if a.gatherer != nil {
		r.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type taskRequest struct {
	TaskID string `json:"task_id"`
}

type taskResponse struct {
	TaskID        string        `json:"task_id"`
	Status        models.Status `json:"status,omitempty"`
	StopRequested bool          `json:"stop_requested,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// handleStart accepts an analysis config and returns the new task id without waiting for the task.
func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	var cfg models.AnalysisConfig
	if err := decodeBody(w, r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cfg.AudioResource.Missing() {
		writeError(w, http.StatusBadRequest, "audio_resource is required")
		return
	}

	id, err := a.manager.Start(cfg, a.sink)
	switch {
	case errors.Is(err, shared.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, shared.ErrServiceDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		a.logger.Error("failed to start analysis", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}

	a.logger.Info("analysis started", "task_id", id, "resource", cfg.AudioResource.String())
	writeJSON(w, http.StatusOK, taskResponse{TaskID: id, Status: models.StatusPending})
}

// handleStop answers 404 for unknown tasks and 409 when the task is not running or already stopping.
// A 200 means cancellation was requested; the task reaches stopped at its next chunk boundary.
func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, ok := a.manager.Status(req.TaskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !a.manager.Stop(req.TaskID) {
		status, _ = a.manager.Status(req.TaskID)
		writeJSON(w, http.StatusConflict, taskResponse{
			TaskID: req.TaskID,
			Status: status,
			Error:  shared.ErrTaskNotRunning.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{TaskID: req.TaskID, Status: status, StopRequested: true})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, ok := a.manager.Status(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, taskResponse{TaskID: id, Status: models.StatusNotFound})
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{TaskID: id, Status: status})
}

// handleReport renders a live task, or an archived one when the process no longer knows the id.
func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, ok := a.manager.Report(id)
	if !ok {
		report, ok = a.archived(r.Context(), id)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	body, err := formatter.Render(report, format)
	if err != nil {
		a.logger.Error("failed to render report", "task_id", id, "format", format, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if r.URL.Query().Has("download") {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report_"+id+format.Extension()))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (a *API) archived(ctx context.Context, id string) (models.Report, bool) {
	if a.store == nil {
		return models.Report{}, false
	}
	report, err := a.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, shared.ErrReportNotFound) {
			a.logger.Warn("archive lookup failed", "task_id", id, "err", err)
		}
		return models.Report{}, false
	}
	return report, true
}

type pluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handlePlugins(w http.ResponseWriter, r *http.Request) {
	registry := a.manager.Registry()
	out := make([]pluginInfo, 0, registry.Len())
	descriptions := registry.List()
	for _, name := range registry.Names() {
		out = append(out, pluginInfo{Name: name, Description: descriptions[name]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": out})
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": a.manager.List()})
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusNotFound, "report archive is disabled")
		return
	}

	opts := repositories.ListOpts{Status: models.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	reports, err := a.store.List(r.Context(), opts)
	if err != nil {
		a.logger.Error("failed to list reports", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := 0
	for _, s := range a.manager.List() {
		if !s.Status.Terminal() {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"uptime":       time.Since(a.started).Round(time.Second).String(),
		"active_tasks": active,
		"plugins":      a.manager.Registry().Len(),
		"ws_clients":   a.hub.Clients(),
	})
}

// handleWS streams updates for ?task_id=, or for every task when it is omitted.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("task_id")
	if id != "" {
		if _, ok := a.manager.Status(id); !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
	}

	a.hub.Serve(w, r, id, func() *models.Update {
		if id == "" {
			return nil
		}
		report, ok := a.manager.Report(id)
		if !ok || !report.Status.Terminal() {
			return nil
		}
		return &models.Update{TaskID: id, Status: report.Status, Error: report.Error}
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
