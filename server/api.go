package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go_styletransfer/core"
	"go_styletransfer/db"
	"go_styletransfer/metrics"
	"go_styletransfer/pixel"
	"go_styletransfer/shutdown"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// handleTransfer handles POST /api/transfer?style=N&gpu=bool&format=png.
// The body is an encoded image; the response is the styled image.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	styleParam := q.Get("style")
	if styleParam == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing style parameter")
		return
	}
	style, err := styletransfer.ParseStyle(styleParam)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	useGPU := false
	if v := q.Get("gpu"); v != "" {
		if useGPU, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, r, http.StatusBadRequest, "gpu must be true or false")
			return
		}
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	bmp, inFormat, err := pixel.DecodeLimit(data, s.config.MaxPixels)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	run := func(ctx context.Context) error {
		return s.runtime.Run(ctx, bmp, style, useGPU)
	}
	if s.opts.Operations != nil {
		err = s.opts.Operations.WrapOperation(r.Context(), "transfer", run)
	} else {
		err = run(r.Context())
	}
	if err != nil {
		s.writeError(w, r, statusForError(err), err.Error())
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "png"
	}
	var buf bytes.Buffer
	if err := pixel.Encode(&buf, bmp, format); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "encode: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Style", styletransfer.StyleName(style))
	w.Header().Set("X-Input-Format", inFormat)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// StylesResponse is the JSON response of /api/styles.
type StylesResponse struct {
	Styles      []styletransfer.SlotStatus `json:"styles"`
	Ready       int                        `json:"ready"`
	Total       int                        `json:"total"`
	GPUCount    int                        `json:"gpu_count"`
	Backend     string                     `json:"backend"`
	Initialized bool                       `json:"initialized"`
}

// handleStyles handles GET /api/styles.
func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := StylesResponse{
		Styles:  []styletransfer.SlotStatus{},
		Total:   styletransfer.NumStyles,
		Backend: stylenet.BackendInfo(),
	}
	if reg := s.runtime.Registry(); reg != nil {
		resp.Initialized = true
		resp.Styles = reg.Status()
		resp.Ready = reg.ReadyCount()
		resp.GPUCount = reg.GPUCount()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is the JSON response of /api/status.
type StatusResponse struct {
	Health     string                  `json:"health"`
	Version    string                  `json:"version"`
	Backend    string                  `json:"backend"`
	ReadySlots int                     `json:"ready_slots"`
	TotalSlots int                     `json:"total_slots"`
	GPUCount   int                     `json:"gpu_count"`
	Uptime     string                  `json:"uptime"`
	UptimeSecs float64                 `json:"uptime_secs"`
	Transfers  metrics.TransferMetrics `json:"transfers"`
	GPU        *metrics.GPUMetrics     `json:"gpu,omitempty"`
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.Store == nil {
		s.writeError(w, r, http.StatusNotFound, "metrics are disabled")
		return
	}

	status := s.opts.Store.GetSystemStatus()
	resp := StatusResponse{
		Health:     status.Health,
		Version:    s.config.Version,
		Backend:    status.Backend,
		ReadySlots: status.ReadySlots,
		TotalSlots: status.TotalSlots,
		GPUCount:   status.GPUCount,
		Uptime:     status.Uptime.Round(time.Second).String(),
		UptimeSecs: status.Uptime.Seconds(),
		Transfers:  s.opts.Store.GetTransferMetrics(),
	}
	if s.opts.GPU != nil && s.opts.GPU.IsAvailable() {
		gpu := s.opts.GPU.Current()
		resp.GPU = &gpu
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// HistoryResponse is the JSON response of /api/history.
type HistoryResponse struct {
	Transfers []core.TransferRecord `json:"transfers"`
	Count     int                   `json:"count"`
	Source    string                `json:"source"`
}

// handleHistory handles GET /api/history?limit=N. It reads the database
// when history is enabled and the in-memory ring otherwise.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := s.parseLimit(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp := HistoryResponse{Transfers: []core.TransferRecord{}}
	switch {
	case s.opts.History != nil:
		entries, err := s.opts.History.RecentTransfers(r.Context(), limit)
		if err != nil {
			s.logger.Error("history query failed", zap.Error(err))
			s.writeError(w, r, http.StatusInternalServerError, "history query failed")
			return
		}
		for _, e := range entries {
			resp.Transfers = append(resp.Transfers, e.TransferRecord)
		}
		resp.Source = "database"
	case s.opts.Store != nil:
		resp.Transfers = s.opts.Store.GetRecentTransfers(limit)
		resp.Source = "memory"
	default:
		s.writeError(w, r, http.StatusNotFound, "history is disabled")
		return
	}
	resp.Count = len(resp.Transfers)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleHistorySummary handles GET /api/history/summary.
func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.History == nil {
		s.writeError(w, r, http.StatusNotFound, "history is disabled")
		return
	}
	summary, err := s.opts.History.SummaryByStyle(r.Context())
	if err != nil {
		s.logger.Error("history summary failed", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, "history query failed")
		return
	}
	if summary == nil {
		summary = []db.StyleSummary{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"styles": summary})
}

// handleHealth reports 200 while at least one slot can serve.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := 0
	if reg := s.runtime.Registry(); reg != nil {
		ready = reg.ReadyCount()
	}
	status, code := "ok", http.StatusOK
	if ready == 0 {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{"status": status, "ready_slots": ready})
}

func (s *Server) parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return s.config.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(limit, s.config.MaxLimit), nil
}

// statusForError maps runtime errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case styletransfer.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errors.Is(err, shutdown.ErrTrackerClosed),
		errors.Is(err, styletransfer.ErrNotInitialized),
		errors.Is(err, styletransfer.ErrSlotNotLoaded),
		errors.Is(err, styletransfer.ErrRegistryClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "bmp":
		return "image/bmp"
	case "tiff", "tif":
		return "image/tiff"
	default:
		return "image/png"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}
