package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/device"
	"github.com/synheart/synheart-guard/internal/engine"
	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/strategy"
	"github.com/synheart/synheart-guard/internal/transport"
	"github.com/synheart/synheart-guard/internal/warning"
)

const maxBodySize = 10 * 1024 * 1024

type networkRequest struct {
	State string `json:"state"`
}

type resolveRequest struct {
	EventID    string `json:"event_id"`
	StrategyID string `json:"strategy_id"`
}

type syncResponse struct {
	Count     int    `json:"count"`
	Remaining int    `json:"remaining"`
	RetryIn   string `json:"retry_in,omitempty"`
}

type pushResponse struct {
	Status    string         `json:"status"`
	Accepted  int            `json:"accepted"`
	Rejected  int            `json:"rejected"`
	Reasons   map[string]int `json:"reasons,omitempty"`
	Duplicate bool           `json:"duplicate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var info models.DeviceInfo
	if err := decodeBody(r, &info); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Connect(r.Context(), info); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "connected", "device": info})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Disconnect(r.Context()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	var req networkRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := models.ParseNetworkState(req.State)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetNetwork(r.Context(), state); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"network_state": state})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Sync(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	resp := syncResponse{Count: res.Count, Remaining: res.Remaining}
	if res.Err != nil {
		if res.RetryIn > 0 {
			resp.RetryIn = res.RetryIn.String()
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": res.Err.Error(), "sync": resp})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	window, err := s.engine.Window(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": window})
}

func (s *Server) handleActiveWarning(w http.ResponseWriter, r *http.Request) {
	ev, ok, err := s.engine.ActiveWarning(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "event": ev})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StrategyID == "" {
		s.writeError(w, http.StatusBadRequest, "strategy_id is required")
		return
	}
	res, err := s.engine.RecordResolution(r.Context(), req.EventID, req.StrategyID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.Transitions(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": history})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Thresholds())
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	list := s.catalog.List()
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := list[:0]
		for _, st := range list {
			if strings.EqualFold(st.Category, category) {
				filtered = append(filtered, st)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": list})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := s.catalog.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("strategy %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAddStrategy(w http.ResponseWriter, r *http.Request) {
	var st models.Strategy
	if err := decodeBody(r, &st); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := s.catalog.Add(st)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleEffectiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": s.log.Effectiveness()})
}

// handleSamples ingests pushed samples. The body is a JSON array or NDJSON
// of raw samples or HSI signal events.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if !s.validateAuth(r) {
		s.countError()
		s.writeError(w, http.StatusUnauthorized, "invalid or missing authorization token")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey != "" && s.idempotent.Exists(idempotencyKey) {
		s.mu.Lock()
		s.stats.TotalDuplicates++
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, pushResponse{Status: "ok", Duplicate: true})
		return
	}

	body, err := s.readBody(r)
	if err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	messages, err := splitMessages(body)
	if err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp := pushResponse{Status: "ok", Reasons: map[string]int{}}
	var asm transport.Assembler
	for i, msg := range messages {
		raw, ok, err := asm.Feed(msg)
		if err != nil {
			s.countError()
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("message %d: %v", i, err))
			return
		}
		if !ok {
			continue
		}
		if _, err := s.engine.OnSample(r.Context(), raw); err != nil {
			reason := ingest.RejectReason(err)
			if reason == "" {
				s.writeEngineError(w, err)
				return
			}
			resp.Rejected++
			resp.Reasons[reason]++
			continue
		}
		resp.Accepted++
	}

	if idempotencyKey != "" {
		s.idempotent.Mark(idempotencyKey)
	}
	s.mu.Lock()
	s.stats.TotalReceived += resp.Accepted
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) countError() {
	s.mu.Lock()
	s.stats.TotalErrors++
	s.mu.Unlock()
}

func (s *Server) validateAuth(r *http.Request) bool {
	if s.config.Token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return false
	}

	return parts[1] == s.config.Token
}

func (s *Server) readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = r.Body

	if s.config.AcceptGzip && r.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}

// splitMessages accepts a JSON array, a single object or NDJSON.
func splitMessages(body []byte) ([][]byte, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		out := make([][]byte, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, nil
	}
	var out [][]byte
	for _, line := range bytes.Split(body, []byte("\n")) {
		if line = bytes.TrimSpace(line); len(line) > 0 {
			out = append(out, line)
		}
	}
	return out, nil
}

// writeEngineError maps engine and domain errors to status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr), ingest.RejectReason(err) != "":
		status = http.StatusBadRequest
	case errors.Is(err, strategy.ErrUnknownStrategy):
		status = http.StatusNotFound
	case errors.Is(err, strategy.ErrDuplicateStrategy),
		errors.Is(err, warning.ErrNoOpenWarning),
		errors.Is(err, engine.ErrEventMismatch),
		errors.Is(err, engine.ErrSuperseded),
		errors.Is(err, device.ErrNotConnected),
		errors.Is(err, ingest.ErrNotActive):
		status = http.StatusConflict
	case engine.ConnectionFailed(err):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
