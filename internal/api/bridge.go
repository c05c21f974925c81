package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/journal"
	"github.com/nerrad567/posebridge/internal/slot"
)

// dispatchTimeout bounds how long a handler waits for the dispatcher.
const dispatchTimeout = 5 * time.Second

// StatusResponse is the body of GET /status and of the connect and
// disconnect responses.
type StatusResponse struct {
	State       string            `json:"state"`
	Initialized bool              `json:"initialized"`
	MaxSlots    int               `json:"max_slots"`
	SessionID   string            `json:"session_id,omitempty"`
	Definitions []slot.Definition `json:"definitions"`
	Stats       bridge.Stats      `json:"stats"`
}

// JournalResponse is the body of GET /journal.
type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// call runs fn on the dispatcher, bounded by the request context.
func (s *Server) call(r *http.Request, fn func()) error {
	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()
	return s.dispatcher.Call(ctx, fn)
}

// status reads the bridge. It must run on the dispatcher.
func (s *Server) status() StatusResponse {
	defs := s.bridge.Definitions()
	if defs == nil {
		defs = []slot.Definition{}
	}
	return StatusResponse{
		State:       s.bridge.State().String(),
		Initialized: s.bridge.IsInitialized(),
		MaxSlots:    s.bridge.MaxSlotCount(),
		SessionID:   s.bridge.SessionID(),
		Definitions: defs,
		Stats:       s.bridge.Stats(),
	}
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "", "bridge dispatcher did not respond")
		return
	}
	s.logger.Warn("bridge dispatcher unavailable", "error", err)
	writeError(w, r, http.StatusServiceUnavailable, "", "bridge dispatcher unavailable")
}

// handleStatus returns the connection state, capacity, active slots and
// publisher counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if err := s.call(r, func() { resp = s.status() }); err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleConnect starts a session with the slot definitions in the body, or
// with the configured definitions when the body is empty.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	defs, err := decodeDefinitions(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	if defs == nil {
		defs = s.slots
	}

	var (
		resp        StatusResponse
		initialized bool
		accepted    bool
	)
	err = s.call(r, func() {
		initialized = s.bridge.IsInitialized()
		state := s.bridge.State()
		accepted = initialized && (state == bridge.Disconnected || state == bridge.Failed)
		if accepted {
			s.bridge.Connect(defs)
		}
		resp = s.status()
	})

	switch {
	case err != nil:
		s.writeDispatchError(w, r, err)
	case !initialized:
		writeError(w, r, http.StatusServiceUnavailable, "", "bridge not initialized")
	case !accepted:
		writeError(w, r, http.StatusConflict, "", "bridge is "+resp.State)
	default:
		s.logger.Info("connect requested",
			"slots", len(defs),
			"subject", subjectFromContext(r.Context()),
		)
		writeJSON(w, http.StatusAccepted, resp)
	}
}

// handleDisconnect ends the active session. It succeeds in any state.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	err := s.call(r, func() {
		s.bridge.Disconnect()
		resp = s.status()
	})
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	s.logger.Info("disconnect requested", "subject", subjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, resp)
}

// handleJournal lists recent connection transitions, newest first.
// Query parameters: limit (default 50), session (optional session id).
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, r, http.StatusNotFound, "", "connection journal is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var (
		entries []journal.Entry
		err     error
	)
	if session := r.URL.Query().Get("session"); session != "" {
		entries, err = s.journal.ListSession(r.Context(), session, limit)
	} else {
		entries, err = s.journal.List(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("listing journal", "error", err)
		writeError(w, r, http.StatusInternalServerError, "", "failed to list journal")
		return
	}

	writeJSON(w, http.StatusOK, JournalResponse{Entries: entries, Count: len(entries)})
}

// decodeDefinitions reads a JSON array of slot definitions. An empty body
// returns nil; an empty array returns an empty slice.
func decodeDefinitions(body io.Reader) ([]slot.Definition, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var defs []slot.Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("invalid slot definitions: %w", err)
	}
	for i, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return defs, nil
}
