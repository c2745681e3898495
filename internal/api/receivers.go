package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/onkyod/internal/gateway"
	"github.com/nerrad567/onkyod/internal/receiver"
)

// SourceHTTP tags commands submitted through the REST API.
const SourceHTTP = "http"

// gatewayTimeout bounds each round trip to the gateway loop.
const gatewayTimeout = 5 * time.Second

// CommandRequest is the body of the command endpoints.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse acknowledges a queued command.
type CommandResponse struct {
	Receiver string `json:"receiver,omitempty"`
	Command  string `json:"command"`
	Status   string `json:"status"`
}

func (s *Server) snapshot(r *http.Request) (gateway.Snapshot, error) {
	ctx, cancel := context.WithTimeout(r.Context(), gatewayTimeout)
	defer cancel()
	return s.gateway.Snapshot(ctx)
}

// handleListReceivers returns the full gateway snapshot.
func (s *Server) handleListReceivers(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r)
	if err != nil {
		gatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetReceiver returns one receiver's session snapshot.
func (s *Server) handleGetReceiver(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	snap, err := s.snapshot(r)
	if err != nil {
		gatewayError(w, err)
		return
	}
	for _, rs := range snap.Receivers {
		if rs.Name == name {
			writeJSON(w, http.StatusOK, rs)
			return
		}
	}
	writeNotFound(w, "unknown receiver: "+name)
}

func (s *Server) handleReceiverCommand(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, chi.URLParam(r, "name"))
}

func (s *Server) handleBroadcastCommand(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, "")
}

// submitCommand queues the body's command line for name, or for every
// receiver when name is empty. 202 means the line was valid and queued;
// notifications follow asynchronously on the line transports and MQTT.
func (s *Server) submitCommand(w http.ResponseWriter, r *http.Request, name string) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	line := strings.TrimSpace(req.Command)
	if line == "" || strings.ContainsAny(line, "\r\n") {
		writeBadRequest(w, "command must be a single non-empty line")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gatewayTimeout)
	defer cancel()

	err := s.gateway.Submit(ctx, name, line, SourceHTTP)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, CommandResponse{Receiver: name, Command: line, Status: "accepted"})
	case errors.Is(err, receiver.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidCommand, err.Error())
	case errors.Is(err, gateway.ErrUnknownReceiver), errors.Is(err, gateway.ErrNoReceivers):
		writeNotFound(w, err.Error())
	case errors.Is(err, receiver.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, ErrCodeQueueFull, err.Error())
	default:
		gatewayError(w, err)
	}
}
