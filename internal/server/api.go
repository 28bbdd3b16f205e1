// ABOUTME: JSON handlers for listing, inspecting and regenerating printer credentials
// ABOUTME: Responses never include credential secrets

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/2389/printauth/internal/auth"
	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/orchestrator"
)

// regenerateTimeout bounds a regeneration request, including the wait for
// a running cycle.
const regenerateTimeout = 30 * time.Second

// CredentialResponse is the JSON view of one credential.
type CredentialResponse struct {
	Host      string         `json:"host"`
	ID        string         `json:"id"`
	Status    authkey.Status `json:"status"`
	Available bool           `json:"available"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ListCredentialsResponse is the JSON response for GET /api/credentials.
type ListCredentialsResponse struct {
	Ready       bool                 `json:"ready"`
	Credentials []CredentialResponse `json:"credentials"`
	// Unpaired lists configured hosts that have no credential yet.
	Unpaired []string `json:"unpaired"`
}

func toCredentialResponse(k authkey.Key, available []string) CredentialResponse {
	return CredentialResponse{
		Host:      k.Host,
		ID:        k.ID,
		Status:    k.Status,
		Available: slices.Contains(available, k.Host),
		UpdatedAt: k.UpdatedAt,
	}
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	available := s.orch.Available()
	keys := s.orch.Credentials()

	resp := ListCredentialsResponse{
		Ready:       s.orch.Ready(),
		Credentials: make([]CredentialResponse, 0, len(keys)),
		Unpaired:    []string{},
	}
	paired := make(map[string]bool, len(keys))
	for _, k := range keys {
		resp.Credentials = append(resp.Credentials, toCredentialResponse(k, available))
		paired[k.Host] = true
	}
	for _, host := range s.orch.Hosts() {
		if !paired[host] {
			resp.Unpaired = append(resp.Unpaired, host)
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	k, ok := s.orch.Credential(host)
	if !ok {
		s.sendJSONError(w, http.StatusNotFound, "no credential for host")
		return
	}
	s.writeJSON(w, http.StatusOK, toCredentialResponse(k, s.orch.Available()))
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")

	ctx, cancel := context.WithTimeout(r.Context(), regenerateTimeout)
	defer cancel()

	k, err := s.orch.Regenerate(ctx, host)
	if err != nil {
		status, msg := regenerateErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("credential regeneration failed", "host", host, "error", err)
		}
		s.sendJSONError(w, status, msg)
		return
	}

	s.logger.Info("credential regenerated via API",
		"host", host,
		"operator", auth.OperatorFromContext(r.Context()))
	s.writeJSON(w, http.StatusOK, toCredentialResponse(k, s.orch.Available()))
}

func regenerateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownHost):
		return http.StatusNotFound, "host is not configured"
	case errors.Is(err, authkey.ErrTransport):
		return http.StatusBadGateway, "printer unreachable"
	case errors.Is(err, authkey.ErrProtocol):
		return http.StatusBadGateway, "unexpected printer response"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timed out waiting for orchestrator"
	case errors.Is(err, authkey.ErrConcurrency):
		return http.StatusServiceUnavailable, "shutting down"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
