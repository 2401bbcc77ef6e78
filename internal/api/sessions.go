package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/storequery/storequery/internal/auth"
	"github.com/storequery/storequery/internal/chat"
	"github.com/storequery/storequery/internal/tenant"
)

type createSessionRequest struct {
	TenantScope string `json:"tenant_scope"`
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	TenantScope string `json:"tenant_scope"`
	ContextLine string `json:"context_line"`
}

type submitTurnRequest struct {
	Question string `json:"question"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type historyTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Ordinal  int    `json:"ordinal"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), false, nil)
		return
	}
	scope, ok := resolveScope(r.Context(), req.TenantScope)
	if !ok {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN_SCOPE", "API key is not allowed to access this tenant", false, nil)
		return
	}

	info, err := deps.Chat.CreateSession(r.Context(), scope)
	if err != nil {
		writeChatError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   info.ID,
		TenantScope: info.TenantScope,
		ContextLine: info.ContextLine,
	})
}

func handleSubmitTurn(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	var req submitTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), false, nil)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "question is required", false, nil)
		return
	}

	answer, err := deps.Chat.SubmitTurn(r.Context(), sessionID, req.Question)
	if err != nil {
		writeChatError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{SessionID: sessionID, Answer: answer})
}

func handleResetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), false, nil)
		return
	}
	scope, ok := resolveScope(r.Context(), req.TenantScope)
	if !ok {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN_SCOPE", "API key is not allowed to access this tenant", false, nil)
		return
	}

	info, err := deps.Chat.ResetSession(r.Context(), sessionID, scope)
	if err != nil {
		writeChatError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:   info.ID,
		TenantScope: info.TenantScope,
		ContextLine: info.ContextLine,
	})
}

func handleSessionHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	turns, err := deps.Chat.History(r.PathValue("session"))
	if err != nil {
		writeChatError(r.Context(), w, err)
		return
	}
	payload := make([]historyTurn, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, historyTurn{
			Question: turn.Question,
			Answer:   turn.Answer,
			Ordinal:  turn.Ordinal,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": payload})
}

func handleCloseSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := deps.Chat.CloseSession(r.PathValue("session")); err != nil {
		writeChatError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveScope reconciles the requested tenant scope with the caller's
// identity. Merchant keys default to their own store and may not reach
// another; analyst keys (and unauthenticated deployments) pass through.
func resolveScope(ctx context.Context, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return requested, true
	}
	if requested == "" {
		return identity.TenantScope, true
	}
	if !identity.CanAccess(requested) {
		return "", false
	}
	return requested, true
}

func writeChatError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		writeError(ctx, w, http.StatusNotFound, "TENANT_NOT_FOUND", err.Error(), false, nil)
	case errors.Is(err, chat.ErrSessionNotFound):
		writeError(ctx, w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", err.Error(), true, nil)
	}
}

// decodeJSON parses the request body. A missing body leaves dst at its
// zero value; POST /v1/sessions with no body opens an unscoped session.
func decodeJSON(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
