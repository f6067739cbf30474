package endpoints

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

// IntrospectionHandler serves POST /connect/introspect for APIs
// authenticating with their resource secrets.
type IntrospectionHandler struct {
	apis     *validation.ApiSecretValidator
	requests *validation.IntrospectionRequestValidator
}

func NewIntrospectionHandler(apis *validation.ApiSecretValidator, requests *validation.IntrospectionRequestValidator) *IntrospectionHandler {
	return &IntrospectionHandler{apis: apis, requests: requests}
}

func (h *IntrospectionHandler) Register(r chi.Router) {
	r.Post("/connect/introspect", h.handle)
}

func (h *IntrospectionHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeProtocolError(w, validation.ErrInvalidRequest, "malformed form body")
		return
	}

	apiResult, err := h.apis.Validate(ctx, r)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if apiResult.IsError {
		writeProtocolError(w, apiResult.Error, "")
		return
	}

	result, err := h.requests.Validate(ctx, r.PostForm, "")
	if err != nil {
		serverError(w, r, err)
		return
	}
	if result.IsError {
		writeProtocolError(w, result.Error, result.ErrorDescription)
		return
	}

	if !result.IsActive {
		logger.From(ctx).Debug("introspection: token inactive",
			logger.ProtocolError(result.FailureReason))
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}

	body := make(map[string]any, len(result.Claims)+1)
	for k, v := range result.Claims {
		body[k] = v
	}
	body["active"] = true
	writeJSON(w, http.StatusOK, body)
}

// RevocationHandler serves POST /connect/revocation per RFC 7009.
// Clients may only revoke their own grants; foreign handles are ignored
// silently, as the RFC requires.
type RevocationHandler struct {
	clients       *validation.ClientSecretValidator
	requests      *validation.RevocationRequestValidator
	refreshTokens store.RefreshTokenStore
	refTokens     store.ReferenceTokenStore
}

func NewRevocationHandler(clients *validation.ClientSecretValidator, requests *validation.RevocationRequestValidator, refreshTokens store.RefreshTokenStore, refTokens store.ReferenceTokenStore) *RevocationHandler {
	return &RevocationHandler{
		clients:       clients,
		requests:      requests,
		refreshTokens: refreshTokens,
		refTokens:     refTokens,
	}
}

func (h *RevocationHandler) Register(r chi.Router) {
	r.Post("/connect/revocation", h.handle)
}

func (h *RevocationHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeProtocolError(w, validation.ErrInvalidRequest, "malformed form body")
		return
	}

	clientResult, err := h.clients.Validate(ctx, r)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if clientResult.IsError {
		writeProtocolError(w, clientResult.Error, "")
		return
	}

	result, err := h.requests.Validate(ctx, r.PostForm)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if result.IsError {
		writeProtocolError(w, result.Error, result.ErrorDescription)
		return
	}

	revoked, err := h.revoke(r, clientResult.Client.ClientID, result)
	if err != nil {
		serverError(w, r, err)
		return
	}
	logger.From(ctx).Debug("revocation processed",
		logger.ClientID(clientResult.Client.ClientID), logger.Bool("revoked", revoked))
	w.WriteHeader(http.StatusOK)
}

func (h *RevocationHandler) revoke(r *http.Request, clientID string, result *validation.RevocationValidationResult) (bool, error) {
	ctx := r.Context()

	tryRefresh := result.TokenTypeHint == "" || result.TokenTypeHint == "refresh_token"
	tryAccess := result.TokenTypeHint == "" || result.TokenTypeHint == "access_token"

	if tryRefresh {
		token, err := h.refreshTokens.Get(ctx, result.Token)
		switch {
		case err == nil:
			if token.ClientID != clientID {
				return false, nil
			}
			return true, h.refreshTokens.Remove(ctx, result.Token)
		case !errors.Is(err, store.ErrNotFound):
			return false, err
		}
	}
	if tryAccess {
		token, err := h.refTokens.Get(ctx, result.Token)
		switch {
		case err == nil:
			if token.ClientID != clientID {
				return false, nil
			}
			return true, h.refTokens.Remove(ctx, result.Token)
		case !errors.Is(err, store.ErrNotFound):
			return false, err
		}
	}
	return false, nil
}
