package endpoints

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/tokens"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

// TokenHandler serves POST /connect/token.
type TokenHandler struct {
	clients  *validation.ClientSecretValidator
	requests *validation.TokenRequestValidator
	issuer   *tokens.Service
}

func NewTokenHandler(clients *validation.ClientSecretValidator, requests *validation.TokenRequestValidator, issuer *tokens.Service) *TokenHandler {
	return &TokenHandler{clients: clients, requests: requests, issuer: issuer}
}

func (h *TokenHandler) Register(r chi.Router) {
	r.Post("/connect/token", h.handle)
}

func (h *TokenHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.requests.Validate(ctx, r.PostForm, clientResult.Client)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if result.IsError {
		writeProtocolError(w, result.Error, result.ErrorDescription)
		return
	}

	response, err := h.issuer.IssueTokenResponse(ctx, result)
	if err != nil {
		serverError(w, r, err)
		return
	}

	logger.From(ctx).Info("tokens issued",
		logger.ClientID(clientResult.Client.ClientID),
		logger.GrantType(result.Request.GrantType))
	writeJSON(w, http.StatusOK, tokenResponseBody(response))
}

// tokenResponseBody flattens extension-grant custom fields into the
// top-level response object. Standard members always win.
func tokenResponseBody(resp *tokens.Response) map[string]any {
	body := make(map[string]any, 6+len(resp.Custom))
	for k, v := range resp.Custom {
		body[k] = v
	}
	body["access_token"] = resp.AccessToken
	body["token_type"] = resp.TokenType
	body["expires_in"] = resp.ExpiresIn
	if resp.RefreshToken != "" {
		body["refresh_token"] = resp.RefreshToken
	}
	if resp.IdentityToken != "" {
		body["id_token"] = resp.IdentityToken
	}
	if resp.Scope != "" {
		body["scope"] = resp.Scope
	}
	return body
}
