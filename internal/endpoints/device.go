package endpoints

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/tokens"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

// DeviceAuthorizationHandler serves POST /connect/deviceauthorization,
// the entry point of the device flow.
type DeviceAuthorizationHandler struct {
	clients   *validation.ClientSecretValidator
	resources *validation.ResourceValidator
	issuer    *tokens.Service
}

func NewDeviceAuthorizationHandler(clients *validation.ClientSecretValidator, resources *validation.ResourceValidator, issuer *tokens.Service) *DeviceAuthorizationHandler {
	return &DeviceAuthorizationHandler{clients: clients, resources: resources, issuer: issuer}
}

func (h *DeviceAuthorizationHandler) Register(r chi.Router) {
	r.Post("/connect/deviceauthorization", h.handle)
}

func (h *DeviceAuthorizationHandler) handle(w http.ResponseWriter, r *http.Request) {
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
	client := clientResult.Client

	if !client.AllowsGrantType(model.GrantDeviceCode) {
		writeProtocolError(w, validation.ErrUnauthorizedClient, "device flow not allowed for client")
		return
	}

	scopes := strings.Fields(r.PostFormValue("scope"))
	if len(scopes) == 0 {
		scopes = append(scopes, client.AllowedScopes...)
		if client.AllowOfflineAccess {
			scopes = append(scopes, model.ScopeOfflineAccess)
		}
	}
	validated, err := h.resources.ValidateRequestedResources(ctx, client, scopes)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if !validated.Succeeded() {
		writeProtocolError(w, validation.ErrInvalidScope, "invalid scope")
		return
	}

	authorization, err := h.issuer.StartDeviceFlow(ctx, client, validated.RawScopeValues())
	if err != nil {
		serverError(w, r, err)
		return
	}

	logger.From(ctx).Info("device flow started", logger.ClientID(client.ClientID))
	writeJSON(w, http.StatusOK, authorization)
}
