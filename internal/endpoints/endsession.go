package endpoints

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

// EndSessionHandler serves GET /connect/endsession.
type EndSessionHandler struct {
	requests *validation.EndSessionRequestValidator
	sessions SessionReader
}

func NewEndSessionHandler(requests *validation.EndSessionRequestValidator, sessions SessionReader) *EndSessionHandler {
	if sessions == nil {
		sessions = AnonymousSessionReader{}
	}
	return &EndSessionHandler{requests: requests, sessions: sessions}
}

func (h *EndSessionHandler) Register(r chi.Router) {
	r.Get("/connect/endsession", h.handle)
}

func (h *EndSessionHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, _ := h.sessions.Session(r)

	result, err := h.requests.Validate(ctx, r.URL.Query(), subjectID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if result.IsError {
		writeProtocolError(w, result.Error, result.ErrorDescription)
		return
	}

	req := result.Request
	logger.From(ctx).Info("session ended",
		logger.ClientID(req.ClientID), logger.SubjectID(req.SubjectID))

	if req.PostLogoutRedirectURI == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target, _ := url.Parse(req.PostLogoutRedirectURI)
	if req.State != "" {
		query := target.Query()
		query.Set("state", req.State)
		target.RawQuery = query.Encode()
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}
