package endpoints

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/tokens"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

// SessionReader resolves the authenticated browser session for the
// redirect-based endpoints. Hosts plug in their own session mechanism.
type SessionReader interface {
	Session(r *http.Request) (subjectID, sessionID string)
}

// AnonymousSessionReader reports no session. Authorize requests then
// fail with login_required.
type AnonymousSessionReader struct{}

func (AnonymousSessionReader) Session(r *http.Request) (string, string) { return "", "" }

// TrustedHeaderSessionReader reads the subject from headers set by an
// authenticating reverse proxy. Only deploy behind one.
type TrustedHeaderSessionReader struct {
	SubjectHeader string
	SessionHeader string
}

func (t TrustedHeaderSessionReader) Session(r *http.Request) (string, string) {
	return r.Header.Get(t.SubjectHeader), r.Header.Get(t.SessionHeader)
}

// AuthorizeHandler serves GET/POST /connect/authorize.
type AuthorizeHandler struct {
	requests *validation.AuthorizeRequestValidator
	issuer   *tokens.Service
	sessions SessionReader
}

func NewAuthorizeHandler(requests *validation.AuthorizeRequestValidator, issuer *tokens.Service, sessions SessionReader) *AuthorizeHandler {
	if sessions == nil {
		sessions = AnonymousSessionReader{}
	}
	return &AuthorizeHandler{requests: requests, issuer: issuer, sessions: sessions}
}

func (h *AuthorizeHandler) Register(r chi.Router) {
	r.Get("/connect/authorize", h.handle)
	r.Post("/connect/authorize", h.handle)
}

func (h *AuthorizeHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var parameters url.Values
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			writeProtocolError(w, validation.ErrInvalidRequest, "malformed form body")
			return
		}
		parameters = r.PostForm
	} else {
		parameters = r.URL.Query()
	}

	subjectID, sessionID := h.sessions.Session(r)

	result, err := h.requests.Validate(ctx, parameters, subjectID, sessionID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if result.IsError {
		// Only redirect errors once the return address is proven to
		// belong to the client; anything earlier answers directly.
		if result.Request != nil && result.Request.RedirectURI != "" {
			h.redirectError(w, r, result)
			return
		}
		writeProtocolError(w, result.Error, result.ErrorDescription)
		return
	}

	req := result.Request
	if req.SubjectID == "" {
		h.redirect(w, r, req, url.Values{
			"error": []string{"login_required"},
			"state": []string{req.State},
		})
		return
	}

	response, err := h.issuer.IssueAuthorizeResponse(ctx, req)
	if err != nil {
		serverError(w, r, err)
		return
	}
	logger.From(ctx).Info("authorize request granted",
		logger.ClientID(req.ClientID), logger.ResponseType(req.ResponseType))

	h.redirect(w, r, req, authorizeResponseValues(response))
}

func authorizeResponseValues(resp *tokens.AuthorizeResponse) url.Values {
	values := url.Values{}
	if resp.Code != "" {
		values.Set("code", resp.Code)
	}
	if resp.AccessToken != "" {
		values.Set("access_token", resp.AccessToken)
		values.Set("token_type", resp.TokenType)
		values.Set("expires_in", itoa(resp.ExpiresIn))
	}
	if resp.IdentityToken != "" {
		values.Set("id_token", resp.IdentityToken)
	}
	if resp.Scope != "" {
		values.Set("scope", resp.Scope)
	}
	if resp.State != "" {
		values.Set("state", resp.State)
	}
	return values
}

func (h *AuthorizeHandler) redirectError(w http.ResponseWriter, r *http.Request, result *validation.AuthorizeRequestValidationResult) {
	values := url.Values{"error": []string{result.Error}}
	if result.ErrorDescription != "" {
		values.Set("error_description", result.ErrorDescription)
	}
	if state := result.Request.State; state != "" {
		values.Set("state", state)
	}
	h.redirect(w, r, result.Request, values)
}

// redirect delivers values to the validated redirect_uri using the
// request's response mode.
func (h *AuthorizeHandler) redirect(w http.ResponseWriter, r *http.Request, req *validation.ValidatedAuthorizeRequest, values url.Values) {
	for k, vs := range values {
		if len(vs) == 1 && vs[0] == "" {
			values.Del(k)
		}
	}

	switch req.ResponseMode {
	case validation.ResponseModeFormPost:
		writeFormPost(w, req.RedirectURI, values)
	case validation.ResponseModeFragment:
		http.Redirect(w, r, req.RedirectURI+"#"+values.Encode(), http.StatusFound)
	default:
		target, _ := url.Parse(req.RedirectURI)
		query := target.Query()
		for k, vs := range values {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		target.RawQuery = query.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}
