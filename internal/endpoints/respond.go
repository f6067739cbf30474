package endpoints

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

type protocolError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeProtocolError maps an OAuth2 error code to its wire form.
// invalid_client gets 401 with a WWW-Authenticate challenge per RFC
// 6749 §5.2.
func writeProtocolError(w http.ResponseWriter, code, description string) {
	status := http.StatusBadRequest
	if code == validation.ErrInvalidClient {
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="gatejohn"`)
	}
	writeJSON(w, status, protocolError{Error: code, ErrorDescription: description})
}

// serverError hides internals behind a plain 500; the cause goes to the
// log only.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.From(r.Context()).Error("request failed", logger.Err(err))
	writeJSON(w, http.StatusInternalServerError, protocolError{Error: "server_error"})
}

func itoa(n int) string { return strconv.Itoa(n) }

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html><head><title>Submit</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range $name, $values := .Values}}{{range $values}}
<input type="hidden" name="{{$name}}" value="{{.}}"/>
{{- end}}{{end}}
<noscript><button type="submit">Continue</button></noscript>
</form></body></html>`))

// writeFormPost renders the response_mode=form_post auto-submit page.
func writeFormPost(w http.ResponseWriter, action string, values url.Values) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = formPostTemplate.Execute(w, struct {
		Action string
		Values url.Values
	}{Action: action, Values: values})
}
