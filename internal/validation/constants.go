package validation

import (
	"sort"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// Response modes.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Prompt modes.
const (
	PromptNone          = "none"
	PromptLogin         = "login"
	PromptConsent       = "consent"
	PromptSelectAccount = "select_account"
)

// responseTypeToGrantType maps a normalized response_type to the flow it
// selects. Multi-valued response types compare order-insensitively, so
// keys are stored space-sorted.
var responseTypeToGrantType = map[string]string{
	"code":                model.GrantAuthorizationCode,
	"token":               model.GrantImplicit,
	"id_token":            model.GrantImplicit,
	"id_token token":      model.GrantImplicit,
	"code id_token":       model.GrantHybrid,
	"code token":          model.GrantHybrid,
	"code id_token token": model.GrantHybrid,
}

// allowedResponseModesForGrant: redirect-based flows that return tokens
// must never use the query response mode.
var allowedResponseModesForGrant = map[string][]string{
	model.GrantAuthorizationCode: {ResponseModeQuery, ResponseModeFragment, ResponseModeFormPost},
	model.GrantImplicit:          {ResponseModeFragment, ResponseModeFormPost},
	model.GrantHybrid:            {ResponseModeFragment, ResponseModeFormPost},
}

var defaultResponseModeForGrant = map[string]string{
	model.GrantAuthorizationCode: ResponseModeQuery,
	model.GrantImplicit:          ResponseModeFragment,
	model.GrantHybrid:            ResponseModeFragment,
}

var supportedPromptModes = map[string]struct{}{
	PromptNone:          {},
	PromptLogin:         {},
	PromptConsent:       {},
	PromptSelectAccount: {},
}

var supportedDisplayModes = map[string]struct{}{
	"page":  {},
	"popup": {},
	"touch": {},
	"wap":   {},
}

// normalizeResponseType sorts the space-delimited values so permutations
// of the same multi-valued response type compare equal.
func normalizeResponseType(rt string) string {
	parts := strings.Fields(rt)
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// responseTypeIncludes reports whether the (normalized) response type
// contains the given element.
func responseTypeIncludes(rt, element string) bool {
	for _, p := range strings.Fields(rt) {
		if p == element {
			return true
		}
	}
	return false
}
