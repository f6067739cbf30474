package validation

import (
	"context"

	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// ParsedScope is the structured form of a raw scope string.
type ParsedScope struct {
	RawValue string
	// Name is the resource/scope name looked up in the store.
	Name string
	// Parameter carries the suffix of a parameterized scope (api:123).
	Parameter string
}

// ScopeParser turns raw scope strings into structured values. The
// default parser maps names onto themselves; deployments with
// parameterized scopes plug in their own.
type ScopeParser interface {
	Parse(raw string) (ParsedScope, bool)
}

// DefaultScopeParser is the identity mapping.
type DefaultScopeParser struct{}

func (DefaultScopeParser) Parse(raw string) (ParsedScope, bool) {
	if raw == "" {
		return ParsedScope{}, false
	}
	return ParsedScope{RawValue: raw, Name: raw}, true
}

// ResourceValidationResult partitions validated scopes into identity
// resources, API scopes and the API resources exposing them.
//
// The contract is all-or-nothing: a single invalid or disallowed scope
// empties every partition and reports via InvalidScopes.
type ResourceValidationResult struct {
	Resources     model.Resources
	ApiScopes     []model.ApiScope
	ParsedScopes  []ParsedScope
	OfflineAccess bool

	InvalidScopes []string
}

// Succeeded reports whether every requested scope validated.
func (r *ResourceValidationResult) Succeeded() bool {
	return len(r.InvalidScopes) == 0
}

// RawScopeValues returns the raw strings of all validated scopes.
func (r *ResourceValidationResult) RawScopeValues() []string {
	out := make([]string, 0, len(r.ParsedScopes))
	for _, s := range r.ParsedScopes {
		out = append(out, s.RawValue)
	}
	if r.OfflineAccess {
		out = append(out, model.ScopeOfflineAccess)
	}
	return out
}

// HasIdentityScopes reports whether any identity resource matched.
func (r *ResourceValidationResult) HasIdentityScopes() bool {
	return len(r.Resources.IdentityResources) > 0
}

// HasApiScopes reports whether any API scope matched.
func (r *ResourceValidationResult) HasApiScopes() bool {
	return len(r.ApiScopes) > 0
}

// ResourceValidator resolves requested scope strings into concrete
// resources, filtered by what is enabled and what the client may request.
type ResourceValidator struct {
	resources store.ResourceStore
	parser    ScopeParser
}

func NewResourceValidator(resources store.ResourceStore, parser ScopeParser) *ResourceValidator {
	if parser == nil {
		parser = DefaultScopeParser{}
	}
	return &ResourceValidator{resources: resources, parser: parser}
}

// ValidateRequestedResources resolves every requested scope name for the
// client. Infrastructure faults return an error; protocol-level scope
// problems are reported through InvalidScopes.
func (v *ResourceValidator) ValidateRequestedResources(ctx context.Context, client *model.Client, requestedScopes []string) (*ResourceValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.resources"), logger.ClientID(client.ClientID))

	result := &ResourceValidationResult{}

	var parsed []ParsedScope
	var offlineRequested bool
	for _, raw := range requestedScopes {
		if raw == model.ScopeOfflineAccess {
			offlineRequested = true
			continue
		}
		ps, ok := v.parser.Parse(raw)
		if !ok {
			result.InvalidScopes = append(result.InvalidScopes, raw)
			continue
		}
		parsed = append(parsed, ps)
	}

	names := make([]string, 0, len(parsed))
	for _, ps := range parsed {
		names = append(names, ps.Name)
	}
	snapshot, err := v.resources.FindEnabledResourcesByScope(ctx, names)
	if err != nil {
		return nil, err
	}

	seenApis := make(map[string]struct{})
	seenApiScopes := make(map[string]struct{})

	for _, ps := range parsed {
		if ir, ok := snapshot.FindIdentityResource(ps.Name); ok {
			if !client.AllowsScope(ps.Name) {
				result.InvalidScopes = append(result.InvalidScopes, ps.RawValue)
				continue
			}
			result.Resources.IdentityResources = append(result.Resources.IdentityResources, ir)
			result.ParsedScopes = append(result.ParsedScopes, ps)
			continue
		}

		apis := snapshot.FindApiResourcesByScope(ps.Name)
		if len(apis) == 0 {
			result.InvalidScopes = append(result.InvalidScopes, ps.RawValue)
			continue
		}
		if !client.AllowsScope(ps.Name) {
			result.InvalidScopes = append(result.InvalidScopes, ps.RawValue)
			continue
		}
		if _, dup := seenApiScopes[ps.Name]; !dup {
			seenApiScopes[ps.Name] = struct{}{}
			sc, _ := apis[0].FindScope(ps.Name)
			result.ApiScopes = append(result.ApiScopes, sc)
		}
		for _, api := range apis {
			if _, dup := seenApis[api.Name]; dup {
				continue
			}
			seenApis[api.Name] = struct{}{}
			result.Resources.ApiResources = append(result.Resources.ApiResources, api)
		}
		result.ParsedScopes = append(result.ParsedScopes, ps)
	}

	if offlineRequested {
		if !client.AllowOfflineAccess {
			result.InvalidScopes = append(result.InvalidScopes, model.ScopeOfflineAccess)
		} else {
			result.OfflineAccess = true
			result.Resources.OfflineAccess = true
		}
	}

	if len(result.InvalidScopes) > 0 {
		log.Debug("scope validation failed", logger.Scopes(result.InvalidScopes))
		// All-or-nothing: discard any partial accumulation.
		return &ResourceValidationResult{InvalidScopes: result.InvalidScopes}, nil
	}
	return result, nil
}
