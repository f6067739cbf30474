package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// ResourceStore resolves identity and API resources. API resources keep
// their exposed scope names denormalized in a text array so scope lookups
// stay a single indexed query.
type ResourceStore struct {
	db *pgxpool.Pool
}

func NewResourceStore(db *pgxpool.Pool) *ResourceStore {
	return &ResourceStore{db: db}
}

func (s *ResourceStore) FindEnabledResourcesByScope(ctx context.Context, scopeNames []string) (*model.Resources, error) {
	out := &model.Resources{}
	if len(scopeNames) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT doc FROM identity_resource WHERE name = ANY($1) AND enabled`, scopeNames)
	if err != nil {
		return nil, fmt.Errorf("pg: find identity resources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("pg: scan identity resource: %w", err)
		}
		var ir model.IdentityResource
		if err := json.Unmarshal(doc, &ir); err != nil {
			return nil, fmt.Errorf("pg: decode identity resource: %w", err)
		}
		out.IdentityResources = append(out.IdentityResources, ir)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg: find identity resources: %w", err)
	}

	apis, err := s.queryApis(ctx,
		`SELECT doc FROM api_resource WHERE scope_names && $1 AND enabled`, scopeNames)
	if err != nil {
		return nil, err
	}
	out.ApiResources = apis
	return out, nil
}

func (s *ResourceStore) FindApiResourcesByName(ctx context.Context, names []string) ([]model.ApiResource, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return s.queryApis(ctx,
		`SELECT doc FROM api_resource WHERE name = ANY($1) AND enabled`, names)
}

func (s *ResourceStore) queryApis(ctx context.Context, sql string, arg []string) ([]model.ApiResource, error) {
	rows, err := s.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("pg: find api resources: %w", err)
	}
	defer rows.Close()

	var out []model.ApiResource
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("pg: scan api resource: %w", err)
		}
		var api model.ApiResource
		if err := json.Unmarshal(doc, &api); err != nil {
			return nil, fmt.Errorf("pg: decode api resource: %w", err)
		}
		out = append(out, api)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg: find api resources: %w", err)
	}
	return out, nil
}
