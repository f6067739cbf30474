package store

import (
	"context"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// InMemoryClientStore serves a fixed client list. Intended for tests and
// single-binary deployments configured from YAML.
type InMemoryClientStore struct {
	clients map[string]*model.Client
}

func NewInMemoryClientStore(clients []model.Client) *InMemoryClientStore {
	m := make(map[string]*model.Client, len(clients))
	for i := range clients {
		m[clients[i].ClientID] = &clients[i]
	}
	return &InMemoryClientStore{clients: m}
}

func (s *InMemoryClientStore) FindEnabledClientByID(ctx context.Context, clientID string) (*model.Client, error) {
	c, ok := s.clients[clientID]
	if !ok || !c.Enabled {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// InMemoryResourceStore serves a fixed resource snapshot.
type InMemoryResourceStore struct {
	identity []model.IdentityResource
	apis     []model.ApiResource
}

func NewInMemoryResourceStore(identity []model.IdentityResource, apis []model.ApiResource) *InMemoryResourceStore {
	return &InMemoryResourceStore{identity: identity, apis: apis}
}

func (s *InMemoryResourceStore) FindEnabledResourcesByScope(ctx context.Context, scopeNames []string) (*model.Resources, error) {
	names := make(map[string]struct{}, len(scopeNames))
	for _, n := range scopeNames {
		names[n] = struct{}{}
	}

	out := &model.Resources{}
	for _, ir := range s.identity {
		if !ir.Enabled {
			continue
		}
		if _, ok := names[ir.Name]; ok {
			out.IdentityResources = append(out.IdentityResources, ir)
		}
	}
	for _, api := range s.apis {
		if !api.Enabled {
			continue
		}
		for _, sc := range api.Scopes {
			if _, ok := names[sc.Name]; ok {
				out.ApiResources = append(out.ApiResources, api)
				break
			}
		}
	}
	return out, nil
}

func (s *InMemoryResourceStore) FindApiResourcesByName(ctx context.Context, names []string) ([]model.ApiResource, error) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	var out []model.ApiResource
	for _, api := range s.apis {
		if !api.Enabled {
			continue
		}
		if _, ok := set[api.Name]; ok {
			out = append(out, api)
		}
	}
	return out, nil
}

// InMemoryUserStore serves a fixed user list for the password grant.
type InMemoryUserStore struct {
	byUsername map[string]*model.User
	bySubject  map[string]*model.User
}

func NewInMemoryUserStore(users []model.User) *InMemoryUserStore {
	s := &InMemoryUserStore{
		byUsername: make(map[string]*model.User, len(users)),
		bySubject:  make(map[string]*model.User, len(users)),
	}
	for i := range users {
		s.byUsername[users[i].Username] = &users[i]
		s.bySubject[users[i].SubjectID] = &users[i]
	}
	return s
}

func (s *InMemoryUserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryUserStore) FindBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	u, ok := s.bySubject[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// UserProfileService answers liveness from a UserStore: a subject is
// active while its user record exists and is not disabled.
type UserProfileService struct {
	users UserStore
}

func NewUserProfileService(users UserStore) *UserProfileService {
	return &UserProfileService{users: users}
}

func (p *UserProfileService) IsActive(ctx context.Context, subjectID string, client *model.Client, caller string) (bool, error) {
	if subjectID == "" {
		return false, nil
	}
	u, err := p.users.FindBySubject(ctx, subjectID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Active, nil
}

// AlwaysActiveProfileService reports every subject as active. Useful for
// tests and client-only deployments.
type AlwaysActiveProfileService struct{}

func (AlwaysActiveProfileService) IsActive(ctx context.Context, subjectID string, client *model.Client, caller string) (bool, error) {
	return true, nil
}
