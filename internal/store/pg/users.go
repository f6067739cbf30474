package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// UserStore resolves resource owners for the password grant and the
// profile liveness check.
type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOne(ctx, `SELECT doc FROM app_user WHERE username = $1`, username)
}

func (s *UserStore) FindBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	return s.findOne(ctx, `SELECT doc FROM app_user WHERE subject_id = $1`, subjectID)
}

func (s *UserStore) findOne(ctx context.Context, sql, arg string) (*model.User, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, sql, arg).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pg: find user: %w", err)
	}
	var user model.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, fmt.Errorf("pg: decode user: %w", err)
	}
	return &user, nil
}
