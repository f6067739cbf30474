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

// ClientStore resolves registered clients from the client table.
type ClientStore struct {
	db *pgxpool.Pool
}

func NewClientStore(db *pgxpool.Pool) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) FindEnabledClientByID(ctx context.Context, clientID string) (*model.Client, error) {
	var doc []byte
	err := s.db.QueryRow(ctx,
		`SELECT doc FROM client WHERE client_id = $1 AND enabled`, clientID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pg: find client: %w", err)
	}
	var client model.Client
	if err := json.Unmarshal(doc, &client); err != nil {
		return nil, fmt.Errorf("pg: decode client %s: %w", clientID, err)
	}
	return &client, nil
}
