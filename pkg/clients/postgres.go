// pkg/clients/postgres.go
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool      // Connection pool to PostgreSQL
	log    *zap.SugaredLogger // Logger for diagnostic output
}

// NewPostgresProvider constructs a PostgreSQL-backed client provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates the widget_clients table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS widget_clients (
  client_id text PRIMARY KEY,
  name text NOT NULL DEFAULT '',
  active boolean NOT NULL DEFAULT true,
  authorized_domains text[] NOT NULL DEFAULT '{}',
  token_hash text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS widget_clients_active_idx ON widget_clients(active);
`)
	return err
}

// SeedFromEnv upserts registrations from CLIENT_SEED_JSON.
// jsonSeed format:
// [
//
//	{"clientId":"client_123","name":"Test Client","active":true,
//	 "authorizedDomains":["localhost:5173","*.netlify.app"],"clientToken":"..."}
//
// ]
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []seedEntry
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, entry := range entries {
		reg := entry.registration()
		if reg.ClientID == "" {
			return fmt.Errorf("client seed entry without clientId")
		}
		if _, err := dbPool.Exec(ctx, `INSERT INTO widget_clients(client_id,name,active,authorized_domains,token_hash)
		  VALUES ($1,$2,$3,$4,$5)
		  ON CONFLICT (client_id) DO UPDATE SET name=EXCLUDED.name,active=EXCLUDED.active,
		    authorized_domains=EXCLUDED.authorized_domains,token_hash=EXCLUDED.token_hash,updated_at=NOW()`,
			reg.ClientID, reg.Name, reg.Active, reg.AuthorizedDomains, reg.TokenHash); err != nil {
			return fmt.Errorf("seed %s: %w", reg.ClientID, err)
		}
	}
	return nil
}

// Lookup fetches a registration by client id.
func (p *pgProvider) Lookup(ctx context.Context, clientID string) (Registration, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT client_id,name,active,authorized_domains,token_hash FROM widget_clients WHERE client_id=$1`, clientID)
	var r Registration
	if err := row.Scan(&r.ClientID, &r.Name, &r.Active, &r.AuthorizedDomains, &r.TokenHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Registration{}, ErrClientNotFound
		}
		p.log.Errorw("client lookup", "clientId", clientID, "err", err)
		return Registration{}, err
	}
	return r, nil
}

// List returns all registrations ordered by client id.
func (p *pgProvider) List(ctx context.Context) ([]Registration, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT client_id,name,active,authorized_domains,token_hash FROM widget_clients ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Registration
	for rows.Next() {
		var r Registration
		if err := rows.Scan(&r.ClientID, &r.Name, &r.Active, &r.AuthorizedDomains, &r.TokenHash); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
