package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"workflow-builder/api/services/identity"
	"workflow-builder/api/services/workflow"
)

// Repository is the Postgres-backed Vault. Secret data is written once and
// never read back through this type.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the credentials table if it does not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			provider   TEXT NOT NULL,
			data       JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("init credentials schema: %w", err)
	}
	_, err = r.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS credentials_owner_provider ON credentials (owner_id, provider)`)
	if err != nil {
		return fmt.Errorf("init credentials index: %w", err)
	}
	return nil
}

// Create stores a credential for the principal in ctx and returns its reference.
func (r *Repository) Create(ctx context.Context, name, provider string, data map[string]any) (workflow.CredentialRef, error) {
	p, err := identity.FromContext(ctx)
	if err != nil {
		return workflow.CredentialRef{}, err
	}
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return workflow.CredentialRef{}, fmt.Errorf("marshal credential data: %w", err)
	}

	ref := workflow.CredentialRef{ID: uuid.NewString(), Name: name, Provider: provider}
	_, err = r.db.Exec(ctx, `
		INSERT INTO credentials (id, owner_id, name, provider, data)
		VALUES ($1, $2, $3, $4, $5)
	`, ref.ID, p.UserID, ref.Name, ref.Provider, dataJSON)
	if err != nil {
		return workflow.CredentialRef{}, fmt.Errorf("create credential: %w", err)
	}
	return ref, nil
}

// Lookup implements Vault, scoped to the principal in ctx.
func (r *Repository) Lookup(ctx context.Context, kind string) ([]workflow.CredentialRef, error) {
	p, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	accepted := Providers(kind)
	if len(accepted) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, name, provider FROM credentials
		WHERE owner_id = $1 AND provider = ANY($2)
		ORDER BY created_at, name
	`, p.UserID, accepted)
	if err != nil {
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}
	defer rows.Close()

	var out []workflow.CredentialRef
	for rows.Next() {
		var ref workflow.CredentialRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Provider); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}
	return out, nil
}
