package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles workflow persistence in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the workflows table if it does not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			nodes      JSONB NOT NULL DEFAULT '[]',
			edges      JSONB NOT NULL DEFAULT '[]',
			active     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Seed inserts the sample workflow if it does not already exist.
func (r *Repository) Seed(ctx context.Context) error {
	sample := SampleWorkflow()
	nodesJSON, err := json.Marshal(sample.Nodes)
	if err != nil {
		return fmt.Errorf("marshal seed nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(sample.Edges)
	if err != nil {
		return fmt.Errorf("marshal seed edges: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO workflows (id, name, nodes, edges)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, sample.ID, sample.Name, nodesJSON, edgesJSON)
	if err != nil {
		return fmt.Errorf("seed workflow: %w", err)
	}
	return nil
}

// Save upserts the workflow and refreshes its timestamps from the database.
func (r *Repository) Save(ctx context.Context, wf *Workflow) error {
	if err := Validate(wf); err != nil {
		return err
	}
	nodesJSON, err := json.Marshal(wf.Definition().Nodes)
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(wf.Edges)
	if err != nil {
		return fmt.Errorf("marshal edges: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO workflows (id, name, nodes, edges, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, wf.ID, wf.Name, nodesJSON, edgesJSON, wf.Active).Scan(&wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// Load retrieves a workflow by ID. Returns ErrWorkflowNotFound if missing.
func (r *Repository) Load(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	var nodesJSON, edgesJSON []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, name, nodes, edges, active, created_at, updated_at
		FROM workflows WHERE id = $1
	`, id).Scan(&wf.ID, &wf.Name, &nodesJSON, &edgesJSON, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	if err := json.Unmarshal(nodesJSON, &wf.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &wf.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	return &wf, nil
}

// InitDB creates the schema and seeds initial data. Called from serve on startup.
func InitDB(ctx context.Context, pool *pgxpool.Pool) error {
	repo := NewRepository(pool)
	if err := repo.InitSchema(ctx); err != nil {
		return err
	}
	return repo.Seed(ctx)
}

// SampleWorkflowID identifies the seeded workflow.
const SampleWorkflowID = "550e8400-e29b-41d4-a716-446655440000"

// SampleWorkflow returns the workflow seeded into fresh databases: a manual
// trigger that looks up a Telegram chat and emails a summary.
func SampleWorkflow() *Workflow {
	return &Workflow{
		ID:   SampleWorkflowID,
		Name: "Telegram Chat Digest",
		Nodes: []Node{
			{
				ID: "trigger", Type: ManualTrigger, TemplateID: "manual-trigger",
				Label:    "Trigger manually",
				Position: Position{X: -160, Y: 300},
				Config:   ManualTriggerConfig{},
				Status:   StatusInitial,
			},
			{
				ID: "get-chat", Type: TelegramGetChat, TemplateID: "telegram-get-chat",
				Label:    "Get a chat",
				Position: Position{X: 152, Y: 304},
				Config:   TelegramGetChatConfig{ChatID: "-1001234567890"},
				Status:   StatusInitial,
			},
			{
				ID: "send-digest", Type: EmailSend, TemplateID: "email-send",
				Label:    "Send email",
				Position: Position{X: 460, Y: 304},
				Config: EmailSendConfig{
					To:      "team@example.com",
					Subject: "Chat digest",
					Body:    "Digest prepared by {{label}} ({{nodeId}})",
				},
				Status: StatusInitial,
			},
		},
		Edges: []Edge{
			{ID: "e1", Source: "trigger", Target: "get-chat"},
			{ID: "e2", Source: "get-chat", Target: "send-digest"},
		},
	}
}
