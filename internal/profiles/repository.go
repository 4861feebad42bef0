// Package profiles is the document store behind the REST glue: user and
// clinical-station profiles persisted as JSONB documents keyed by id.
package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound marks a missing document.
var ErrNotFound = errors.New("document not found")

// EditStatus is the edit-tracking slice of a station document.
type EditStatus struct {
	HasBeenEdited bool            `json:"hasBeenEdited"`
	LastEdited    json.RawMessage `json:"lastEdited"`
}

// Repository implements keyed document access on Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the document tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS users (
			id         text PRIMARY KEY,
			data       jsonb NOT NULL DEFAULT '{}'::jsonb,
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS stations (
			id         text PRIMARY KEY,
			data       jsonb NOT NULL DEFAULT '{}'::jsonb,
			updated_at timestamptz NOT NULL DEFAULT now()
		);`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetUser returns the raw user document.
func (r *Repository) GetUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return r.getDoc(ctx, "users", userID)
}

// ListUsers returns every user document.
func (r *Repository) ListUsers(ctx context.Context) ([]json.RawMessage, error) {
	return r.listDocs(ctx, "users")
}

// PutUser upserts a user document.
func (r *Repository) PutUser(ctx context.Context, userID string, data json.RawMessage) error {
	return r.putDoc(ctx, "users", userID, data)
}

// GetStation returns the raw station document.
func (r *Repository) GetStation(ctx context.Context, stationID string) (json.RawMessage, error) {
	return r.getDoc(ctx, "stations", stationID)
}

// ListStations returns every station document.
func (r *Repository) ListStations(ctx context.Context) ([]json.RawMessage, error) {
	return r.listDocs(ctx, "stations")
}

// PutStation upserts a station document.
func (r *Repository) PutStation(ctx context.Context, stationID string, data json.RawMessage) error {
	return r.putDoc(ctx, "stations", stationID, data)
}

// StationEditStatus extracts the edit-tracking fields of one station. A
// missing station reads as never edited, matching the product behavior.
func (r *Repository) StationEditStatus(ctx context.Context, stationID string) (*EditStatus, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COALESCE(data->>'hasBeenEdited', 'false'), data->'lastEdited'
		   FROM stations WHERE id = $1`, stationID)

	var hasBeenEdited string
	var lastEdited json.RawMessage
	err := row.Scan(&hasBeenEdited, &lastEdited)
	if errors.Is(err, pgx.ErrNoRows) {
		return &EditStatus{HasBeenEdited: false, LastEdited: json.RawMessage("null")}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read edit status: %w", err)
	}
	if len(lastEdited) == 0 {
		lastEdited = json.RawMessage("null")
	}
	return &EditStatus{HasBeenEdited: hasBeenEdited == "true", LastEdited: lastEdited}, nil
}

// BatchStationEditStatus reads edit status for many stations in one query.
// Unknown ids read as never edited.
func (r *Repository) BatchStationEditStatus(ctx context.Context, stationIDs []string) (map[string]*EditStatus, error) {
	results := make(map[string]*EditStatus, len(stationIDs))
	for _, id := range stationIDs {
		results[id] = &EditStatus{HasBeenEdited: false, LastEdited: json.RawMessage("null")}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(data->>'hasBeenEdited', 'false'), data->'lastEdited'
		   FROM stations WHERE id = ANY($1)`, stationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-read edit status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, hasBeenEdited string
		var lastEdited json.RawMessage
		if err := rows.Scan(&id, &hasBeenEdited, &lastEdited); err != nil {
			return nil, fmt.Errorf("failed to scan edit status: %w", err)
		}
		if len(lastEdited) == 0 {
			lastEdited = json.RawMessage("null")
		}
		results[id] = &EditStatus{HasBeenEdited: hasBeenEdited == "true", LastEdited: lastEdited}
	}
	return results, rows.Err()
}

// ResetAllUserStats zeroes the training statistics of every user, the
// admin "start the season over" operation. Returns affected user count.
func (r *Repository) ResetAllUserStats(ctx context.Context) (int64, error) {
	const reset = `
		UPDATE users SET
			data = data || jsonb_build_object(
				'status', 'offline',
				'totalEstacoesFeitas', 0,
				'mediaGeral', 0,
				'melhorNota', 0,
				'piorNota', 0,
				'tempoTotalTreinamento', 0,
				'pontosExperiencia', 0,
				'nivelAtual', 'Iniciante',
				'ultimaAtividade', null,
				'conquistas', '[]'::jsonb,
				'historicoSimulacoes', '[]'::jsonb,
				'estatisticasPorEspecialidade', '{}'::jsonb,
				'progressoSemanal', '[]'::jsonb,
				'metasSemana', jsonb_build_object(
					'estacoesPlanejadas', 0,
					'estacoesRealizadas', 0,
					'progresso', 0)),
			updated_at = now()`
	tag, err := r.pool.Exec(ctx, reset)
	if err != nil {
		return 0, fmt.Errorf("failed to reset user stats: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) getDoc(ctx context.Context, table, id string) (json.RawMessage, error) {
	var data json.RawMessage
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, table), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s document: %w", table, err)
	}
	return data, nil
}

func (r *Repository) listDocs(ctx context.Context, table string) ([]json.RawMessage, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT jsonb_set(data, '{id}', to_jsonb(id)) FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", table, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var data json.RawMessage
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", table, err)
		}
		docs = append(docs, data)
	}
	return docs, rows.Err()
}

func (r *Repository) putDoc(ctx context.Context, table, id string, data json.RawMessage) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, table),
		id, data)
	if err != nil {
		return fmt.Errorf("failed to put %s document: %w", table, err)
	}
	return nil
}
