// Package store persists curator decisions, the events that record them,
// and the occurrence payloads they reference, modeled directly on the
// original system's SQLAlchemy schema (users / occurrences / events /
// occurrenceRelations).
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// User mirrors storage.py's User table.
type User struct {
	ID    int64
	Name  string
	ORCID string
}

// Occurrence mirrors storage.py's Occurrence table: a GBIF/Plazi payload
// cached by content hash so repeated submissions of the same record reuse
// the same row.
type Occurrence struct {
	ID               int64
	GBIFKey          int64
	DatasetKey       string
	InstitutionKey   string
	PublishingOrgKey string
	Data             json.RawMessage
	DataHash         string
}

// Event mirrors storage.py's Event table: one curator decision session
// against a reference occurrence.
type Event struct {
	ID              int64
	RefOccurrenceID int64
	DatasetKey      string
	InstitutionKey  string
	UserID          int64
	Timestamp       int64
}

// OccurrenceRelation mirrors storage.py's OccurrenceRelation table: the
// per-candidate decision recorded within an Event.
type OccurrenceRelation struct {
	EventID             int64
	RelatedOccurrenceID int64
	Decision            *bool
	IsNewDecision       bool
}

// Store wraps a Postgres connection pool with the queries the HTTP layer
// needs. It never computes a match score; it only records what
// pkg/matching.Score's caller decided.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	orcid TEXT
);

CREATE TABLE IF NOT EXISTS occurrences (
	id SERIAL PRIMARY KEY,
	gbif_key BIGINT,
	dataset_key TEXT,
	institution_key TEXT,
	publishing_org_key TEXT,
	data JSONB NOT NULL,
	data_hash TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS occurrences_gbif_key_idx ON occurrences (gbif_key);

CREATE TABLE IF NOT EXISTS events (
	id SERIAL PRIMARY KEY,
	ref_occurrence_id INTEGER NOT NULL REFERENCES occurrences (id),
	dataset_key TEXT,
	institution_key TEXT,
	user_id INTEGER NOT NULL REFERENCES users (id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS occurrence_relations (
	event_id INTEGER NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	related_occurrence_id INTEGER NOT NULL REFERENCES occurrences (id),
	decision BOOLEAN,
	is_new_decision BOOLEAN NOT NULL,
	PRIMARY KEY (event_id, related_occurrence_id)
);
`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// HashOccurrence returns the SHA-256 content hash of an occurrence
// payload, the same dedup key app.py's get_hash/dataHash pair uses.
func HashOccurrence(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetOrCreateUser finds a user by (name, orcid) or inserts a new one.
func (s *Store) GetOrCreateUser(ctx context.Context, name, orcid string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, coalesce(orcid, '') FROM users WHERE name = $1 AND coalesce(orcid, '') = $2`,
		name, orcid,
	).Scan(&u.ID, &u.Name, &u.ORCID)
	if err == nil {
		return u, nil
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (name, orcid) VALUES ($1, $2) RETURNING id, name, coalesce(orcid, '')`,
		name, orcid,
	).Scan(&u.ID, &u.Name, &u.ORCID)
	if err != nil {
		return User{}, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// GetOrCreateOccurrence finds an occurrence by content hash or inserts a
// new row, mirroring app.py's get_occurrence.
func (s *Store) GetOrCreateOccurrence(ctx context.Context, gbifKey int64, datasetKey, institutionKey, publishingOrgKey string, data json.RawMessage) (Occurrence, error) {
	hash := HashOccurrence(data)

	var occ Occurrence
	err := s.pool.QueryRow(ctx,
		`SELECT id, gbif_key, coalesce(dataset_key, ''), coalesce(institution_key, ''), coalesce(publishing_org_key, ''), data, data_hash
		 FROM occurrences WHERE data_hash = $1`,
		hash,
	).Scan(&occ.ID, &occ.GBIFKey, &occ.DatasetKey, &occ.InstitutionKey, &occ.PublishingOrgKey, &occ.Data, &occ.DataHash)
	if err == nil {
		return occ, nil
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO occurrences (gbif_key, dataset_key, institution_key, publishing_org_key, data, data_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, gbif_key, coalesce(dataset_key, ''), coalesce(institution_key, ''), coalesce(publishing_org_key, ''), data, data_hash`,
		gbifKey, datasetKey, institutionKey, publishingOrgKey, data, hash,
	).Scan(&occ.ID, &occ.GBIFKey, &occ.DatasetKey, &occ.InstitutionKey, &occ.PublishingOrgKey, &occ.Data, &occ.DataHash)
	if err != nil {
		return Occurrence{}, fmt.Errorf("store: create occurrence: %w", err)
	}
	return occ, nil
}

// RecordEvent persists a curator's decision session: one reference
// occurrence plus a list of per-candidate decisions, mirroring
// app.py's POST /newOcurrenceRelations.
func (s *Store) RecordEvent(ctx context.Context, userID, refOccurrenceID int64, datasetKey, institutionKey string, relations []OccurrenceRelation) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var eventID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO events (ref_occurrence_id, dataset_key, institution_key, user_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		refOccurrenceID, datasetKey, institutionKey, userID,
	).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("store: insert event: %w", err)
	}

	for _, rel := range relations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO occurrence_relations (event_id, related_occurrence_id, decision, is_new_decision)
			 VALUES ($1, $2, $3, $4)`,
			eventID, rel.RelatedOccurrenceID, rel.Decision, rel.IsNewDecision,
		); err != nil {
			return 0, fmt.Errorf("store: insert relation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit tx: %w", err)
	}
	return eventID, nil
}

// OccurrencesByID loads occurrence payloads keyed by internal id, mirroring
// app.py's POST /occurrences.
func (s *Store) OccurrencesByID(ctx context.Context, ids []int64) (map[int64]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM occurrences WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: query occurrences: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]json.RawMessage, len(ids))
	for rows.Next() {
		var id int64
		var data json.RawMessage
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("store: scan occurrence: %w", err)
		}
		result[id] = data
	}
	return result, rows.Err()
}

// EventFilter narrows GET /occurrenceRelations, mirroring app.py's query
// parameters.
type EventFilter struct {
	InstitutionKey string
	DatasetKey     string
	OccurrenceKey  int64
	EventID        int64
}

// EventWithRelations is one row of the GET /occurrenceRelations response.
type EventWithRelations struct {
	Event
	UserName   string
	UserORCID  string
	RefGBIFKey int64
	Relations  []OccurrenceRelation
}

// ListEvents returns events (and their relations) matching the filter,
// mirroring app.py's GET /occurrenceRelations query.
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]EventWithRelations, error) {
	query := `
SELECT e.id, e.ref_occurrence_id, e.dataset_key, e.institution_key, e.user_id,
       u.name, coalesce(u.orcid, ''), o.gbif_key
FROM events e
JOIN users u ON u.id = e.user_id
JOIN occurrences o ON o.id = e.ref_occurrence_id
WHERE ($1 = '' OR o.institution_key = $1)
  AND ($2 = '' OR o.dataset_key = $2)
  AND ($3 = 0 OR o.gbif_key = $3)
  AND ($4 = 0 OR e.id = $4)
`
	rows, err := s.pool.Query(ctx, query, filter.InstitutionKey, filter.DatasetKey, filter.OccurrenceKey, filter.EventID)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var events []EventWithRelations
	for rows.Next() {
		var e EventWithRelations
		if err := rows.Scan(&e.ID, &e.RefOccurrenceID, &e.DatasetKey, &e.InstitutionKey, &e.UserID,
			&e.UserName, &e.UserORCID, &e.RefGBIFKey); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		relRows, err := s.pool.Query(ctx,
			`SELECT related_occurrence_id, decision, is_new_decision FROM occurrence_relations WHERE event_id = $1`,
			events[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("store: query relations: %w", err)
		}
		for relRows.Next() {
			var rel OccurrenceRelation
			rel.EventID = events[i].ID
			if err := relRows.Scan(&rel.RelatedOccurrenceID, &rel.Decision, &rel.IsNewDecision); err != nil {
				relRows.Close()
				return nil, fmt.Errorf("store: scan relation: %w", err)
			}
			events[i].Relations = append(events[i].Relations, rel)
		}
		relRows.Close()
	}
	return events, nil
}
