// Package vocabstore persists vocabularies in PostgreSQL so a shared
// vocabulary survives restarts and is visible to every replica.
package vocabstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/dbpool"
	"github.com/graphtext/graph2seq/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// ErrNotFound is returned when the named vocabulary does not exist.
var ErrNotFound = errors.New("vocabulary not found")

// Store reads and writes vocabularies.
type Store struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

// New creates a Store over the given pool.
func New(pool *dbpool.Pool, log *logrus.Logger) *Store {
	return &Store{pool: pool, log: log}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Save upserts a vocabulary under the given name. The token list is stored
// in id order, reserved entries included, so Load rebuilds identical ids.
func (s *Store) Save(ctx context.Context, name string, vocab *models.Vocabulary, shared bool) error {
	if name == "" {
		return models.InvalidInputf("vocabulary name must not be empty")
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO vocabularies (name, tokens, shared)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET tokens = EXCLUDED.tokens, shared = EXCLUDED.shared, updated_at = now()`,
		name, vocab.Tokens(), shared)
	if err != nil {
		return fmt.Errorf("saving vocabulary %q: %w", name, err)
	}

	s.log.WithFields(logrus.Fields{
		"vocabulary": name,
		"size":       vocab.Size(),
		"shared":     shared,
	}).Info("vocabulary saved")

	return nil
}

// Load reads a vocabulary by name.
func (s *Store) Load(ctx context.Context, name string) (*models.Vocabulary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var tokens []string

	err := s.pool.QueryRow(ctx, `SELECT tokens FROM vocabularies WHERE name = $1`, name).Scan(&tokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary %q: %w", name, err)
	}

	return models.NewVocabulary(tokens), nil
}

// Info describes a stored vocabulary.
type Info struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	Shared    bool      `json:"shared"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List returns metadata for all stored vocabularies.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT name, cardinality(tokens), shared, updated_at
		FROM vocabularies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing vocabularies: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.Size, &info.Shared, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning vocabulary row: %w", err)
		}

		out = append(out, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vocabulary rows: %w", err)
	}

	return out, nil
}

// Delete removes a vocabulary by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM vocabularies WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting vocabulary %q: %w", name, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return nil
}
