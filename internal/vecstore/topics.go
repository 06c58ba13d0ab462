package vecstore

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertTopic inserts a brand-new topic row and its vector. Callers are
// expected to have already resolved semantic duplicates via
// FindSimilarTopic; UpsertTopic does not dedup on its own.
func (s *Store) UpsertTopic(ctx context.Context, name string, vec []float32) (*Topic, error) {
	blob, err := serialize(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize topic vector: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO topics (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert topic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read topic id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO vec_topics (topic_id, embedding) VALUES (?, ?)`, id, blob,
	); err != nil {
		return nil, fmt.Errorf("insert topic vector: %w", err)
	}

	return &Topic{ID: id, Name: name}, nil
}

// FindSimilarTopic returns the nearest existing topic to vec if its cosine
// distance is within threshold, matching spec's topic semantic-dedup rule.
// Returns (nil, nil) when the store has no topics, or none is close enough.
func (s *Store) FindSimilarTopic(ctx context.Context, vec []float32, threshold float32) (*Topic, error) {
	blob, err := serialize(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.created_at, v.distance
		FROM vec_topics v
		JOIN topics t ON t.id = v.topic_id
		WHERE v.embedding MATCH ? AND k = 1
		ORDER BY v.distance
		LIMIT 1
	`, blob)

	var t Topic
	var distance float32
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &distance); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query nearest topic: %w", err)
	}
	// vec0 reports L2 distance; for unit vectors the cosine distance is d²/2.
	if distance*distance/2 > threshold {
		return nil, nil
	}
	return &t, nil
}

// GetTopicByName looks up a topic by its exact (already-resolved) name.
func (s *Store) GetTopicByName(ctx context.Context, name string) (*Topic, error) {
	var t Topic
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM topics WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// ListTopics returns every known topic name, used by merge_knowledge when no
// topic filter is supplied.
func (s *Store) ListTopics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM topics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AllTopics returns every topic (id, name, creation time; no vector), used
// by persistence dump.
func (s *Store) AllTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM topics ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dump topics: %w", err)
	}
	defer rows.Close()

	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
