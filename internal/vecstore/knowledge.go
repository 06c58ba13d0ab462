package vecstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertKnowledge stores a distilled knowledge entry synthesized from
// sourceQuestions, grounded on a topic, with its own embedding for later
// recall.
func (s *Store) InsertKnowledge(ctx context.Context, id, topic, text string, sourceQuestions []string, vec []float32) (*Knowledge, error) {
	blob, err := serialize(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize knowledge vector: %w", err)
	}
	srcJSON, err := json.Marshal(sourceQuestions)
	if err != nil {
		return nil, fmt.Errorf("marshal source questions: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge (id, topic, text, source_questions) VALUES (?, ?, ?, ?)`,
		id, topic, text, string(srcJSON),
	); err != nil {
		return nil, fmt.Errorf("insert knowledge: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO vec_knowledge (knowledge_id, embedding, topic) VALUES (?, ?, ?)`,
		id, blob, topic,
	); err != nil {
		return nil, fmt.Errorf("insert knowledge vector: %w", err)
	}

	return &Knowledge{ID: id, Topic: topic, Text: text, SourceQuestions: sourceQuestions}, nil
}

// SearchKnowledge runs a k-NN search over vec_knowledge scoped to topic, used
// by the knowledge:// resource template and the recall endpoint.
func (s *Store) SearchKnowledge(ctx context.Context, vec []float32, topic string, limit int) ([]Knowledge, error) {
	blob, err := serialize(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT k.id, k.topic, k.text, k.source_questions, k.created_at, v.distance
		FROM vec_knowledge v
		JOIN knowledge k ON k.id = v.knowledge_id
		WHERE v.embedding MATCH ? AND k = %d AND v.topic = ?
		ORDER BY v.distance
	`, limit)
	rows, err := s.db.QueryContext(ctx, query, blob, topic)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	var out []Knowledge
	for rows.Next() {
		var k Knowledge
		var srcJSON string
		if err := rows.Scan(&k.ID, &k.Topic, &k.Text, &srcJSON, &k.CreatedAt, &k.Distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(srcJSON), &k.SourceQuestions); err != nil {
			return nil, fmt.Errorf("unmarshal source questions: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// AllKnowledge returns every knowledge entry, used by persistence dump.
func (s *Store) AllKnowledge(ctx context.Context) ([]Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, topic, text, source_questions, created_at FROM knowledge ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("dump knowledge: %w", err)
	}
	defer rows.Close()

	var out []Knowledge
	for rows.Next() {
		var k Knowledge
		var srcJSON string
		if err := rows.Scan(&k.ID, &k.Topic, &k.Text, &srcJSON, &k.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(srcJSON), &k.SourceQuestions); err != nil {
			return nil, fmt.Errorf("unmarshal source questions: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// KnowledgeExistsByKey reports whether a knowledge row with this exact
// content key already exists, used by persistence reconciliation (spec's
// stable knowledge key is (topic, text)).
func (s *Store) KnowledgeExistsByKey(ctx context.Context, topic, text string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM knowledge WHERE topic = ? AND text = ?`, topic, text).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
