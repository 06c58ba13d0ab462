package vecstore

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertQA stores a new question/answer pair under topic with its question
// vector. id is caller-supplied; StoreQA and persistence reconciliation
// both pass a freshly generated uuid (snapshots do not record ids).
func (s *Store) InsertQA(ctx context.Context, id, question, answer, topic string, vec []float32) (*QaRecord, error) {
	defer timeOperation("insert_qa")()

	blob, err := serialize(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize qa vector: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO qa_records (id, question, answer, topic, merged) VALUES (?, ?, ?, ?, 0)`,
		id, question, answer, topic,
	); err != nil {
		return nil, fmt.Errorf("insert qa record: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO vec_qa (qa_id, embedding, topic, merged) VALUES (?, ?, ?, 0)`,
		id, blob, topic,
	); err != nil {
		return nil, fmt.Errorf("insert qa vector: %w", err)
	}

	return &QaRecord{ID: id, Question: question, Answer: answer, Topic: topic}, nil
}

// SearchQA runs a k-NN search over vec_qa, pushing the topic and merged
// scalar filters into the vec0 scan rather than post-filtering in Go.
func (s *Store) SearchQA(ctx context.Context, vec []float32, topic string, excludeMerged bool, limit int) ([]QaRecord, error) {
	defer timeOperation("search_qa")()

	blob, err := serialize(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}
	if limit <= 0 {
		limit = 5
	}

	// k must be a literal integer in the vec0 MATCH clause rather than a
	// bound parameter (sqlite-vec resolves the KNN limit at query-plan time).
	query := fmt.Sprintf(`
		SELECT q.id, q.question, q.answer, q.topic, q.merged, q.created_at, v.distance
		FROM vec_qa v
		JOIN qa_records q ON q.id = v.qa_id
		WHERE v.embedding MATCH ? AND k = %d AND v.topic = ?`, limit)
	args := []any{blob, topic}
	if excludeMerged {
		query += ` AND v.merged = 0`
	}
	query += ` ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search qa: %w", err)
	}
	defer rows.Close()

	return scanQaRows(rows)
}

// SimilarQAWithinTopic returns unmerged records in topic within threshold
// cosine distance of vec, excluding excludeID. Used by merge_knowledge's
// clustering pass, which needs an unbounded (or at least larger than
// DEFAULT_SEARCH_LIMIT) radius search rather than a fixed top-k.
func (s *Store) SimilarQAWithinTopic(ctx context.Context, vec []float32, topic, excludeID string, threshold float32, limit int) ([]QaRecord, error) {
	recs, err := s.SearchQA(ctx, vec, topic, true, limit)
	if err != nil {
		return nil, err
	}
	out := make([]QaRecord, 0, len(recs))
	for _, r := range recs {
		if r.ID == excludeID {
			continue
		}
		// r.Distance is vec0's L2 distance; for unit vectors the cosine
		// distance is d²/2.
		if r.Distance*r.Distance/2 > threshold {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ListUnmergedByTopic returns every unmerged QA record for topic, used as
// the candidate pool for merge_knowledge clustering.
func (s *Store) ListUnmergedByTopic(ctx context.Context, topic string) ([]QaRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, topic, merged, created_at FROM qa_records WHERE topic = ? AND merged = 0 ORDER BY created_at`,
		topic,
	)
	if err != nil {
		return nil, fmt.Errorf("list unmerged qa: %w", err)
	}
	defer rows.Close()

	var out []QaRecord
	for rows.Next() {
		var r QaRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Topic, &r.Merged, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VectorForQA fetches the stored embedding for a QA record, needed by the
// clustering pass to use each candidate as a BFS anchor.
func (s *Store) VectorForQA(ctx context.Context, id string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM vec_qa WHERE qa_id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load qa vector: %w", err)
	}
	return deserialize(blob)
}

// MarkMerged flags the given QA record ids as merged so future searches
// (excludeMerged=true) skip them.
func (s *Store) MarkMerged(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark-merged tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE qa_records SET merged = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark qa merged: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE vec_qa SET merged = 1 WHERE qa_id = ?`, id); err != nil {
			return fmt.Errorf("mark qa vector merged: %w", err)
		}
	}
	return tx.Commit()
}

// QAExistsByKey reports whether a QA record with this exact content key
// already exists, used by persistence reconciliation (spec's stable QA key
// is (question, answer, topic)).
func (s *Store) QAExistsByKey(ctx context.Context, question, answer, topic string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM qa_records WHERE question = ? AND answer = ? AND topic = ?`,
		question, answer, topic,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AllQA returns every QA record, used by persistence dump.
func (s *Store) AllQA(ctx context.Context) ([]QaRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer, topic, merged, created_at FROM qa_records ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("dump qa: %w", err)
	}
	defer rows.Close()
	return scanQaRowsNoDistance(rows)
}

func scanQaRows(rows *sql.Rows) ([]QaRecord, error) {
	var out []QaRecord
	for rows.Next() {
		var r QaRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Topic, &r.Merged, &r.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanQaRowsNoDistance(rows *sql.Rows) ([]QaRecord, error) {
	var out []QaRecord
	for rows.Next() {
		var r QaRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Topic, &r.Merged, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
