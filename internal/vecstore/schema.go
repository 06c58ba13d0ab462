package vecstore

import (
	"fmt"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
)

const schema = `
CREATE TABLE IF NOT EXISTS topics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS qa_records (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    topic TEXT NOT NULL,
    merged INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_qa_topic ON qa_records(topic, merged);

CREATE TABLE IF NOT EXISTS knowledge (
    id TEXT PRIMARY KEY,
    topic TEXT NOT NULL,
    text TEXT NOT NULL,
    source_questions TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_knowledge_topic ON knowledge(topic);
`

// vecSchemaTmpl is formatted with embedder.Dim so the vector columns always
// match the embedder actually loaded. qa_records and knowledge declare topic
// (and, for qa_records, merged) as vec0 metadata columns (no "+" prefix) so
// the topic/merged scalar filters in search_qa and search_knowledge are
// indexed and filterable inside the same MATCH/k scan; auxiliary ("+")
// columns cannot appear in a WHERE constraint on a KNN query, only metadata
// columns can.
const vecSchemaTmpl = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_topics USING vec0(
    topic_id INTEGER PRIMARY KEY,
    embedding FLOAT[%[1]d]
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_qa USING vec0(
    qa_id TEXT PRIMARY KEY,
    embedding FLOAT[%[1]d],
    topic TEXT,
    merged INTEGER
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_knowledge USING vec0(
    knowledge_id TEXT PRIMARY KEY,
    embedding FLOAT[%[1]d],
    topic TEXT
);
`

func vecSchema() string {
	return fmt.Sprintf(vecSchemaTmpl, embedder.Dim)
}
