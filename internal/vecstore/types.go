// Package vecstore is the embedded vector database memorize-mcp stores
// topics, question/answer pairs, and distilled knowledge in.
package vecstore

import "time"

// Topic is a semantically deduplicated subject heading QA records and
// knowledge entries are grouped under.
type Topic struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// QaRecord is one captured question/answer pair.
type QaRecord struct {
	ID        string // opaque uuid
	Question  string
	Answer    string
	Topic     string
	Merged    bool
	CreatedAt time.Time
	// Distance is populated on search results only; zero value on writes.
	Distance float32
}

// Knowledge is a distilled summary synthesized from a cluster of similar
// QaRecords within a topic.
type Knowledge struct {
	ID              string
	Topic           string
	Text            string
	SourceQuestions []string
	CreatedAt       time.Time
	Distance        float32
}
