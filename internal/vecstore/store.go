package vecstore

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/iammorganparry/memorize-mcp/internal/metrics"
)

// Store is the embedded vector database for topics, QA records, and
// distilled knowledge. All methods are safe for concurrent use; the
// underlying *sql.DB pool serializes writes the same way the teacher's
// sqlite store does (single connection, WAL mode).
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its parent directory) if needed,
// applies the schema, and returns a ready Store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.Exec(vecSchema()); err != nil {
		return fmt.Errorf("apply vector schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeOperation starts a timer for a named store operation; call the
// returned func when the operation completes to record its duration.
func timeOperation(operation string) func() {
	start := time.Now()
	return func() {
		metrics.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func serialize(v []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(v)
}

// deserialize decodes the little-endian float32 blob sqlite-vec stores
// embedding columns as, the inverse of serialize.
func deserialize(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
