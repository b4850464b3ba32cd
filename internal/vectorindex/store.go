package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

// formatVersion identifies the on-disk layout.
const formatVersion = "1"

const schema = `
CREATE TABLE index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE vectors (
	id        INTEGER PRIMARY KEY,
	embedding BLOB NOT NULL
);

CREATE TABLE chunks (
	id              INTEGER PRIMARY KEY,
	text            TEXT NOT NULL,
	source          TEXT NOT NULL,
	role            TEXT NOT NULL,
	experience_type TEXT NOT NULL
);
`

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open index database: %w", err)
	}
	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Save writes idx to a single SQLite file at path. Vectors, chunks, and metadata are
// written in one transaction to a temporary file which then replaces path, so readers
// never observe one half of the pair without the other.
func Save(ctx context.Context, idx *Index, path string) error {
	if idx == nil {
		return fmt.Errorf("cannot save nil index")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create index directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := writeIndex(ctx, idx, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

func writeIndex(ctx context.Context, idx *Index, path string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create index schema: %w", err)
	}

	meta := map[string]string{
		"format_version": formatVersion,
		"dimension":      strconv.Itoa(idx.Dimension()),
		"count":          strconv.Itoa(idx.Len()),
		"embedder":       idx.EmbedderName(),
		"built_at":       idx.BuiltAt().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write index metadata: %w", err)
		}
	}

	vecStmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer vecStmt.Close()
	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, text, source, role, experience_type) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	for id := 0; id < idx.Len(); id++ {
		if _, err := vecStmt.ExecContext(ctx, id, encodeVector(idx.vectors[id])); err != nil {
			return fmt.Errorf("failed to write vector %d: %w", id, err)
		}
		c := idx.chunks[id]
		if _, err := chunkStmt.ExecContext(ctx, id, c.Text, string(c.Metadata.Source), c.Metadata.Role, string(c.Metadata.ExperienceType)); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// Load reads an index written by Save. A missing file is IndexNotReady; any
// inconsistency between the vectors, the chunks, and the metadata is IntegrityError.
func Load(ctx context.Context, path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NewError(types.CategoryIndexNotReady, fmt.Sprintf("index file %s not found", path), err)
		}
		return nil, types.NewError(types.CategoryInternal, "cannot stat index file", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, types.NewError(types.CategoryIntegrityError, "cannot open index file", err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, integrity("reading index metadata", err)
	}
	if meta["format_version"] != formatVersion {
		return nil, integrity(fmt.Sprintf("unsupported index format %q", meta["format_version"]), nil)
	}
	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil || dim <= 0 {
		return nil, integrity(fmt.Sprintf("invalid dimension %q", meta["dimension"]), err)
	}
	count, err := strconv.Atoi(meta["count"])
	if err != nil || count <= 0 {
		return nil, integrity(fmt.Sprintf("invalid count %q", meta["count"]), err)
	}
	builtAt, err := time.Parse(time.RFC3339Nano, meta["built_at"])
	if err != nil {
		return nil, integrity("invalid built_at", err)
	}

	vectors, err := readVectors(ctx, db, dim)
	if err != nil {
		return nil, integrity("reading vectors", err)
	}
	chunks, err := readChunks(ctx, db)
	if err != nil {
		return nil, integrity("reading chunks", err)
	}
	if len(vectors) != count || len(chunks) != count {
		return nil, integrity(fmt.Sprintf("entry count mismatch: meta=%d vectors=%d chunks=%d", count, len(vectors), len(chunks)), nil)
	}

	idx, err := New(vectors, chunks, meta["embedder"], builtAt)
	if err != nil {
		return nil, integrity("assembling index", err)
	}
	return idx, nil
}

func integrity(msg string, cause error) error {
	return types.NewError(types.CategoryIntegrityError, msg, cause)
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func readVectors(ctx context.Context, db *sql.DB, dim int) ([][]float32, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, embedding FROM vectors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vectors [][]float32
	for rows.Next() {
		var id int
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		if id != len(vectors) {
			return nil, fmt.Errorf("vector ids are not dense: expected %d, found %d", len(vectors), id)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", id, err)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", id, len(v), dim)
		}
		vectors = append(vectors, v)
	}
	return vectors, rows.Err()
}

func readChunks(ctx context.Context, db *sql.DB) ([]types.Chunk, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, text, source, role, experience_type FROM chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var id int
		var text, source, role, experience string
		if err := rows.Scan(&id, &text, &source, &role, &experience); err != nil {
			return nil, err
		}
		if id != len(chunks) {
			return nil, fmt.Errorf("chunk ids are not dense: expected %d, found %d", len(chunks), id)
		}
		c := types.Chunk{
			Text: text,
			Metadata: types.ChunkMetadata{
				Source:         types.Source(source),
				Role:           role,
				ExperienceType: types.ExperienceType(experience),
			},
		}
		if !c.Metadata.Source.Valid() {
			return nil, fmt.Errorf("chunk %d has unknown source %q", id, source)
		}
		if !c.Metadata.ExperienceType.Valid() {
			return nil, fmt.Errorf("chunk %d has unknown experience type %q", id, experience)
		}
		if text == "" || role == "" {
			return nil, fmt.Errorf("chunk %d is missing text or role", id)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// encodeVector stores float32 values as a little-endian IEEE 754 sequence.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
