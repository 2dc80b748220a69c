// Package knowledge persists lessons learned across runs: SQLite is the
// durable record, a bleve index serves full-text recall.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Lesson is one stored piece of knowledge.
type Lesson struct {
	ID        string
	Topic     string
	Body      string
	CreatedAt time.Time
	Score     float64 // set on search results only
}

// Store implements engine.LessonStore with searchable persistence.
type Store struct {
	db    *sql.DB
	index bleve.Index
}

// Open creates or opens the store under dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}

	dsn := filepath.Join(dir, "lessons.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open lessons db: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS lessons (
		id         TEXT PRIMARY KEY,
		topic      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lessons_created ON lessons(created_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init lessons schema: %w", err)
	}

	index, err := openIndex(filepath.Join(dir, "lessons.bleve"))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, index: index}, nil
}

func openIndex(path string) (bleve.Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, buildIndexMapping())
	}
	if err != nil {
		// Corrupt index; the db still has every lesson, so rebuild empty.
		log.Printf("lesson index %s unreadable, recreating: %v", path, err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("remove corrupt lesson index: %w", rmErr)
		}
		return bleve.New(path, buildIndexMapping())
	}
	return index, nil
}

func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("id", idField)

	topicField := bleve.NewTextFieldMapping()
	topicField.Analyzer = standard.Name
	topicField.Store = true
	doc.AddFieldMappingsAt("topic", topicField)

	bodyField := bleve.NewTextFieldMapping()
	bodyField.Analyzer = standard.Name
	bodyField.Store = true
	doc.AddFieldMappingsAt("body", bodyField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Save implements engine.LessonStore.
func (s *Store) Save(ctx context.Context, topic, lesson string) error {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, topic, body, created_at) VALUES (?, ?, ?, ?)`,
		id, topic, lesson, now.Unix())
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}

	doc := map[string]any{"id": id, "topic": topic, "body": lesson}
	if err := s.index.Index(id, doc); err != nil {
		return fmt.Errorf("index lesson: %w", err)
	}
	return nil
}

// Search returns the top k lessons matching query, best first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Lesson, error) {
	if k <= 0 {
		k = 5
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = k
	req.Fields = []string{"topic", "body"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lesson search: %w", err)
	}

	lessons := make([]Lesson, 0, len(res.Hits))
	for _, hit := range res.Hits {
		lesson, err := s.get(ctx, hit.ID)
		if err != nil {
			continue
		}
		lesson.Score = hit.Score
		lessons = append(lessons, *lesson)
	}
	return lessons, nil
}

// Recent returns the newest n lessons.
func (s *Store) Recent(ctx context.Context, n int) ([]Lesson, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, body, created_at FROM lessons ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent lessons: %w", err)
	}
	defer rows.Close()

	var lessons []Lesson
	for rows.Next() {
		var l Lesson
		var created int64
		if err := rows.Scan(&l.ID, &l.Topic, &l.Body, &created); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		l.CreatedAt = time.Unix(created, 0).UTC()
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (s *Store) get(ctx context.Context, id string) (*Lesson, error) {
	var l Lesson
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, body, created_at FROM lessons WHERE id = ?`, id).
		Scan(&l.ID, &l.Topic, &l.Body, &created)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = time.Unix(created, 0).UTC()
	return &l, nil
}

// Close releases the db and index.
func (s *Store) Close() error {
	indexErr := s.index.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return indexErr
}
