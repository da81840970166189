package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/coursepilot/coursepilot/internal/ingest"
)

// DB is the SQLite persistence layer: course metadata in one table,
// content chunks with their embedding vectors in another.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) the database and initializes the schema.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	// WAL mode allows readers to proceed while ingestion writes.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{db: db}
	if err := d.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initSchema(ctx context.Context) error {
	schema := `
	-- Course catalog: one row per course, identified by title.
	CREATE TABLE IF NOT EXISTS courses (
		title        TEXT PRIMARY KEY,
		link         TEXT,
		instructor   TEXT,
		lessons_json TEXT NOT NULL,
		embedding    BLOB NOT NULL
	);

	-- Content chunks with their embedding vectors.
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id      TEXT PRIMARY KEY,
		course_title  TEXT NOT NULL,
		lesson_number INTEGER NOT NULL,
		chunk_index   INTEGER NOT NULL,
		content       TEXT NOT NULL,
		embedding     BLOB NOT NULL,
		FOREIGN KEY (course_title) REFERENCES courses(title)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course_title);
	CREATE INDEX IF NOT EXISTS idx_chunks_lesson ON chunks(course_title, lesson_number);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// InsertCourse upserts a course row with its title embedding.
func (d *DB) InsertCourse(ctx context.Context, course ingest.Course, titleVector []float32) error {
	lessons := course.Lessons
	if lessons == nil {
		lessons = []ingest.Lesson{}
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("failed to marshal lessons: %w", err)
	}

	query := `
		INSERT INTO courses (title, link, instructor, lessons_json, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			link = excluded.link,
			instructor = excluded.instructor,
			lessons_json = excluded.lessons_json,
			embedding = excluded.embedding
	`
	_, err = d.db.ExecContext(ctx, query, course.Title, course.Link, course.Instructor,
		string(lessonsJSON), encodeVector(titleVector))
	if err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}
	return nil
}

// InsertChunks writes chunks and their vectors in one transaction.
func (d *DB) InsertChunks(ctx context.Context, chunks []ingest.CourseChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chunks (chunk_id, course_title, lesson_number, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding
	`
	for i, chunk := range chunks {
		id := ChunkID(chunk.CourseTitle, chunk.ChunkIndex)
		_, err := tx.ExecContext(ctx, query, id, chunk.CourseTitle, chunk.LessonNumber,
			chunk.ChunkIndex, chunk.Content, encodeVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// ChunkID builds the stable chunk identifier from course title and chunk
// position.
func ChunkID(courseTitle string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", courseTitle, chunkIndex)
}

// GetCourse retrieves one course by exact title. Returns sql.ErrNoRows
// wrapped when the title is unknown.
func (d *DB) GetCourse(ctx context.Context, title string) (ingest.Course, error) {
	var course ingest.Course
	var lessonsJSON string
	query := `SELECT title, link, instructor, lessons_json FROM courses WHERE title = ?`
	err := d.db.QueryRowContext(ctx, query, title).Scan(
		&course.Title, &course.Link, &course.Instructor, &lessonsJSON)
	if err != nil {
		return ingest.Course{}, fmt.Errorf("failed to fetch course %q: %w", title, err)
	}
	if err := json.Unmarshal([]byte(lessonsJSON), &course.Lessons); err != nil {
		return ingest.Course{}, fmt.Errorf("failed to decode lessons for %q: %w", title, err)
	}
	return course, nil
}

// ListCourses returns all catalog entries ordered by title.
func (d *DB) ListCourses(ctx context.Context) ([]ingest.Course, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT title, link, instructor, lessons_json FROM courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	var courses []ingest.Course
	for rows.Next() {
		var course ingest.Course
		var lessonsJSON string
		if err := rows.Scan(&course.Title, &course.Link, &course.Instructor, &lessonsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		if err := json.Unmarshal([]byte(lessonsJSON), &course.Lessons); err != nil {
			return nil, fmt.Errorf("failed to decode lessons for %q: %w", course.Title, err)
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

// CourseTitles returns all indexed course titles.
func (d *DB) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT title FROM courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to query course titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// CourseCount returns the number of indexed courses.
func (d *DB) CourseCount(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}

// courseVector holds a catalog title with its embedding, for fuzzy name
// resolution.
type courseVector struct {
	title  string
	vector []float32
}

func (d *DB) courseVectors(ctx context.Context) ([]courseVector, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT title, embedding FROM courses`)
	if err != nil {
		return nil, fmt.Errorf("failed to query course vectors: %w", err)
	}
	defer rows.Close()

	var vectors []courseVector
	for rows.Next() {
		var title string
		var blob []byte
		if err := rows.Scan(&title, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan course vector: %w", err)
		}
		vector, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt embedding for course %q: %w", title, err)
		}
		vectors = append(vectors, courseVector{title: title, vector: vector})
	}
	return vectors, rows.Err()
}

// storedChunk is a chunk row with its decoded embedding.
type storedChunk struct {
	id           string
	courseTitle  string
	lessonNumber int
	chunkIndex   int
	content      string
	vector       []float32
}

// chunksMatching streams all chunks that pass the course/lesson filters.
// A nil lesson means no lesson filter; an empty courseTitle means no
// course filter.
func (d *DB) chunksMatching(ctx context.Context, courseTitle string, lesson *int) ([]storedChunk, error) {
	query := `SELECT chunk_id, course_title, lesson_number, chunk_index, content, embedding FROM chunks`
	var args []any
	var conds []string
	if courseTitle != "" {
		conds = append(conds, "course_title = ?")
		args = append(args, courseTitle)
	}
	if lesson != nil {
		conds = append(conds, "lesson_number = ?")
		args = append(args, *lesson)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []storedChunk
	for rows.Next() {
		var c storedChunk
		var blob []byte
		if err := rows.Scan(&c.id, &c.courseTitle, &c.lessonNumber, &c.chunkIndex, &c.content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.vector, err = DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt embedding for chunk %s: %w", c.id, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// getChunk fetches a single chunk row by id.
func (d *DB) getChunk(ctx context.Context, id string) (storedChunk, error) {
	var c storedChunk
	var blob []byte
	query := `SELECT chunk_id, course_title, lesson_number, chunk_index, content, embedding FROM chunks WHERE chunk_id = ?`
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&c.id, &c.courseTitle, &c.lessonNumber, &c.chunkIndex, &c.content, &blob)
	if err != nil {
		return storedChunk{}, fmt.Errorf("failed to fetch chunk %s: %w", id, err)
	}
	c.vector, err = DecodeVector(blob)
	if err != nil {
		return storedChunk{}, fmt.Errorf("corrupt embedding for chunk %s: %w", id, err)
	}
	return c, nil
}

// Clear deletes all courses and chunks.
func (d *DB) Clear(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM courses`); err != nil {
		return fmt.Errorf("failed to clear courses: %w", err)
	}
	return nil
}
