package index

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/coursepilot/coursepilot/internal/ingest"
)

// ChunkRef identifies where a retrieved document came from.
type ChunkRef struct {
	CourseTitle  string
	LessonNumber int
	ChunkIndex   int
}

// SearchResults is the outcome of one retrieval. A failed search carries
// a human-readable Error instead of a Go error, so the message can be
// shown to the model as the tool result.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkRef
	Error     string
}

// IsEmpty reports whether the search matched nothing (and did not fail).
func (r SearchResults) IsEmpty() bool {
	return r.Error == "" && len(r.Documents) == 0
}

func errorResults(format string, args ...any) SearchResults {
	return SearchResults{Error: fmt.Sprintf(format, args...)}
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	// Directory holding the sqlite database and the bleve index.
	DataPath string

	// Default number of results per search.
	MaxResults int

	// Minimum cosine similarity for fuzzy course-name resolution via
	// embeddings. Below this, a partial name is treated as no match.
	MinCourseScore float64
}

// Store is the two-collection vector store: a course catalog for name
// resolution and outlines, and a content collection for retrieval.
// Retrieval is hybrid, merging keyword and embedding rankings with
// reciprocal rank fusion.
type Store struct {
	db       *DB
	keyword  *KeywordIndex
	embedder Embedder
	config   StoreConfig
}

// NewStore opens (or creates) the store under config.DataPath.
func NewStore(ctx context.Context, embedder Embedder, config StoreConfig) (*Store, error) {
	if config.DataPath == "" {
		config.DataPath = "./data"
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.MinCourseScore <= 0 {
		config.MinCourseScore = 0.35
	}

	dbPath := filepath.Join(config.DataPath, "courses.db")
	db, err := NewDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	keyword, err := NewKeywordIndex(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, keyword: keyword, embedder: embedder, config: config}, nil
}

// Close releases the sqlite and bleve handles.
func (s *Store) Close() error {
	kerr := s.keyword.Close()
	derr := s.db.Close()
	if kerr != nil {
		return kerr
	}
	return derr
}

// AddCourseMetadata indexes one course into the catalog.
func (s *Store) AddCourseMetadata(ctx context.Context, course ingest.Course) error {
	titleVector, err := s.embedder.Embed(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("failed to embed course title: %w", err)
	}
	if err := s.db.InsertCourse(ctx, course, titleVector); err != nil {
		return err
	}
	return s.keyword.IndexCourse(course.Title)
}

// AddCourseContent embeds and indexes content chunks.
func (s *Store) AddCourseContent(ctx context.Context, chunks []ingest.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := s.db.InsertChunks(ctx, chunks, vectors); err != nil {
		return err
	}
	return s.keyword.IndexChunks(chunks)
}

// ExistingCourseTitles lists the titles already in the catalog.
func (s *Store) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	return s.db.CourseTitles(ctx)
}

// GetCourseCount returns how many courses are indexed.
func (s *Store) GetCourseCount(ctx context.Context) (int, error) {
	return s.db.CourseCount(ctx)
}

// GetCourse returns the full catalog entry for an exact title.
func (s *Store) GetCourse(ctx context.Context, title string) (ingest.Course, error) {
	return s.db.GetCourse(ctx, title)
}

// GetCourseLink returns the course link for an exact title.
func (s *Store) GetCourseLink(ctx context.Context, title string) (string, error) {
	course, err := s.db.GetCourse(ctx, title)
	if err != nil {
		return "", err
	}
	return course.Link, nil
}

// GetLessonLink returns the link of one lesson, or "" when the lesson has
// no link.
func (s *Store) GetLessonLink(ctx context.Context, courseTitle string, lesson int) (string, error) {
	course, err := s.db.GetCourse(ctx, courseTitle)
	if err != nil {
		return "", err
	}
	for _, l := range course.Lessons {
		if l.Number == lesson {
			return l.Link, nil
		}
	}
	return "", nil
}

// Clear wipes both collections.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.Clear(ctx); err != nil {
		return err
	}
	return s.keyword.Clear()
}

// ResolveCourseName matches a possibly-partial course name against the
// catalog. Keyword match on titles wins; otherwise the name embedding is
// compared against title embeddings, with a similarity floor so garbage
// input resolves to nothing. Returns "" when no course matches.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	hits, err := s.keyword.MatchTitle(name, 1)
	if err == nil && len(hits) > 0 {
		return hits[0].ID, nil
	}
	if err != nil {
		log.Printf("Title keyword match failed: %v", err)
	}

	nameVector, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to embed course name: %w", err)
	}

	candidates, err := s.db.courseVectors(ctx)
	if err != nil {
		return "", err
	}

	best := ""
	bestScore := s.config.MinCourseScore
	for _, c := range candidates {
		if score := cosineSimilarity(nameVector, c.vector); score >= bestScore {
			best, bestScore = c.title, score
		}
	}
	return best, nil
}

// Search retrieves the most relevant content chunks for a query.
// courseName may be a partial title and is resolved first; lesson, when
// non-nil, restricts results to one lesson. limit <= 0 uses the
// configured default. Failures are reported in SearchResults.Error
// rather than as a Go error.
func (s *Store) Search(ctx context.Context, query, courseName string, lesson *int, limit int) SearchResults {
	if limit <= 0 {
		limit = s.config.MaxResults
	}

	resolvedTitle := ""
	if courseName != "" {
		title, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return errorResults("Search error: %v", err)
		}
		if title == "" {
			return errorResults("No course found matching '%s'", courseName)
		}
		resolvedTitle = title
	}

	candidates, err := s.db.chunksMatching(ctx, resolvedTitle, lesson)
	if err != nil {
		return errorResults("Search error: %v", err)
	}
	if len(candidates) == 0 {
		return SearchResults{}
	}

	byID := make(map[string]storedChunk, len(candidates))
	for _, c := range candidates {
		byID[c.id] = c
	}

	vecRanked, err := s.rankByEmbedding(ctx, query, candidates)
	if err != nil {
		return errorResults("Search error: %v", err)
	}

	kwHits, err := s.keyword.SearchContent(query, resolvedTitle, lesson, rankDepth)
	if err != nil {
		log.Printf("Keyword search failed: %v", err)
		kwHits = nil // continue with embeddings only
	}

	ranked := fuseRankings(vecRanked, kwHits)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := SearchResults{}
	for _, id := range ranked {
		chunk, ok := byID[id]
		if !ok {
			continue
		}
		results.Documents = append(results.Documents, chunk.content)
		results.Metadata = append(results.Metadata, ChunkRef{
			CourseTitle:  chunk.courseTitle,
			LessonNumber: chunk.lessonNumber,
			ChunkIndex:   chunk.chunkIndex,
		})
	}
	return results
}

// rankDepth is how many candidates each ranking contributes before
// fusion.
const rankDepth = 100

func (s *Store) rankByEmbedding(ctx context.Context, query string, candidates []storedChunk) ([]string, error) {
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type scored struct {
		id    string
		score float64
	}
	scoredChunks := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		scoredChunks = append(scoredChunks, scored{id: c.id, score: cosineSimilarity(queryVector, c.vector)})
	}
	sort.Slice(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].score > scoredChunks[j].score
	})
	if len(scoredChunks) > rankDepth {
		scoredChunks = scoredChunks[:rankDepth]
	}

	ids := make([]string, len(scoredChunks))
	for i, sc := range scoredChunks {
		ids[i] = sc.id
	}
	return ids, nil
}

// fuseRankings merges two rankings with reciprocal rank fusion.
func fuseRankings(vecIDs []string, kwHits []KeywordHit) []string {
	const kOffset = 60.0
	scores := make(map[string]float64)

	for i, id := range vecIDs {
		scores[id] += 1.0 / (kOffset + float64(i+1))
	}
	for i, hit := range kwHits {
		scores[hit.ID] += 1.0 / (kOffset + float64(i+1))
	}

	type rrf struct {
		id    string
		score float64
	}
	merged := make([]rrf, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, rrf{id, score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].id < merged[j].id
	})

	ids := make([]string, len(merged))
	for i, m := range merged {
		ids[i] = m.id
	}
	return ids
}
