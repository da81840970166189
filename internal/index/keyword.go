package index

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/coursepilot/coursepilot/internal/ingest"
)

// Document kinds stored in the single bleve index. Catalog entries and
// content chunks share the index and are told apart by the kind field.
const (
	kindCatalog = "catalog"
	kindContent = "content"
)

// KeywordHit is one bleve match: the stored document id plus its score.
type KeywordHit struct {
	ID    string
	Score float64
}

// KeywordIndex provides keyword (BM25) search over course titles and
// content chunks.
type KeywordIndex struct {
	index bleve.Index
	path  string
}

// NewKeywordIndex creates or opens the bleve index at dbPath + ".bleve".
// A corrupted index is deleted and recreated rather than failing startup.
func NewKeywordIndex(dbPath string) (*KeywordIndex, error) {
	indexPath := dbPath + ".bleve"

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create keyword index: %w", err)
		}
	} else if err != nil {
		log.Printf("Keyword index appears corrupted (%v), recreating", err)
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("failed to remove corrupted keyword index: %w", err)
		}
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate keyword index: %w", err)
		}
	}

	return &KeywordIndex{index: index, path: indexPath}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	kindField := bleve.NewTextFieldMapping()
	kindField.Analyzer = keyword.Name
	kindField.Store = true
	docMapping.AddFieldMappingsAt("kind", kindField)

	// Analyzed so partial names ("MCP") match full titles.
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = true
	docMapping.AddFieldMappingsAt("title", titleField)

	courseTitleField := bleve.NewTextFieldMapping()
	courseTitleField.Analyzer = keyword.Name
	courseTitleField.Store = true
	docMapping.AddFieldMappingsAt("course_title", courseTitleField)

	lessonField := bleve.NewNumericFieldMapping()
	lessonField.Store = true
	docMapping.AddFieldMappingsAt("lesson_number", lessonField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = false
	docMapping.AddFieldMappingsAt("content", contentField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexCourse adds a catalog entry for title resolution.
func (k *KeywordIndex) IndexCourse(title string) error {
	doc := map[string]interface{}{
		"kind":  kindCatalog,
		"title": title,
	}
	return k.index.Index(catalogID(title), doc)
}

// IndexChunks batch-indexes content chunks.
func (k *KeywordIndex) IndexChunks(chunks []ingest.CourseChunk) error {
	batch := k.index.NewBatch()
	for _, chunk := range chunks {
		doc := map[string]interface{}{
			"kind":          kindContent,
			"course_title":  chunk.CourseTitle,
			"lesson_number": float64(chunk.LessonNumber),
			"content":       chunk.Content,
		}
		if err := batch.Index(ChunkID(chunk.CourseTitle, chunk.ChunkIndex), doc); err != nil {
			return fmt.Errorf("failed to batch chunk: %w", err)
		}
	}
	return k.index.Batch(batch)
}

// SearchContent performs a keyword search over content chunks, optionally
// constrained to one course title and/or lesson number.
func (k *KeywordIndex) SearchContent(query, courseTitle string, lesson *int, size int) ([]KeywordHit, error) {
	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	kindQuery := bleve.NewTermQuery(kindContent)
	kindQuery.SetField("kind")

	combined := bleve.NewConjunctionQuery(matchQuery, kindQuery)

	if courseTitle != "" {
		courseQuery := bleve.NewTermQuery(courseTitle)
		courseQuery.SetField("course_title")
		combined.AddQuery(courseQuery)
	}
	if lesson != nil {
		val := float64(*lesson)
		inclusive := true
		lessonQuery := bleve.NewNumericRangeInclusiveQuery(&val, &val, &inclusive, &inclusive)
		lessonQuery.SetField("lesson_number")
		combined.AddQuery(lessonQuery)
	}

	return k.search(combined, size)
}

// MatchTitle finds catalog entries whose title matches the (possibly
// partial) name.
func (k *KeywordIndex) MatchTitle(name string, size int) ([]KeywordHit, error) {
	matchQuery := bleve.NewMatchQuery(name)
	matchQuery.SetField("title")

	kindQuery := bleve.NewTermQuery(kindCatalog)
	kindQuery.SetField("kind")

	hits, err := k.search(bleve.NewConjunctionQuery(matchQuery, kindQuery), size)
	if err != nil {
		return nil, err
	}
	// Map catalog document ids back to titles.
	for i := range hits {
		hits[i].ID = titleFromCatalogID(hits[i].ID)
	}
	return hits, nil
}

func (k *KeywordIndex) search(q query.Query, size int) ([]KeywordHit, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size

	result, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, KeywordHit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Clear drops the whole index and recreates it empty.
func (k *KeywordIndex) Clear() error {
	if err := k.index.Close(); err != nil {
		return fmt.Errorf("failed to close keyword index: %w", err)
	}
	if err := os.RemoveAll(k.path); err != nil {
		return fmt.Errorf("failed to remove keyword index: %w", err)
	}
	index, err := bleve.New(k.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate keyword index: %w", err)
	}
	k.index = index
	return nil
}

// Close closes the underlying bleve index.
func (k *KeywordIndex) Close() error {
	return k.index.Close()
}

const catalogIDPrefix = "catalog::"

func catalogID(title string) string {
	return catalogIDPrefix + title
}

func titleFromCatalogID(id string) string {
	return strings.TrimPrefix(id, catalogIDPrefix)
}
