package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/go-units"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Index is the slice of the vector store the ingestor needs. The concrete
// implementation lives in internal/index.
type Index interface {
	ExistingCourseTitles(ctx context.Context) ([]string, error)
	AddCourseMetadata(ctx context.Context, course Course) error
	AddCourseContent(ctx context.Context, chunks []CourseChunk) error
	Clear(ctx context.Context) error
}

// supportedExts are the document types scanned from the docs folder.
// All of them are read as plain text; course scripts are exported that way
// regardless of extension.
var supportedExts = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
}

// Processor turns one raw document into course metadata plus content
// chunks ready for embedding.
type Processor struct {
	chunker *Chunker
}

// NewProcessor creates a processor with the given chunking budgets.
func NewProcessor(chunkSize, overlap int) *Processor {
	return &Processor{chunker: NewChunker(chunkSize, overlap)}
}

// ProcessFile reads and processes a single document from disk.
func (p *Processor) ProcessFile(path string) (Course, []CourseChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Course{}, nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return p.Process(string(data), path)
}

// Process parses raw document text and chunks each lesson. Every chunk is
// prefixed with its course/lesson context so it stays self-describing when
// shown to the model in isolation.
func (p *Processor) Process(raw, filename string) (Course, []CourseChunk, error) {
	course, segments, err := parseDocument(raw, filename)
	if err != nil {
		return Course{}, nil, err
	}

	var chunks []CourseChunk
	idx := 0
	for _, seg := range segments {
		for _, piece := range p.chunker.Split(seg.text) {
			content := contextualize(course.Title, seg.lesson.Number, piece)
			chunks = append(chunks, CourseChunk{
				Content:      content,
				CourseTitle:  course.Title,
				LessonNumber: seg.lesson.Number,
				ChunkIndex:   idx,
			})
			idx++
		}
	}

	return course, chunks, nil
}

func contextualize(title string, lesson int, chunk string) string {
	if lesson == NoLesson {
		return fmt.Sprintf("Course %s content: %s", title, chunk)
	}
	return fmt.Sprintf("Course %s Lesson %d content: %s", title, lesson, chunk)
}

// Ingestor feeds parsed documents into the index, skipping courses whose
// title is already indexed.
type Ingestor struct {
	processor *Processor
	index     Index
}

// NewIngestor wires a processor to an index.
func NewIngestor(processor *Processor, index Index) *Ingestor {
	return &Ingestor{processor: processor, index: index}
}

// AddCourseDocument ingests one document. Returns the parsed course and
// the number of chunks written; a course whose title already exists in the
// index is skipped, not merged.
func (ing *Ingestor) AddCourseDocument(ctx context.Context, path string) (Course, int, error) {
	course, chunks, err := ing.processor.ProcessFile(path)
	if err != nil {
		return Course{}, 0, err
	}

	existing, err := ing.index.ExistingCourseTitles(ctx)
	if err != nil {
		return Course{}, 0, fmt.Errorf("failed to list indexed courses: %w", err)
	}
	for _, title := range existing {
		if title == course.Title {
			return course, 0, nil
		}
	}

	if err := ing.index.AddCourseMetadata(ctx, course); err != nil {
		return Course{}, 0, fmt.Errorf("failed to index course metadata: %w", err)
	}
	if err := ing.index.AddCourseContent(ctx, chunks); err != nil {
		return Course{}, 0, fmt.Errorf("failed to index course content: %w", err)
	}

	return course, len(chunks), nil
}

// AddCourseFolder scans a directory once and ingests every supported
// document whose course title is not yet indexed. A .ragignore file in the
// folder excludes documents with gitignore semantics. Returns counts of
// newly added courses and chunks.
func (ing *Ingestor) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	if clearExisting {
		log.Println("Clearing existing course index")
		if err := ing.index.Clear(ctx); err != nil {
			return 0, 0, fmt.Errorf("failed to clear index: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		log.Printf("Documents folder %s does not exist, skipping ingestion", dir)
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read documents folder: %w", err)
	}

	ignorer := loadIgnoreFile(dir)

	existing, err := ing.index.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list indexed courses: %w", err)
	}
	indexed := make(map[string]bool, len(existing))
	for _, title := range existing {
		indexed[title] = true
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !supportedExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		if ignorer != nil && ignorer.MatchesPath(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	coursesAdded, chunksAdded := 0, 0
	for _, name := range names {
		path := filepath.Join(dir, name)

		course, chunks, err := ing.processor.ProcessFile(path)
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			continue
		}
		if indexed[course.Title] {
			continue
		}

		if err := ing.index.AddCourseMetadata(ctx, course); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("failed to index %s: %w", name, err)
		}
		if err := ing.index.AddCourseContent(ctx, chunks); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("failed to index %s: %w", name, err)
		}

		indexed[course.Title] = true
		coursesAdded++
		chunksAdded += len(chunks)

		size := int64(0)
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		log.Printf("Indexed %q (%d chunks, %s)", course.Title, len(chunks), units.HumanSize(float64(size)))
	}

	return coursesAdded, chunksAdded, nil
}

func loadIgnoreFile(dir string) gitignore.IgnoreParser {
	path := filepath.Join(dir, ".ragignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ignorer, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		log.Printf("Failed to parse %s: %v", path, err)
		return nil
	}
	return ignorer
}
