package ingest

// NoLesson marks a chunk that does not belong to a numbered lesson.
// Lesson numbering starts at 0 in real course scripts, so the sentinel
// has to be negative.
const NoLesson = -1

// Lesson is a single numbered lesson inside a course.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the parsed metadata of one course document. The title is the
// unique identifier used for deduplication against the index.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// CourseChunk is one indexable unit of course text. It references its
// course and lesson by value (title/number), not by pointer.
type CourseChunk struct {
	Content      string
	CourseTitle  string
	LessonNumber int // NoLesson when the chunk is not tied to a lesson
	ChunkIndex   int // position within the course, strictly increasing
}
