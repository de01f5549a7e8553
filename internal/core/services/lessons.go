package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure LessonExtractor implements the interface.
var _ driving.LessonExtractor = (*LessonExtractor)(nil)

// DefaultMaxLessons caps the number of lessons taken from one document.
const DefaultMaxLessons = 12

var (
	lessonHeader      = regexp.MustCompile(`(?i)^(week\s*\d+)\s*[:\-]?\s*(.*)$`)
	lessonHeaderStart = regexp.MustCompile(`(?i)^week\s*\d+`)
)

// LessonExtractor parses lesson records out of course documents.
//
// A line starting with "Week <n>" opens a lesson; the rest of that line and
// every following line up to the next header form its description.
type LessonExtractor struct {
	extractors map[string]driven.TextExtractor
	maxLessons int
	fallback   bool
}

// LessonExtractorOption configures a LessonExtractor.
type LessonExtractorOption func(*LessonExtractor)

// WithMaxLessons caps the number of lessons. Zero keeps the default.
func WithMaxLessons(n int) LessonExtractorOption {
	return func(e *LessonExtractor) {
		if n > 0 {
			e.maxLessons = n
		}
	}
}

// WithChunkFallback splits header-less text into evenly sized lessons
// instead of returning none.
func WithChunkFallback(enabled bool) LessonExtractorOption {
	return func(e *LessonExtractor) { e.fallback = enabled }
}

// NewLessonExtractor creates a lesson extractor using the given text extractors.
func NewLessonExtractor(extractors []driven.TextExtractor, opts ...LessonExtractorOption) *LessonExtractor {
	e := &LessonExtractor{
		extractors: make(map[string]driven.TextExtractor),
		maxLessons: DefaultMaxLessons,
	}
	for _, x := range extractors {
		for _, ext := range x.Extensions() {
			e.extractors[domain.NormalizeExtension(ext)] = x
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFile extracts the text of the document at path and parses it.
func (e *LessonExtractor) ExtractFile(ctx context.Context, path string) ([]domain.LessonRecord, error) {
	ext := domain.NormalizeExtension(filepath.Ext(path))
	extractor, ok := e.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("extract %s: no text extractor for %q: %w", path, ext, domain.ErrUnsupportedType)
	}

	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	logger.Debug("extracted %d characters from %s", len(text), path)

	return e.Parse(text), nil
}

// Parse returns the lessons found in text, ordered by sequence.
func (e *LessonExtractor) Parse(text string) []domain.LessonRecord {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var records []domain.LessonRecord
	for i := 0; i < len(lines); {
		m := lessonHeader.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}

		var parts []string
		if rest := strings.TrimSpace(m[2]); rest != "" {
			parts = append(parts, rest)
		}
		j := i + 1
		for ; j < len(lines) && !lessonHeaderStart.MatchString(lines[j]); j++ {
			parts = append(parts, lines[j])
		}

		records = append(records, domain.LessonRecord{
			Name:        m[1],
			Description: strings.TrimSpace(strings.Join(parts, " ")),
			Sequence:    len(records),
		})
		i = j
	}

	if len(records) == 0 && e.fallback {
		records = e.chunk(text)
	}
	if len(records) > e.maxLessons {
		records = records[:e.maxLessons]
	}
	return records
}

// chunk splits the word stream into at most maxLessons lessons.
// The last lesson takes the remainder.
func (e *LessonExtractor) chunk(text string) []domain.LessonRecord {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	size := len(words) / e.maxLessons
	if size < 1 {
		size = 1
	}

	var records []domain.LessonRecord
	for k := 0; k < e.maxLessons; k++ {
		start := k * size
		if start >= len(words) {
			break
		}
		end := start + size
		if k == e.maxLessons-1 || end > len(words) {
			end = len(words)
		}
		records = append(records, domain.LessonRecord{
			Name:        fmt.Sprintf("Week %d", k+1),
			Description: strings.Join(words[start:end], " "),
			Sequence:    k,
		})
	}
	return records
}
