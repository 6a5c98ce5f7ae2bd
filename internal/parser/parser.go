package parser

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"docindex/internal/config"
	"docindex/internal/models"
)

var (
	// ErrConfiguration is returned for chunking parameters that cannot
	// produce a valid sliding window.
	ErrConfiguration = errors.New("invalid chunking configuration")
	// ErrMalformedInput is returned when the text declares no page boundary.
	ErrMalformedInput = errors.New("malformed input")
)

// Splitter cuts page-marked text into overlapping word windows.
type Splitter struct {
	maxWords     int
	overlapWords int
	minWords     int
	pageMarker   *regexp.Regexp
	boilerplate  *regexp.Regexp
}

type page struct {
	number int
	text   string
}

type word struct {
	text string
	page int
}

// NewSplitter validates cfg and compiles its patterns. A nil cfg uses the
// pipeline defaults.
func NewSplitter(cfg *config.ChunkingConfig) (*Splitter, error) {
	if cfg == nil {
		cfg = &config.Default().Chunking
	}

	if cfg.MaxWords <= 0 {
		return nil, fmt.Errorf("%w: max_words must be positive, got %d", ErrConfiguration, cfg.MaxWords)
	}
	if cfg.OverlapWords < 0 {
		return nil, fmt.Errorf("%w: overlap_words must not be negative, got %d", ErrConfiguration, cfg.OverlapWords)
	}
	if cfg.OverlapWords >= cfg.MaxWords {
		return nil, fmt.Errorf("%w: overlap_words (%d) must be smaller than max_words (%d)",
			ErrConfiguration, cfg.OverlapWords, cfg.MaxWords)
	}
	if cfg.MinChunkWords < 0 {
		return nil, fmt.Errorf("%w: min_chunk_words must not be negative, got %d", ErrConfiguration, cfg.MinChunkWords)
	}

	markerPattern := cfg.PageMarkerPattern
	if markerPattern == "" {
		markerPattern = models.PageMarkerRegex
	}
	pageMarker, err := regexp.Compile(markerPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: page marker pattern: %v", ErrConfiguration, err)
	}
	if pageMarker.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: page marker pattern needs a capture group for the page number", ErrConfiguration)
	}

	boilerplate := defaultBoilerplateRe
	if cfg.BoilerplatePattern != "" {
		boilerplate, err = regexp.Compile(cfg.BoilerplatePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: boilerplate pattern: %v", ErrConfiguration, err)
		}
	}

	return &Splitter{
		maxWords:     cfg.MaxWords,
		overlapWords: cfg.OverlapWords,
		minWords:     cfg.MinChunkWords,
		pageMarker:   pageMarker,
		boilerplate:  boilerplate,
	}, nil
}

// SplitText chunks text with the default patterns and minimum chunk size.
func SplitText(text string, maxWords, overlapWords int) ([]models.Chunk, error) {
	cfg := config.Default().Chunking
	cfg.MaxWords = maxWords
	cfg.OverlapWords = overlapWords
	s, err := NewSplitter(&cfg)
	if err != nil {
		return nil, err
	}
	return s.Split(text)
}

// Split cleans text and returns its chunks in document order. Chunks may
// straddle page boundaries; windows shorter than the minimum size are
// dropped, so a short document can legitimately yield no chunks.
func (s *Splitter) Split(text string) ([]models.Chunk, error) {
	text = Clean(text, s.boilerplate)

	pages, err := s.splitPages(text)
	if err != nil {
		return nil, err
	}

	stream := wordStream(pages)
	step := s.maxWords - s.overlapWords

	var chunks []models.Chunk
	chunkID := 1
	for start := 0; start < len(stream); start += step {
		end := min(start+s.maxWords, len(stream))
		window := stream[start:end]

		// skip very small chunks
		if len(window) < s.minWords {
			continue
		}

		words := make([]string, len(window))
		pagesUsed := make([]int, len(window))
		for i, w := range window {
			words[i] = w.text
			pagesUsed[i] = w.page
		}
		slices.Sort(pagesUsed)
		pagesUsed = slices.Compact(pagesUsed)

		chunks = append(chunks, models.Chunk{
			ChunkID:   chunkID,
			Text:      strings.Join(words, " "),
			Pages:     pagesUsed,
			StartWord: start,
			EndWord:   end,
		})
		chunkID++
	}

	log.Debug().
		Int("pages", len(pages)).
		Int("words", len(stream)).
		Int("chunks", len(chunks)).
		Msg("Split text into chunks")

	return chunks, nil
}

// splitPages returns the text following each page marker. Anything before
// the first marker belongs to no page and is discarded.
func (s *Splitter) splitPages(text string) ([]page, error) {
	markers := s.pageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(markers) == 0 {
		return nil, fmt.Errorf("%w: no page markers found in text", ErrMalformedInput)
	}

	pages := make([]page, 0, len(markers))
	for i, m := range markers {
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			return nil, fmt.Errorf("%w: bad page number %q", ErrMalformedInput, text[m[2]:m[3]])
		}
		bodyEnd := len(text)
		if i+1 < len(markers) {
			bodyEnd = markers[i+1][0]
		}
		pages = append(pages, page{
			number: number,
			text:   strings.TrimSpace(text[m[1]:bodyEnd]),
		})
	}
	return pages, nil
}

// wordStream flattens all pages into one ordered stream of words, each
// remembering the page it came from.
func wordStream(pages []page) []word {
	var stream []word
	for _, p := range pages {
		for _, sentence := range splitSentences(p.text) {
			for _, w := range strings.Fields(sentence) {
				stream = append(stream, word{text: w, page: p.number})
			}
		}
	}
	return stream
}

// splitSentences breaks text after '.', '!' or '?' when followed by
// whitespace. The terminator stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				sentences = append(sentences, string(runes[start:i+1]))
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}
