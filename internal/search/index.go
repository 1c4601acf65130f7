// Package search implements the full-text search half of the
// Catalog/Index pairing: a hand-rolled token-postings inverted index.
// See DESIGN.md for why this is built on the standard library rather
// than a fetched dependency.
package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CollectionType is the document kind, encoded as a small integer.
// The numeric values follow declaration order (Track=0, Artist=1,
// Album=2, Directory=3, Playlist=4) and match the on-disk wire
// encoding exactly.
type CollectionType int

const (
	Track CollectionType = iota
	Artist
	Album
	Directory
	Playlist
)

func (k CollectionType) label() string {
	switch k {
	case Track:
		return "Track"
	case Artist:
		return "Artist"
	case Album:
		return "Album"
	case Directory:
		return "Directory"
	case Playlist:
		return "Playlist"
	default:
		return "Unknown"
	}
}

var allKinds = []CollectionType{Track, Artist, Album, Directory, Playlist}

// Latinize produces a diacritic-folded, ASCII-leaning rendering of s
// for accent-insensitive search (the GLOSSARY's "Latinization").
func Latinize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type document struct {
	tid    string
	kind   CollectionType
	id     int64
	name   string
	tokens map[string]struct{}
}

// Index is an in-memory inverted index over (kind, id) documents,
// upserted by composite key "tid".
type Index struct {
	mu       sync.RWMutex
	docs     map[string]*document      // tid -> document
	postings map[string]map[string]int // token -> tid -> term frequency
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		docs:     make(map[string]*document),
		postings: make(map[string]map[string]int),
	}
}

func tid(kind CollectionType, id int64) string {
	return fmt.Sprintf("%s-%d", kind.label(), id)
}

// AddTerm upserts the document named by (kind, id), indexing both name
// and its latinization.
func (ix *Index) AddTerm(kind CollectionType, id int64, name string) {
	key := tid(kind, id)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(key)

	tokens := make(map[string]struct{})
	for _, tok := range tokenize(name) {
		tokens[tok] = struct{}{}
	}
	for _, tok := range tokenize(Latinize(name)) {
		tokens[tok] = struct{}{}
	}

	doc := &document{tid: key, kind: kind, id: id, name: name, tokens: tokens}
	ix.docs[key] = doc

	for tok := range tokens {
		bucket, ok := ix.postings[tok]
		if !ok {
			bucket = make(map[string]int)
			ix.postings[tok] = bucket
		}
		bucket[key]++
	}
}

// RemoveTerm deletes the document identified by (kind, id), if present.
func (ix *Index) RemoveTerm(kind CollectionType, id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(tid(kind, id))
}

func (ix *Index) removeLocked(key string) {
	doc, ok := ix.docs[key]
	if !ok {
		return
	}
	for tok := range doc.tokens {
		if bucket, ok := ix.postings[tok]; ok {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(ix.postings, tok)
			}
		}
	}
	delete(ix.docs, key)
}

// Search returns, per kind, up to n matching ids ordered by relevance
// (term-overlap score), matching the round-trip law other collaborators expect.
func (ix *Index) Search(query string, n int) map[CollectionType][]int64 {
	results := make(map[CollectionType][]int64, len(allKinds))
	if n <= 0 {
		return results
	}

	tokens := tokenize(query)
	latTokens := tokenize(Latinize(query))

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scores := make(map[string]int)
	for _, tok := range tokens {
		for key, tf := range ix.postings[tok] {
			scores[key] += tf
		}
	}
	for _, tok := range latTokens {
		for key, tf := range ix.postings[tok] {
			scores[key] += tf
		}
	}

	byKind := make(map[CollectionType][]scored)
	for key, score := range scores {
		doc := ix.docs[key]
		if doc == nil {
			continue
		}
		byKind[doc.kind] = append(byKind[doc.kind], scored{id: doc.id, score: score})
	}

	for kind, list := range byKind {
		sort.Slice(list, func(i, j int) bool {
			if list[i].score != list[j].score {
				return list[i].score > list[j].score
			}
			return list[i].id < list[j].id
		})
		if len(list) > n {
			list = list[:n]
		}
		ids := make([]int64, len(list))
		for i, s := range list {
			ids[i] = s.id
		}
		results[kind] = ids
	}
	return results
}

type scored struct {
	id    int64
	score int
}
