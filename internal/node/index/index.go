package index

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
)

// Index is a small in-memory inverted index. It exists so a coordinator
// cluster can be run and tested without an external engine; scoring is plain
// term frequency.
type Index struct {
	mu       sync.RWMutex
	docs     map[string]map[string]any
	postings map[string]map[string]uint32 // term -> doc id -> tf
}

func New() *Index {
	return &Index{
		docs:     make(map[string]map[string]any),
		postings: make(map[string]map[string]uint32),
	}
}

// Put indexes a document, replacing any previous version under the same id.
func (x *Index) Put(id string, fields map[string]any) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.deleteLocked(id)
	x.docs[id] = fields

	for _, value := range fields {
		text, ok := value.(string)
		if !ok {
			continue
		}
		for _, term := range tokenize(text) {
			byDoc, ok := x.postings[term]
			if !ok {
				byDoc = make(map[string]uint32)
				x.postings[term] = byDoc
			}
			byDoc[id]++
		}
	}
}

// Delete removes a document, reporting whether it existed.
func (x *Index) Delete(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.deleteLocked(id)
}

func (x *Index) deleteLocked(id string) bool {
	if _, ok := x.docs[id]; !ok {
		return false
	}
	delete(x.docs, id)
	for term, byDoc := range x.postings {
		delete(byDoc, id)
		if len(byDoc) == 0 {
			delete(x.postings, term)
		}
	}
	return true
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search scores documents by summed term frequency over the query terms.
// An empty query matches nothing but still succeeds, which doubles as the
// health probe fallback.
func (x *Index) Search(query string, limit uint, offset uint) *domain.SearchResult {
	start := time.Now()
	terms := tokenize(query)

	x.mu.RLock()
	scores := make(map[string]float64)
	for _, term := range terms {
		for id, tf := range x.postings[term] {
			scores[id] += float64(tf)
		}
	}

	hits := make([]domain.Hit, 0, len(scores))
	for id, score := range scores {
		fields := make(map[string]any, len(x.docs[id])+1)
		for k, v := range x.docs[id] {
			fields[k] = v
		}
		fields["id"] = id
		hits = append(hits, domain.Hit{Score: score, Fields: fields})
	}
	x.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Fields["id"].(string) < hits[j].Fields["id"].(string)
	})

	total := uint64(len(hits))
	if uint(len(hits)) > offset {
		end := offset + limit
		if end < offset || end > uint(len(hits)) {
			end = uint(len(hits))
		}
		hits = hits[offset:end]
	} else {
		hits = []domain.Hit{}
	}

	return &domain.SearchResult{
		Hits:      hits,
		TotalHits: total,
		TookMS:    uint64(time.Since(start).Milliseconds()),
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
