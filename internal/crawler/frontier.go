package crawler

import (
	"container/heap"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Entry is a page waiting in the frontier.
type Entry struct {
	// URL is the normalized URL and the deduplication key.
	URL string
	// Candidate is the link that led to this page. Zero for the seed.
	Candidate model.LinkCandidate
	// Depth is the link distance from the seed.
	Depth int
	// Score is the relevance score assigned at discovery.
	Score float64

	seq uint64
}

// Frontier holds the pages still to be fetched, ordered by strategy.
//
// Deduplication happens at push time: a URL that is already queued or
// already visited is rejected, so the frontier never holds a duplicate and
// no URL is fetched twice. A Frontier is owned by a single traversal
// goroutine and is not safe for concurrent use.
type Frontier struct {
	strategy model.Strategy
	store    entryStore
	queued   map[string]struct{}
	visited  map[string]struct{}
	seq      uint64
	// stale counts stored entries whose URL was visited while queued.
	stale    int
}

// NewFrontier creates an empty frontier for the given strategy.
// Unknown strategies fall back to BFS ordering.
func NewFrontier(strategy model.Strategy) *Frontier {
	var store entryStore
	switch strategy {
	case model.StrategyDFS:
		store = &stackStore{}
	case model.StrategyBestFirst:
		store = &priorityStore{}
	default:
		store = &queueStore{}
	}
	return &Frontier{
		strategy: strategy,
		store:    store,
		queued:   make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
}

// Strategy returns the ordering strategy of the frontier.
func (f *Frontier) Strategy() model.Strategy {
	return f.strategy
}

// Push adds e unless its URL was already queued or visited.
// It reports whether the entry was added.
func (f *Frontier) Push(e Entry) bool {
	if f.Seen(e.URL) {
		return false
	}
	f.seq++
	e.seq = f.seq
	f.queued[e.URL] = struct{}{}
	f.store.push(e)
	return true
}

// PushChildren adds the links discovered on one page, given in document
// order, and returns how many were added.
//
// For DFS the children are pushed in reverse so that the first link on the
// page is the first one popped.
func (f *Frontier) PushChildren(entries []Entry) int {
	added := 0
	if f.strategy == model.StrategyDFS {
		for i := len(entries) - 1; i >= 0; i-- {
			if f.Push(entries[i]) {
				added++
			}
		}
		return added
	}
	for _, e := range entries {
		if f.Push(e) {
			added++
		}
	}
	return added
}

// Pop removes the next entry and marks its URL visited. Entries whose URL
// was visited while they waited are dropped. It returns false when no
// fresh entry is left.
func (f *Frontier) Pop() (Entry, bool) {
	for f.store.len() > 0 {
		e := f.store.pop()
		if _, done := f.visited[e.URL]; done {
			f.stale--
			continue
		}
		delete(f.queued, e.URL)
		f.visited[e.URL] = struct{}{}
		return e, true
	}
	return Entry{}, false
}

// MarkVisited records url as visited without it passing through the queue,
// for example the target of a redirect. A queued entry for url is
// withdrawn and never popped.
func (f *Frontier) MarkVisited(url string) {
	if _, done := f.visited[url]; done {
		return
	}
	if _, ok := f.queued[url]; ok {
		delete(f.queued, url)
		f.stale++
	}
	f.visited[url] = struct{}{}
}

// Seen reports whether url is queued or visited.
func (f *Frontier) Seen(url string) bool {
	if _, ok := f.visited[url]; ok {
		return true
	}
	_, ok := f.queued[url]
	return ok
}

// Visited reports whether url has been popped.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	return f.store.len() - f.stale
}

// IsEmpty reports whether nothing is queued.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// VisitedCount returns the number of URLs marked visited.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// entryStore is the ordering policy behind a Frontier.
type entryStore interface {
	push(Entry)
	pop() Entry
	len() int
}

// queueStore is FIFO.
type queueStore struct {
	items []Entry
	head  int
}

func (q *queueStore) push(e Entry) {
	q.items = append(q.items, e)
}

func (q *queueStore) pop() Entry {
	e := q.items[q.head]
	q.items[q.head] = Entry{}
	q.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append([]Entry(nil), q.items[q.head:]...)
		q.head = 0
	}
	return e
}

func (q *queueStore) len() int {
	return len(q.items) - q.head
}

// stackStore is LIFO.
type stackStore struct {
	items []Entry
}

func (s *stackStore) push(e Entry) {
	s.items = append(s.items, e)
}

func (s *stackStore) pop() Entry {
	last := len(s.items) - 1
	e := s.items[last]
	s.items[last] = Entry{}
	s.items = s.items[:last]
	return e
}

func (s *stackStore) len() int {
	return len(s.items)
}

// priorityStore pops the highest score first; ties go to the shallower
// entry, then to the one queued earlier.
type priorityStore struct {
	h entryHeap
}

func (p *priorityStore) push(e Entry) {
	heap.Push(&p.h, e)
}

func (p *priorityStore) pop() Entry {
	return heap.Pop(&p.h).(Entry) //nolint:forcetypeassert // entryHeap only holds Entry
}

func (p *priorityStore) len() int {
	return p.h.Len()
}

type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(Entry)) //nolint:forcetypeassert // only called by container/heap with Entry
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = Entry{}
	*h = old[:n-1]
	return e
}
