// Package frontier holds the state of one breadth-first crawl: the FIFO queue
// of discovered URLs and the visited set.
package frontier

import (
	"sync"
)

// Entry is a queued URL and the page that discovered it. ParentID is zero for
// the seed.
type Entry struct {
	URL      string
	ParentID int64
}

type Frontier struct {
	mu      sync.Mutex
	queue   []Entry
	head    int
	visited map[string]int64
	failed  map[string]bool
}

func New() *Frontier {
	return &Frontier{
		visited: make(map[string]int64),
		failed:  make(map[string]bool),
	}
}

// Push appends entries to the back of the queue. A URL may be queued more
// than once; every copy carries its own parent.
func (f *Frontier) Push(entries ...Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queue = append(f.queue, entries...)
}

// Pop removes the oldest entry.
func (f *Frontier) Pop() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head == len(f.queue) {
		return Entry{}, false
	}

	e := f.queue[f.head]
	f.queue[f.head] = Entry{}
	f.head++

	// Reclaim the consumed prefix once it dominates the slice.
	if f.head > 1024 && f.head*2 > len(f.queue) {
		f.queue = append([]Entry(nil), f.queue[f.head:]...)
		f.head = 0
	}
	return e, true
}

func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

// MarkVisited records that url was stored as page id.
func (f *Frontier) MarkVisited(url string, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[url] = id
}

// Visited returns the page id of url if it has been visited.
func (f *Frontier) Visited(url string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.visited[url]
	return id, ok
}

func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// MarkFailed records that url could not be fetched. It is not retried.
func (f *Frontier) MarkFailed(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[url] = true
}

func (f *Frontier) Failed(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed[url]
}
