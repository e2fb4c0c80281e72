package terrain

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"voxelshelter.ai/internal/shelter/geom"
)

const defaultCacheSize = 4096

type standEntry struct {
	rev uint64
	ok  bool
}

// Queries wraps a Reader with a standability cache. Entries are tagged with the
// world revision they were computed at and ignored once the world changes.
type Queries struct {
	Reader

	mu    sync.Mutex
	stand *lru.Cache[geom.Pos, standEntry]
	hits  uint64
}

func NewQueries(r Reader, size int) *Queries {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[geom.Pos, standEntry](size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &Queries{Reader: r, stand: c}
}

func (q *Queries) Standable(p geom.Pos) bool {
	rev := q.Revision()
	if e, ok := q.stand.Get(p); ok && e.rev == rev {
		q.mu.Lock()
		q.hits++
		q.mu.Unlock()
		return e.ok
	}
	ok := IsStandable(q.Reader, p)
	q.stand.Add(p, standEntry{rev: rev, ok: ok})
	return ok
}

// Hits is the number of cache hits so far.
func (q *Queries) Hits() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hits
}

func (q *Queries) NearbyStandable(seed geom.Pos, radius int) (geom.Pos, bool) {
	return findNear(seed, radius, q.Standable)
}

func (q *Queries) SafeNear(seed geom.Pos, radius int) (geom.Pos, bool) {
	return FindSafeNear(q.Reader, seed, radius)
}

func (q *Queries) FloorY(p geom.Pos) int { return DetectFloorY(q.Reader, p) }

func (q *Queries) Missing(p geom.Pos) bool { return Missing(q.BlockAt(p)) }

// CountMissing counts cells of the list that still need a block.
func (q *Queries) CountMissing(cells []geom.Pos) int {
	n := 0
	for _, c := range cells {
		if q.Missing(c) {
			n++
		}
	}
	return n
}
