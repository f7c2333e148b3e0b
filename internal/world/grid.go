package world

import (
	"math"
	"sort"
)

type cellKey struct{ c, r int }

// Grid is a bucketed spatial index over entity IDs. Removed entities are
// dropped from the index entirely, so queries never see them.
type Grid struct {
	cellSize float64
	cells    map[cellKey][]uint64
	pos      map[uint64]Point
}

// NewGrid creates an index whose buckets are cellSize metres on a side.
// Queries cost roughly (2r/cellSize)² bucket visits.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 100
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]uint64),
		pos:      make(map[uint64]Point),
	}
}

// Len returns the number of indexed entities.
func (g *Grid) Len() int { return len(g.pos) }

// Insert adds id at p, or moves it there if already present.
func (g *Grid) Insert(id uint64, p Point) {
	if _, ok := g.pos[id]; ok {
		g.Move(id, p)
		return
	}
	k := g.key(p)
	g.cells[k] = append(g.cells[k], id)
	g.pos[id] = p
}

// Move updates the stored position of id. Unknown IDs are ignored.
func (g *Grid) Move(id uint64, p Point) {
	old, ok := g.pos[id]
	if !ok {
		return
	}
	g.pos[id] = p
	ok1, nk := g.key(old), g.key(p)
	if ok1 == nk {
		return
	}
	g.detach(ok1, id)
	g.cells[nk] = append(g.cells[nk], id)
}

// Remove drops id from the index.
func (g *Grid) Remove(id uint64) {
	p, ok := g.pos[id]
	if !ok {
		return
	}
	g.detach(g.key(p), id)
	delete(g.pos, id)
}

// Position returns the indexed position of id.
func (g *Grid) Position(id uint64) (Point, bool) {
	p, ok := g.pos[id]
	return p, ok
}

// Within returns every indexed ID within radius of p (inclusive), in ascending
// ID order. A negative radius yields nothing.
func (g *Grid) Within(p Point, radius float64) []uint64 {
	if radius < 0 {
		return nil
	}
	minC := int(math.Floor((p.X - radius) / g.cellSize))
	maxC := int(math.Floor((p.X + radius) / g.cellSize))
	minR := int(math.Floor((p.Y - radius) / g.cellSize))
	maxR := int(math.Floor((p.Y + radius) / g.cellSize))

	var out []uint64
	for r := minR; r <= maxR; r++ {
		for c := minC; c <= maxC; c++ {
			for _, id := range g.cells[cellKey{c, r}] {
				if g.pos[id].Distance(p) <= radius {
					out = append(out, id)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Grid) key(p Point) cellKey {
	return cellKey{int(math.Floor(p.X / g.cellSize)), int(math.Floor(p.Y / g.cellSize))}
}

func (g *Grid) detach(k cellKey, id uint64) {
	bucket := g.cells[k]
	for i, v := range bucket {
		if v == id {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		delete(g.cells, k)
		return
	}
	g.cells[k] = bucket
}
