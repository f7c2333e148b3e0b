// Centroid placement: finds suitable land and seeds population centres and
// the medical facilities that serve them.
package world

import (
	"math/rand"
	"sort"
)

// PlaceCentroids picks up to count population centres on land, best-scored
// first, keeping them apart so neighbourhoods do not overlap. Results are
// deterministic for a given landscape and seed.
func PlaceCentroids(l *Landscape, count int, seed int64) []Centroid {
	if count <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		pos   Point
		score float64
	}
	var candidates []scored
	for r := 0; r < l.rows; r++ {
		for c := 0; c < l.cols; c++ {
			p := l.cellCenter(c, r)
			if s := centroidScore(l, c, r); s > 0 && l.Contains(p) {
				candidates = append(candidates, scored{p, s})
			}
		}
	}

	// Sort by score descending; ties keep raster order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	minDist := minCentroidSpacing(l, count)
	var out []Centroid
	for _, c := range candidates {
		if len(out) >= count {
			break
		}
		if tooClose(c.pos, out, minDist) {
			continue
		}
		out = append(out, Centroid{Position: c.pos, Score: c.score})
	}

	names := generateNames(rng, len(out))
	for i := range out {
		out[i].Name = names[i]
	}
	return out
}

// PlaceFacilities puts one medical facility in each of the count best centroids.
func PlaceFacilities(l *Landscape, count int) []Point {
	if count > len(l.Centroids) {
		count = len(l.Centroids)
	}
	out := make([]Point, 0, count)
	for _, c := range l.Centroids[:count] {
		out = append(out, c.Position)
	}
	return out
}

// centroidScore prefers low, dry ground with land on every side.
func centroidScore(l *Landscape, c, r int) float64 {
	elev := l.elevation[r*l.cols+c]
	if elev <= l.seaLevel {
		return 0
	}
	score := 1.0 - absf(elev-(l.seaLevel+0.2))

	landNeighbours := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			nc, nr := c+dc, r+dr
			if nc < 0 || nr < 0 || nc >= l.cols || nr >= l.rows {
				continue
			}
			if l.elevation[nr*l.cols+nc] > l.seaLevel {
				landNeighbours++
			}
		}
	}
	return score + float64(landNeighbours)*0.1
}

// minCentroidSpacing spreads count centres over the landscape's area.
func minCentroidSpacing(l *Landscape, count int) float64 {
	d := (l.Width + l.Height) / float64(2*count)
	if d < l.CellSize {
		d = l.CellSize
	}
	return d
}

func tooClose(p Point, existing []Centroid, minDist float64) bool {
	for _, c := range existing {
		if p.Distance(c.Position) < minDist {
			return true
		}
	}
	return false
}

// generateNames produces procedural neighbourhood names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Broad", "Golden", "Poland", "Berwick", "Dean", "Marshall", "Silver",
		"Carnaby", "Great", "Little", "King", "Queen", "Old", "New",
		"Church", "Mill", "Bridge", "Market", "Well", "Green", "West",
	}
	suffixes := []string{
		" Street", " Square", " Lane", " Row", " Court", " Yard", " Green",
		" Gate", " Hill", " Place", " Cross", " End", " Fields", " Wharf",
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)
	limit := len(prefixes) * len(suffixes)

	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if !used[name] || len(used) >= limit {
			used[name] = true
			names = append(names, name)
		}
	}

	return names
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
