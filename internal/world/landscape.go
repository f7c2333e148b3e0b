package world

import "fmt"

// Landscape holds the rasterised land mask plus the places generated on it.
type Landscape struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	CellSize float64 `json:"cell_size"`

	cols, rows int
	elevation  []float64 // row-major, cols×rows
	seaLevel   float64

	Centroids  []Centroid `json:"centroids"`
	Facilities []Point    `json:"facilities"`
}

// Centroid is a population centre agents are spawned around.
type Centroid struct {
	Name     string  `json:"name"`
	Position Point   `json:"position"`
	Score    float64 `json:"score"`
}

// NewFlat creates an all-land landscape of the given size, with no centroids
// or facilities. Handy for scenarios that place everything by hand.
func NewFlat(width, height, cellSize float64) *Landscape {
	l := newLandscape(width, height, cellSize, 0)
	for i := range l.elevation {
		l.elevation[i] = 1
	}
	return l
}

func newLandscape(width, height, cellSize, seaLevel float64) *Landscape {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &Landscape{
		Width:     width,
		Height:    height,
		CellSize:  cellSize,
		cols:      cols,
		rows:      rows,
		elevation: make([]float64, cols*rows),
		seaLevel:  seaLevel,
	}
}

// InBounds reports whether p lies inside the rectangle of the landscape.
func (l *Landscape) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= l.Width && p.Y <= l.Height
}

// Contains reports whether p lies on land.
func (l *Landscape) Contains(p Point) bool {
	if !l.InBounds(p) {
		return false
	}
	return l.Elevation(p) > l.seaLevel
}

// Elevation returns the normalised elevation of the cell under p, or 0 outside.
func (l *Landscape) Elevation(p Point) float64 {
	if !l.InBounds(p) {
		return 0
	}
	c, r := l.cell(p)
	return l.elevation[r*l.cols+c]
}

// AddFacility registers a medical facility. Facilities off land are rejected.
func (l *Landscape) AddFacility(p Point) error {
	if !l.Contains(p) {
		return fmt.Errorf("facility %v: %w", p, ErrInvalidDestination)
	}
	l.Facilities = append(l.Facilities, p)
	return nil
}

// NearestFacility returns the closest facility within radius of p.
func (l *Landscape) NearestFacility(p Point, radius float64) (Point, bool) {
	best, found := Point{}, false
	bestDist := radius
	for _, f := range l.Facilities {
		if d := p.Distance(f); d <= bestDist {
			best, bestDist, found = f, d, true
		}
	}
	return best, found
}

// FacilityAt reports whether a facility lies within tolerance of p.
func (l *Landscape) FacilityAt(p Point, tolerance float64) bool {
	_, ok := l.NearestFacility(p, tolerance)
	return ok
}

// LandFraction returns the share of cells above sea level.
func (l *Landscape) LandFraction() float64 {
	if len(l.elevation) == 0 {
		return 0
	}
	land := 0
	for _, e := range l.elevation {
		if e > l.seaLevel {
			land++
		}
	}
	return float64(land) / float64(len(l.elevation))
}

func (l *Landscape) cell(p Point) (int, int) {
	c := int(p.X / l.CellSize)
	r := int(p.Y / l.CellSize)
	if c >= l.cols {
		c = l.cols - 1
	}
	if r >= l.rows {
		r = l.rows - 1
	}
	return c, r
}

func (l *Landscape) cellCenter(c, r int) Point {
	return Point{X: (float64(c) + 0.5) * l.CellSize, Y: (float64(r) + 0.5) * l.CellSize}
}

// String returns a summary of the landscape.
func (l *Landscape) String() string {
	return fmt.Sprintf("Landscape(%.0fx%.0f, land=%.0f%%, centroids=%d, facilities=%d)",
		l.Width, l.Height, l.LandFraction()*100, len(l.Centroids), len(l.Facilities))
}
