// Landscape generation using layered simplex noise.
// Produces an elevation raster, thresholds it into a land mask, then places
// population centroids and medical facilities on the land.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds landscape generation parameters.
type GenConfig struct {
	Width      float64 // Metres east-west
	Height     float64 // Metres north-south
	CellSize   float64 // Raster resolution in metres
	Seed       int64
	SeaLevel   float64 // Elevation threshold for water (0.0-1.0)
	Centroids  int     // Population centres to place
	Facilities int     // Medical facilities to place
}

// DefaultGenConfig returns a 30km × 20km district.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:      30000,
		Height:     20000,
		CellSize:   250,
		Seed:       1,
		SeaLevel:   0.22,
		Centroids:  12,
		Facilities: 4,
	}
}

// SmallTestConfig returns a tiny landscape for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:      6000,
		Height:     6000,
		CellSize:   200,
		Seed:       42,
		SeaLevel:   0.15,
		Centroids:  3,
		Facilities: 1,
	}
}

// Generate creates a landscape with a land mask, centroids and facilities.
// The same config always yields the same landscape.
func Generate(cfg GenConfig) *Landscape {
	l := newLandscape(cfg.Width, cfg.Height, cfg.CellSize, cfg.SeaLevel)
	elevNoise := opensimplex.NewNormalized(cfg.Seed)

	halfW, halfH := cfg.Width/2, cfg.Height/2
	for r := 0; r < l.rows; r++ {
		for c := 0; c < l.cols; c++ {
			center := l.cellCenter(c, r)
			// Noise sampled in kilometres.
			elev := octaveNoise(elevNoise, center.X/1000, center.Y/1000, 4, 0.15, 0.5)

			// Shape the district into an island: pull elevation down toward the edges.
			dx := (center.X - halfW) / halfW
			dy := (center.Y - halfH) / halfH
			dist := math.Sqrt(dx*dx+dy*dy) / math.Sqrt2
			edgeFalloff := 1.0 - math.Pow(dist, 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			l.elevation[r*l.cols+c] = elev * edgeFalloff
		}
	}

	l.Centroids = PlaceCentroids(l, cfg.Centroids, cfg.Seed)
	l.Facilities = PlaceFacilities(l, cfg.Facilities)
	return l
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
