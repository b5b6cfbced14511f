// Package geo carries the prediction grid's coordinates and enforces the
// run's coordinate-reference-system policy. Reading the vector file itself
// is the caller's concern; this package only sees the tabular result.
package geo

import (
	"math"
	"strconv"

	"github.com/habitatlab/sdmgo/dataset"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

const (
	// WGS84 is the reference system every prediction grid must be in
	// before the core sees it.
	WGS84 = "EPSG:4326"
	// WebMercator is the only source system the reproject policy converts
	// from.
	WebMercator = "EPSG:3857"

	earthRadius = 6378137.0
)

// Policy decides what happens to a grid whose CRS is not WGS84.
type Policy int

const (
	// PolicyReject fails the run with a CRSViolation.
	PolicyReject Policy = iota
	// PolicyReproject converts supported source systems to WGS84.
	PolicyReproject
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "reject":
		return PolicyReject, nil
	case "reproject":
		return PolicyReproject, nil
	default:
		return PolicyReject, errors.NewValueError("ParsePolicy", "unknown crs_policy "+strconv.Quote(s))
	}
}

// Grid is a prediction grid: its feature table, declared CRS, and one
// coordinate pair per row.
type Grid struct {
	Table *dataset.Table
	EPSG  string
	Lon   []float64
	Lat   []float64
}

// LoadGrid parses the coordinate columns out of a grid table. The remaining
// columns stay available for schema selection.
func LoadGrid(t *dataset.Table, epsg, lonColumn, latColumn string) (*Grid, error) {
	lon, err := coordColumn(t, lonColumn)
	if err != nil {
		return nil, err
	}
	lat, err := coordColumn(t, latColumn)
	if err != nil {
		return nil, err
	}
	return &Grid{Table: t, EPSG: epsg, Lon: lon, Lat: lat}, nil
}

// EnsureWGS84 applies the CRS policy: a WGS84 grid passes through, a
// mismatched grid is rejected or, under PolicyReproject, converted in place
// when the source system is supported.
func (g *Grid) EnsureWGS84(policy Policy) error {
	if g.EPSG == WGS84 {
		return nil
	}
	if policy == PolicyReject {
		return errors.NewCRSViolationError(WGS84, g.EPSG)
	}
	if g.EPSG != WebMercator {
		return errors.Wrap(errors.NewCRSViolationError(WGS84, g.EPSG), "reprojection supports only "+WebMercator)
	}

	for i := range g.Lon {
		g.Lon[i], g.Lat[i] = mercatorToWGS84(g.Lon[i], g.Lat[i])
	}
	g.EPSG = WGS84
	return nil
}

// mercatorToWGS84 converts spherical-mercator meters to degrees.
func mercatorToWGS84(x, y float64) (lon, lat float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

func coordColumn(t *dataset.Table, name string) ([]float64, error) {
	cells, ok := t.Column(name)
	if !ok {
		return nil, errors.NewSchemaViolationError(t.Name, name, "coordinate column missing")
	}
	vals := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.NewSchemaViolationError(t.Name, name, "coordinate cell "+strconv.Itoa(i)+" is not numeric")
		}
		vals[i] = v
	}
	return vals, nil
}
