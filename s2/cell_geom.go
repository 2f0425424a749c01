// Package s2 names places by S2 cell, for indexing and grouping estimates.
package s2

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

func CellIDWithLevel(cellID s2.CellID, level CellLevel) s2.CellID {
	if level < 0 {
		level = 0
	}
	if level > CellLevelMax {
		level = CellLevelMax
	}
	return cellID.Parent(int(level))
}

func CellIDForPointAtLevel(pt orb.Point, level CellLevel) s2.CellID {
	leaf := s2.CellIDFromLatLng(s2.LatLngFromDegrees(pt.Lat(), pt.Lon()))
	return CellIDWithLevel(leaf, level)
}

// CellToken is the compact hex token of the cell containing pt.
func CellToken(pt orb.Point, level CellLevel) string {
	return CellIDForPointAtLevel(pt, level).ToToken()
}

// CellPolygonForPointAtLevel returns the outline of the cell containing pt.
func CellPolygonForPointAtLevel(pt orb.Point, level CellLevel) orb.Polygon {
	cell := s2.CellFromCellID(CellIDForPointAtLevel(pt, level))

	ring := make(orb.Ring, 0, 5)
	for i := 0; i < 4; i++ {
		ll := s2.LatLngFromPoint(cell.Vertex(i))
		ring = append(ring, orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// CellContains reports whether token names a cell containing pt.
func CellContains(token string, pt orb.Point) bool {
	id := s2.CellIDFromToken(token)
	if !id.IsValid() {
		return false
	}
	leaf := s2.CellIDFromLatLng(s2.LatLngFromDegrees(pt.Lat(), pt.Lon()))
	return id.Contains(leaf)
}
