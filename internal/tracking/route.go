package tracking

import (
	"backend-runtracker/internal/shared/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteGeoJSON renders the session path as a LineString feature plus one
// point per closed segment boundary.
func RouteGeoJSON(s Session, path []geo.Fix) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(path) == 0 {
		return fc
	}

	line := make(orb.LineString, 0, len(path))
	stamps := make([]int64, 0, len(path))
	for _, f := range path {
		line = append(line, orb.Point{f.Longitude, f.Latitude})
		stamps = append(stamps, f.TimestampMillis)
	}

	var g orb.Geometry = line
	if len(line) == 1 {
		g = line[0]
	}
	route := geojson.NewFeature(g)
	route.Properties["session_id"] = s.ID
	route.Properties["state"] = string(s.State)
	route.Properties["distance_m"] = s.TotalDistanceMeters
	route.Properties["timestamps_ms"] = stamps
	fc.Append(route)

	for _, seg := range s.Segments {
		if len(seg.Path) == 0 {
			continue
		}
		end := seg.Path[len(seg.Path)-1]
		boundary := geojson.NewFeature(orb.Point{end.Longitude, end.Latitude})
		boundary.Properties["segment_id"] = seg.ID
		boundary.Properties["distance_m"] = seg.DistanceMeters
		fc.Append(boundary)
	}

	fc.BBox = geojson.NewBBox(line.Bound())
	return fc
}
