package tracking

import (
	"testing"

	"backend-runtracker/internal/segment"
	"backend-runtracker/internal/shared/geo"

	"github.com/paulmach/orb"
)

func TestRouteGeoJSON(t *testing.T) {
	path := []geo.Fix{fixAt(0, 0), fixAt(1, 1000), fixAt(2, 2000)}
	s := Session{
		ID:                  "s-1",
		State:               StateCompleted,
		TotalDistanceMeters: 10,
		Segments:            []segment.Segment{{ID: 1, DistanceMeters: 10, Path: path}},
	}

	fc := RouteGeoJSON(s, path)
	if len(fc.Features) != 2 {
		t.Fatalf("expected route and one boundary, got %d", len(fc.Features))
	}
	line, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok || len(line) != 3 {
		t.Fatalf("expected 3-point line string, got %T", fc.Features[0].Geometry)
	}
	if line[0][0] != 2.35 || line[0][1] != 48.85 {
		t.Fatalf("expected lon/lat order, got %v", line[0])
	}
	if fc.Features[0].Properties["session_id"] != "s-1" {
		t.Fatalf("missing session id")
	}
	if fc.Features[1].Properties["segment_id"] != 1 {
		t.Fatalf("missing segment id")
	}
	if len(fc.BBox) != 4 {
		t.Fatalf("expected bbox")
	}
	if _, err := fc.MarshalJSON(); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestRouteGeoJSONSingleFixAndEmpty(t *testing.T) {
	if fc := RouteGeoJSON(Session{}, nil); len(fc.Features) != 0 {
		t.Fatalf("expected empty collection")
	}
	fc := RouteGeoJSON(Session{ID: "s"}, []geo.Fix{fixAt(0, 0)})
	if _, ok := fc.Features[0].Geometry.(orb.Point); !ok {
		t.Fatalf("single fix should render as a point")
	}
}
