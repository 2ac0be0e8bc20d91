// Package geo holds the geospatial point type and the coordinate
// normalization logic for incoming report payloads.
//
// Mobile clients have shipped several shapes for the same thing over time:
// top-level "lat"/"lng", "latitude"/"longitude", "coords_lat"/"coords_lng",
// and a nested "coords" object — which, when the body is a multipart form,
// arrives as a JSON-encoded string. Rather than rejecting all but one shape,
// we model the parsing as an ordered list of candidate keys tried in priority
// order; the first value that parses as a number wins.
//
// Parse failures are deliberately non-fatal. A report with a garbled
// coordinate is still a useful report — we store it without a point instead
// of bouncing the submission.
package geo

import (
	"encoding/json"
	"strconv"
)

// Point is a WGS84 coordinate pair. Longitude/latitude order is only
// significant at the storage boundary; in Go code we keep named fields.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Candidate keys, highest priority first. "lon" is a latecomer — one client
// build abbreviated longitude differently.
var (
	latKeys = []string{"coords_lat", "lat", "latitude"}
	lngKeys = []string{"coords_lng", "lng", "longitude", "lon"}
)

// ExtractCoords pulls a Point out of a decoded request payload.
//
// payload is the body after JSON decoding (values are string, float64,
// json.Number, or nested maps) or after multipart parsing (values are
// strings). Returns nil when no usable pair is present — callers treat that
// as "no coordinates supplied", never as an error.
func ExtractCoords(payload map[string]any) *Point {
	lat, latOK := firstNumber(payload, latKeys)
	lng, lngOK := firstNumber(payload, lngKeys)

	// Fall back to the nested "coords" field for whichever half is missing.
	// Inside the nested object the keys are always plain lat/lng; the alias
	// zoo only exists at the top level.
	if !latOK || !lngOK {
		if nested, ok := nestedCoords(payload["coords"]); ok {
			if !latOK {
				lat, latOK = toFloat(nested["lat"])
			}
			if !lngOK {
				lng, lngOK = toFloat(nested["lng"])
			}
		}
	}

	if !latOK || !lngOK {
		return nil
	}
	return &Point{Lat: lat, Lng: lng}
}

// firstNumber returns the first key whose value parses as a number.
// A present-but-unparseable value is skipped, not an error — the next
// alias gets its chance.
func firstNumber(payload map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// nestedCoords interprets the "coords" field, which may already be a decoded
// object or a JSON-encoded string (the multipart case).
func nestedCoords(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}
