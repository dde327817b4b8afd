package domain

import (
	"bytes"
	"encoding/json"
)

// Collaborator payloads are loosely typed. The decoders below never fail on a
// single bad field or element: the field is left empty and the consumers
// treat it as absent or malformed.

// UnmarshalJSON decodes one geocoder match. Non-string fields become empty.
func (m *GeocodeMatch) UnmarshalJSON(data []byte) error {
	*m = GeocodeMatch{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	m.Kind = looseString(raw["type"])
	m.RawLat = looseString(raw["lat"])
	m.RawLon = looseString(raw["lon"])
	m.DisplayName = looseString(raw["display_name"])
	return nil
}

// UnmarshalJSON decodes one feature. A geometry that is not an object leaves
// Geometry nil; a non-string type maps to GeometryOther.
func (f *RawGeometryFeature) UnmarshalJSON(data []byte) error {
	*f = RawGeometryFeature{}
	var raw struct {
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || isNull(raw.Geometry) {
		return nil
	}
	var g struct {
		Type        json.RawMessage `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw.Geometry, &g); err != nil {
		return nil
	}
	f.Geometry = &RawGeometry{Type: looseString(g.Type), Coordinates: g.Coordinates}
	return nil
}

// UnmarshalJSON decodes route metrics. Values that are not numbers are unknown.
func (p *RouteProperties) UnmarshalJSON(data []byte) error {
	*p = RouteProperties{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	p.Distance = looseFloat(raw["distance"])
	p.Time = looseFloat(raw["time"])
	return nil
}

// UnmarshalJSON decodes a routing response. Only a body that is not a JSON
// object is an error; a features member that is not an array counts as absent.
func (r *RouteResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Features   json.RawMessage  `json:"features"`
		Properties *RouteProperties `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = RouteResponse{Properties: raw.Properties}
	if len(raw.Features) > 0 {
		var features []RawGeometryFeature
		if err := json.Unmarshal(raw.Features, &features); err == nil {
			r.Features = features
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func looseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func looseFloat(raw json.RawMessage) *float64 {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
