package usecase

import (
	"encoding/json"
	"math"

	"github.com/seatmap-services/common/models"
)

// Keys a patch can never change: identity, tree structure, derived values and
// the reserved default sections.
var venueFixedKeys = keySet("id", "venueId", "mappings", models.PatchSectionZones, models.PatchSectionSeats)

var zoneFixedKeys = keySet("id", "mappingId", "parentZoneId", "level", "hasSeats", "available", "seats", "children",
	models.PatchSectionZones, models.PatchSectionSeats)

var seatFixedKeys = keySet("id", "zoneId", "held", "holdExpiresAt", models.PatchSectionZones, models.PatchSectionSeats)

func applyVenuePatch(m *models.SeatMap, patch map[string]interface{}) {
	for k, v := range patch {
		if venueFixedKeys[k] {
			continue
		}
		switch k {
		case "name":
			setString(&m.Name, v)
		case "capacity":
			setInt(&m.Capacity, v)
		case "isActive":
			setBool(&m.IsActive, v)
		default:
			m.Attributes = putAttribute(m.Attributes, k, v)
		}
	}
}

func applyZonePatch(z *models.ZoneView, patch map[string]interface{}) {
	for k, v := range patch {
		if zoneFixedKeys[k] {
			continue
		}
		switch k {
		case "name":
			setString(&z.Name, v)
		case "code":
			setString(&z.Code, v)
		case "displayOrder":
			setInt(&z.DisplayOrder, v)
		case "zoneType":
			setString(&z.ZoneType, v)
		case "category":
			setString(&z.Category, v)
		case "capacity":
			setInt(&z.Capacity, v)
		case "isActive":
			setBool(&z.IsActive, v)
		default:
			z.Attributes = putAttribute(z.Attributes, k, v)
		}
	}
}

func applySeatPatch(s *models.SeatView, patch map[string]interface{}) {
	for k, v := range patch {
		if seatFixedKeys[k] {
			continue
		}
		switch k {
		case "reference":
			setString(&s.Reference, v)
		case "row":
			setString(&s.Row, v)
		case "number":
			setString(&s.Number, v)
		case "seatType":
			setString(&s.SeatType, v)
		case "status":
			if str, ok := v.(string); ok && models.SeatStatus(str).Valid() {
				s.Status = models.SeatStatus(str)
			}
		case "coordinates":
			if c, ok := v.(map[string]interface{}); ok {
				setFloat(&s.Coordinates.X, c["x"])
				setFloat(&s.Coordinates.Y, c["y"])
			}
		default:
			s.Attributes = putAttribute(s.Attributes, k, v)
		}
	}
}

// Values of the wrong type for a known field are ignored.

func setString(dst *string, v interface{}) {
	if s, ok := v.(string); ok {
		*dst = s
	}
}

func setBool(dst *bool, v interface{}) {
	if b, ok := v.(bool); ok {
		*dst = b
	}
}

func setInt(dst *int, v interface{}) {
	if f, ok := toFloat(v); ok && f == math.Trunc(f) {
		*dst = int(f)
	}
}

func setFloat(dst *float64, v interface{}) {
	if f, ok := toFloat(v); ok {
		*dst = f
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func putAttribute(attrs map[string]interface{}, k string, v interface{}) map[string]interface{} {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}
	attrs[k] = v
	return attrs
}

func keySet(keys ...string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
