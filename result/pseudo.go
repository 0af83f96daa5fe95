package result

import (
	"encoding/base64"
	"fmt"
	"time"
)

const pseudoTypeKey = "$reql_type$"

// ConvertPseudoTypes recursively converts wire pseudo-types embedded in a
// decoded JSON value to native Go types:
//   - TIME -> time.Time (epoch_time + timezone)
//   - BINARY -> []byte (base64-decoded data)
//
// Plain values and maps without the marker key are returned unchanged.
func ConvertPseudoTypes(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return convertMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = ConvertPseudoTypes(item)
		}
		return out
	default:
		return v
	}
}

// PseudoTime encodes t as the TIME pseudo-type map.
func PseudoTime(t time.Time) map[string]interface{} {
	_, offset := t.Zone()
	return map[string]interface{}{
		pseudoTypeKey: "TIME",
		"epoch_time":  float64(t.UnixNano()) / 1e9,
		"timezone":    offsetString(offset),
	}
}

func convertMap(m map[string]interface{}) interface{} {
	pt, ok := m[pseudoTypeKey]
	if !ok {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = ConvertPseudoTypes(v)
		}
		return out
	}
	switch pt {
	case "TIME":
		return convertTime(m)
	case "BINARY":
		return convertBinary(m)
	default:
		// unknown pseudo-types pass through untouched
		return m
	}
}

func convertTime(m map[string]interface{}) interface{} {
	epoch, ok := m["epoch_time"].(float64)
	if !ok {
		return m
	}
	loc := time.UTC
	if tz, ok := m["timezone"].(string); ok {
		if parsed, err := parseOffset(tz); err == nil {
			loc = parsed
		}
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).In(loc)
}

func convertBinary(m map[string]interface{}) interface{} {
	data, ok := m["data"].(string)
	if !ok {
		return m
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return m
	}
	return b
}

// parseOffset parses a "+HH:MM" / "-HH:MM" timezone offset.
func parseOffset(tz string) (*time.Location, error) {
	if tz == "" || tz == "Z" {
		return time.UTC, nil
	}
	var sign rune
	var h, m int
	if _, err := fmt.Sscanf(tz, "%c%02d:%02d", &sign, &h, &m); err != nil {
		return nil, fmt.Errorf("result: bad timezone %q: %w", tz, err)
	}
	offset := h*3600 + m*60
	if sign == '-' {
		offset = -offset
	} else if sign != '+' {
		return nil, fmt.Errorf("result: bad timezone %q", tz)
	}
	return time.FixedZone(tz, offset), nil
}

func offsetString(offset int) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}
