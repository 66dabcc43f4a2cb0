package yahoo

import (
	"bytes"
	"encoding/json"
)

// rawValue decodes Yahoo's {"raw": 1.2, "fmt": "1.20"} wrapper as well as
// bare numbers. Empty objects and nulls leave it invalid.
type rawValue struct {
	Raw   float64
	Valid bool
}

func (v *rawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '{' {
		var wrapped struct {
			Raw *float64 `json:"raw"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		if wrapped.Raw != nil {
			v.Raw, v.Valid = *wrapped.Raw, true
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// Strings such as "Infinity" carry no usable value.
		return nil
	}
	v.Raw, v.Valid = f, true
	return nil
}

// module is one quoteSummary module: a flat object of wrapped values with
// the occasional string.
type module map[string]json.RawMessage

func (m module) number(key string) (float64, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	var v rawValue
	if err := json.Unmarshal(raw, &v); err != nil || !v.Valid {
		return 0, false
	}
	return v.Raw, true
}

func (m module) text(key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}
