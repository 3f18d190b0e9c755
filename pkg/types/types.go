package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Mentor is decoded from either a bare name string or an object carrying a name.
// The backend uses both shapes depending on the endpoint.
type Mentor struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (m *Mentor) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*m = Mentor{}
		return nil
	}
	if s[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*m = Mentor{Name: name}
		return nil
	}
	type plain Mentor
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = Mentor(p)
	return nil
}

// Teacher is the populated lecture teacher reference.
type Teacher struct {
	User *PersonName `json:"user,omitempty"`
}

// PersonName holds a first/last name pair.
type PersonName struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Timestamp is an optional RFC 3339 instant. The zero value means "not scheduled".
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	// Unparseable values are treated as unscheduled rather than failing the whole payload.
	t.Time = time.Time{}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Set reports whether the timestamp carries a value.
func (t Timestamp) Set() bool { return !t.IsZero() }

// At builds a Timestamp from a time value.
func At(tm time.Time) Timestamp { return Timestamp{Time: tm} }

// firstNonEmpty returns the first non-blank string.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
