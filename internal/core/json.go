package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UnmarshalJSON accepts both "_id" and "id" for the user identifier.
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	return nil
}

// UnmarshalJSON decodes either a bare id string or a populated category.
func (r *CategoryRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*r = CategoryRef{}
		return nil
	case b[0] == '"':
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = CategoryRef{ID: id}
		return nil
	default:
		var c Category
		if err := json.Unmarshal(b, &c); err != nil {
			return err
		}
		*r = CategoryRef{ID: c.ID, Category: &c}
		return nil
	}
}

// MarshalJSON always sends the id; the API resolves it.
func (r CategoryRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// MarshalJSON sends the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// UnmarshalJSON accepts RFC 3339 timestamps and plain dates.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return ErrInvalidDate
}

// MonthLabel is the x-axis value of a trend point. The API sends either the
// month number or a label.
type MonthLabel string

func (m *MonthLabel) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = MonthLabel(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	if n >= 1 && n <= 12 {
		*m = MonthLabel(time.Month(n).String()[:3])
		return nil
	}
	*m = MonthLabel(strconv.Itoa(n))
	return nil
}
