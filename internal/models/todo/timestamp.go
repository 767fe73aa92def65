package todo

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout - формат меток времени в ответах: ISO-8601 с точностью до секунды, местное время без зоны
const Layout = "2006-01-02T15:04:05"

// FileLayout - формат в файле хранилища: UTC с явной зоной, чтобы порядок меток
// не зависел от перевода часов
const FileLayout = "2006-01-02T15:04:05Z07:00"

// форматы, которые принимаются при чтении помимо Layout
var fallbackLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
}

type Timestamp struct {
	t time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.In(time.Local).Truncate(time.Second)}
}

func Now() Timestamp {
	return NewTimestamp(time.Now())
}

func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.ParseInLocation(Layout, s, time.Local); err == nil {
		return NewTimestamp(t), nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q: expected layout %s", s, Layout)
}

func (ts Timestamp) Time() time.Time {
	return ts.t
}

func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

func (ts Timestamp) Before(other Timestamp) bool {
	return ts.t.Before(other.t)
}

func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.t.Equal(other.t)
}

func (ts Timestamp) String() string {
	if ts.t.IsZero() {
		return ""
	}
	return ts.t.Format(Layout)
}

// FileString возвращает метку в формате FileLayout
func (ts Timestamp) FileString() string {
	if ts.t.IsZero() {
		return ""
	}
	return ts.t.UTC().Format(FileLayout)
}

func (ts Timestamp) MarshalYAML() (interface{}, error) {
	return ts.FileString(), nil
}

func (ts *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timestamp must be a scalar", value.Line)
	}
	parsed, err := ParseTimestamp(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*ts = parsed
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
