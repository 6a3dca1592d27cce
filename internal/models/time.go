package models

import (
	"bytes"
	"fmt"
	"time"
)

// LocalDateTimeLayout is a zone-less timestamp with second precision.
const LocalDateTimeLayout = "2006-01-02T15:04:05"

// LocalDateTime renders as LocalDateTimeLayout and is read back as UTC.
// Parsing also accepts fractional seconds, which the catalog emits.
type LocalDateTime struct {
	time.Time
}

func NewLocalDateTime(t time.Time) LocalDateTime {
	return LocalDateTime{Time: t.UTC().Truncate(time.Second)}
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(LocalDateTimeLayout) + `"`), nil
}

func (t *LocalDateTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("local date time: expected string, got %s", data)
	}

	parsed, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", string(data[1:len(data)-1]), time.UTC)
	if err != nil {
		return fmt.Errorf("local date time: %w", err)
	}
	t.Time = parsed
	return nil
}
