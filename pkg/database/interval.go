package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Interval is a time.Duration that reads and writes as a Postgres INTERVAL
// column, rendered H:M:S.mmm on the way out and parsed back the same way.
type Interval time.Duration

// Value implements driver.Valuer, formatting the duration as H:M:S.mmm.
func (d Interval) Value() (driver.Value, error) {
	return formatInterval(time.Duration(d)), nil
}

// Scan implements sql.Scanner, parsing an H:M:S.mmm string back into a
// time.Duration.
func (d *Interval) Scan(value interface{}) error {
	if value == nil {
		*d = 0
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("database: cannot scan %T into Interval", value)
	}
	parsed, err := parseInterval(s)
	if err != nil {
		return err
	}
	*d = Interval(parsed)
	return nil
}

// Duration returns d as a plain time.Duration.
func (d Interval) Duration() time.Duration { return time.Duration(d) }

func formatInterval(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}

func parseInterval(s string) (time.Duration, error) {
	var h, m, sec, ms int64
	if _, err := fmt.Sscanf(s, "%d:%d:%d.%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("database: invalid interval %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(ms)*time.Millisecond, nil
}
