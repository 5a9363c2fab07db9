package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Timestamp is an offset into a source video, stored in seconds.
// The wire form is H:MM:SS[.ff]; MM:SS is accepted for short clips.
type Timestamp float64

// ParseTimestamp converts an H:MM:SS[.ff] or MM:SS[.ff] string into a Timestamp
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q: expected H:MM:SS[.ff]", s)
	}

	var hours, minutes, seconds float64
	var err error

	withHours := len(parts) == 3
	if withHours {
		if hours, err = parseTimestampPart(parts[0], false); err != nil {
			return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
		}
		parts = parts[1:]
	}

	if minutes, err = parseTimestampPart(parts[0], false); err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	if seconds, err = parseTimestampPart(parts[1], true); err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", s, err)
	}

	if seconds >= 60 || (withHours && minutes >= 60) {
		return 0, fmt.Errorf("invalid timestamp %q: field out of range", s)
	}

	return Timestamp(hours*3600 + minutes*60 + seconds), nil
}

func parseTimestampPart(p string, fractional bool) (float64, error) {
	if p == "" {
		return 0, fmt.Errorf("empty field")
	}
	dots := 0
	for i := 0; i < len(p); i++ {
		switch c := p[i]; {
		case c >= '0' && c <= '9':
		case c == '.' && fractional && dots == 0 && i > 0 && i < len(p)-1:
			dots++
		case c == '.' && !fractional:
			return 0, fmt.Errorf("fraction only allowed in seconds")
		default:
			return 0, fmt.Errorf("unexpected character %q", c)
		}
	}
	return strconv.ParseFloat(p, 64)
}

// Seconds returns the offset in seconds
func (t Timestamp) Seconds() float64 {
	return float64(t)
}

// String formats the timestamp as H:MM:SS with up to two fractional digits
func (t Timestamp) String() string {
	hundredths := int64(float64(t)*100 + 0.5)
	h := hundredths / 360000
	m := (hundredths / 6000) % 60
	s := (hundredths / 100) % 60
	frac := hundredths % 100

	if frac == 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	if frac%10 == 0 {
		return fmt.Sprintf("%d:%02d:%02d.%d", h, m, s, frac/10)
	}
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, frac)
}
