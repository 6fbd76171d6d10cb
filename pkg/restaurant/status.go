package restaurant

import (
	"fmt"
	"strings"
)

const statusPrefix = "Likely open for reservation after "

// ReservationStatus records whether the scraped calendar reaches past After.
// LikelyOpen is false when the calendar ends on or before After, meaning
// bookings for the trip have not opened yet.
type ReservationStatus struct {
	After      string
	LikelyOpen bool
}

// String renders the status in the form stored by the cache files.
func (s ReservationStatus) String() string {
	v := "False"
	if s.LikelyOpen {
		v = "True"
	}
	return fmt.Sprintf("%s%s: %s", statusPrefix, s.After, v)
}

// IsZero reports whether no status has been recorded.
func (s ReservationStatus) IsZero() bool {
	return s.After == "" && !s.LikelyOpen
}

// Terminal reports whether the status already answers the question for a trip
// starting on start: the calendar was checked at or past start and had nothing bookable.
func (s ReservationStatus) Terminal(start string) bool {
	return !s.LikelyOpen && s.After != "" && s.After >= start
}

// ParseReservationStatus parses the cached text form.
func ParseReservationStatus(text string) (ReservationStatus, error) {
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, statusPrefix)
	if !ok {
		return ReservationStatus{}, fmt.Errorf("reservation status %q: missing prefix", text)
	}
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return ReservationStatus{}, fmt.Errorf("reservation status %q: missing value", text)
	}
	after := strings.TrimSpace(rest[:i])
	if after == "" {
		return ReservationStatus{}, fmt.Errorf("reservation status %q: missing date", text)
	}
	var open bool
	switch strings.ToLower(strings.TrimSpace(rest[i+1:])) {
	case "true":
		open = true
	case "false":
		open = false
	default:
		return ReservationStatus{}, fmt.Errorf("reservation status %q: value is not a boolean", text)
	}
	return ReservationStatus{After: after, LikelyOpen: open}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s ReservationStatus) MarshalText() ([]byte, error) {
	if s.IsZero() {
		return []byte{}, nil
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ReservationStatus) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = ReservationStatus{}
		return nil
	}
	parsed, err := ParseReservationStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
