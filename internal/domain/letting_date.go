package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// LettingDate is either a resolved calendar date or the unparsed source text.
type LettingDate struct {
	Date time.Time
	Raw  string
}

// ParseLettingDate resolves MM/DD/YYYY, then YYYY-MM-DD. Anything else is kept verbatim.
func ParseLettingDate(value string) LettingDate {
	if t, ok := parseSlashDate(value); ok {
		return LettingDate{Date: t, Raw: value}
	}
	if t, err := time.Parse(isoDate, value); err == nil {
		return LettingDate{Date: t, Raw: value}
	}
	return LettingDate{Raw: value}
}

// Resolved reports whether the value carries a calendar date.
func (d LettingDate) Resolved() bool {
	return !d.Date.IsZero()
}

func (d LettingDate) String() string {
	if d.Resolved() {
		return d.Date.Format(isoDate)
	}
	return d.Raw
}

func (d LettingDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *LettingDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("letting date: %w", err)
	}
	*d = ParseLettingDate(s)
	return nil
}

// Value stores the date as text so unresolved values survive a round trip.
func (d LettingDate) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *LettingDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = LettingDate{}
	case string:
		*d = ParseLettingDate(v)
	case []byte:
		*d = ParseLettingDate(string(v))
	case time.Time:
		*d = LettingDate{Date: v.UTC(), Raw: v.Format(isoDate)}
	default:
		return fmt.Errorf("letting date: unsupported type %T", src)
	}
	return nil
}

func parseSlashDate(value string) (time.Time, bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	return civilDate(nums[2], nums[0], nums[1])
}

// civilDate rejects values time.Date would silently normalize (13/40/2025).
func civilDate(year, month, day int) (time.Time, bool) {
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
