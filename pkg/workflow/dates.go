package workflow

import (
	"strings"
	"time"
)

// DateLayout is how due dates are typed and shown.
const DateLayout = "02.01.2006"

// ParseDueDate reads DD.MM.YYYY or DD-MM-YYYY as midnight in loc. Dashes and
// dots are the same separator, so "12.05-2026" is accepted too. A lone "-"
// clears the due date and yields nil.
func ParseDueDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "-" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, strings.ReplaceAll(s, "-", "."), loc)
	if err != nil {
		return nil, validation("bad date %q: expected DD.MM.YYYY", s)
	}
	return &d, nil
}

// FormatDueDate renders a due date, or "-" when there is none.
func FormatDueDate(d *time.Time, loc *time.Location) string {
	if d == nil {
		return "-"
	}
	if loc != nil {
		return d.In(loc).Format(DateLayout)
	}
	return d.Format(DateLayout)
}
