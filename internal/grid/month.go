package grid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth accepts "YYYYMM" (catalogue period form) or "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	var digits string
	switch {
	case len(s) == 6:
		digits = s
	case len(s) == 7 && s[4] == '-':
		digits = s[:4] + s[5:]
	default:
		return Month{}, fmt.Errorf("grid: invalid month %q", s)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Month{}, fmt.Errorf("grid: invalid month %q", s)
		}
	}
	y, _ := strconv.Atoi(digits[:4])
	m, _ := strconv.Atoi(digits[4:])
	if m < 1 || m > 12 {
		return Month{}, fmt.Errorf("grid: invalid month %q: month out of range", s)
	}
	return Month{Year: y, Month: time.Month(m)}, nil
}

// AddMonths returns m shifted by n months (n may be negative).
func (m Month) AddMonths(n int) Month {
	idx := m.index() + n
	return Month{Year: floorDiv(idx, 12), Month: time.Month(idx-floorDiv(idx, 12)*12) + 1}
}

// MonthsSince returns the number of months from start to m.
func (m Month) MonthsSince(start Month) int {
	return m.index() - start.index()
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	return m.index() < o.index()
}

// Compact formats m as YYYYMM.
func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// UnmarshalText lets Month be used directly in YAML and JSON configs.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText formats m as YYYY-MM.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Period is an inclusive span of months, as used in catalogue requests
// ("185001-200512").
type Period struct {
	Start Month
	End   Month
}

// ParsePeriod parses the catalogue form "YYYYMM-YYYYMM".
func ParsePeriod(s string) (Period, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(from) != 6 || len(to) != 6 {
		return Period{}, fmt.Errorf("grid: invalid period %q", s)
	}
	start, err := ParseMonth(from)
	if err != nil {
		return Period{}, err
	}
	end, err := ParseMonth(to)
	if err != nil {
		return Period{}, err
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("grid: invalid period %q: end before start", s)
	}
	return Period{Start: start, End: end}, nil
}

// MustPeriod is ParsePeriod for package-level constants; it panics on error.
func MustPeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Len is the number of months in p, both ends included.
func (p Period) Len() int {
	return p.End.MonthsSince(p.Start) + 1
}

// String formats p in the catalogue form.
func (p Period) String() string {
	return p.Start.Compact() + "-" + p.End.Compact()
}

// Contains reports whether r lies entirely within p.
func (p Period) Contains(r MonthRange) bool {
	return !r.From.Before(p.Start) && !p.End.Before(r.To)
}

// MonthRange is an inclusive calendar span used to pick a climatology
// window out of a series, independent of where that series starts.
type MonthRange struct {
	From Month `yaml:"from" json:"from"`
	To   Month `yaml:"to" json:"to"`
}

// Len is the number of months in r, both ends included.
func (r MonthRange) Len() int {
	return r.To.MonthsSince(r.From) + 1
}

func (r MonthRange) String() string {
	return r.From.String() + ".." + r.To.String()
}

// Resolve converts r to offsets into a series whose first grid is start.
// The result is not checked against the series length; use Window.Check.
func (r MonthRange) Resolve(start Month) Window {
	return Window{
		Start: r.From.MonthsSince(start),
		End:   r.To.MonthsSince(start) + 1,
	}
}
