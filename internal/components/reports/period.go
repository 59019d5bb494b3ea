package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
)

// Period is a reporting quarter.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// IsZero reports whether no period was selected.
func (p Period) IsZero() bool { return p.Year == 0 && p.Quarter == 0 }

// String formats the period as "2024-Q3".
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	if p.Quarter == 0 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%d-Q%d", p.Year, p.Quarter)
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	month := time.January
	if p.Quarter > 0 {
		month = time.Month((p.Quarter-1)*3 + 1)
	}
	return time.Date(p.Year, month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the period.
func (p Period) End() time.Time {
	if p.Quarter == 0 {
		return p.Start().AddDate(1, 0, 0)
	}
	return p.Start().AddDate(0, 3, 0)
}

// Closed reports whether the period ended before now.
func (p Period) Closed(now time.Time) bool {
	return !p.IsZero() && !now.Before(p.End())
}

// Validate checks the year and quarter ranges. A year with no quarter
// selects the whole year; a quarter needs a year.
func (p Period) Validate() error {
	var errs validate.Errors
	if p.Year != 0 && (p.Year < 2000 || p.Year > 2100) {
		errs.Add("year", "must be between 2000 and 2100")
	}
	if p.Quarter < 0 || p.Quarter > 4 {
		errs.Add("quarter", "must be between 1 and 4")
	}
	if p.Quarter != 0 && p.Year == 0 {
		errs.Add("year", "is required when a quarter is selected")
	}
	return errs.Err()
}

// ParsePeriod parses "2024-Q3", "2024Q3" or "2024". An empty string is the
// zero period.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Period{}, nil
	}
	yearPart, quarterPart, hasQuarter := strings.Cut(strings.ReplaceAll(s, "-", ""), "Q")
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, validate.Field("period", "must look like 2024-Q3")
	}
	p := Period{Year: year}
	if hasQuarter {
		q, err := strconv.Atoi(quarterPart)
		if err != nil {
			return Period{}, validate.Field("period", "must look like 2024-Q3")
		}
		p.Quarter = q
	}
	return p, p.Validate()
}

// PeriodFromQuery builds a period from separate year and quarter values.
func PeriodFromQuery(year, quarter string) (Period, error) {
	var p Period
	var errs validate.Errors
	if year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			errs.Add("year", "must be a number")
		}
		p.Year = y
	}
	if quarter != "" {
		q, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(quarter), "Q"))
		if err != nil {
			errs.Add("quarter", "must be a number")
		}
		p.Quarter = q
	}
	if err := errs.Err(); err != nil {
		return Period{}, err
	}
	return p, p.Validate()
}
