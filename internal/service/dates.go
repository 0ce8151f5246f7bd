package service

import (
	"regexp"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
)

const dateLayout = "2006-01-02"

const invalidDateRangeMsg = "Parâmetros dataInicial e dataFinal são obrigatórios e devem estar no formato aaaa-mm-dd"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// businessZone is the UTC-04:00 offset the Zoop business day is anchored to.
var businessZone = time.FixedZone("UTC-4", -4*60*60)

// ParseDateRange validates both bounds as real YYYY-MM-DD calendar dates.
func ParseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, ok := parseDate(startDate)
	if !ok {
		return time.Time{}, time.Time{}, &domain.ErrValidation{Message: invalidDateRangeMsg}
	}
	end, ok := parseDate(endDate)
	if !ok {
		return time.Time{}, time.Time{}, &domain.ErrValidation{Message: invalidDateRangeMsg}
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, bool) {
	if !datePattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}

// zoopWindow turns calendar dates into the [04:00Z of start, 03:59:59.999Z of end+1) window.
func zoopWindow(start, end time.Time) (time.Time, time.Time) {
	from := start.Add(4 * time.Hour)
	to := end.AddDate(0, 0, 1).Add(4*time.Hour - time.Millisecond)
	return from, to
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

// parseInstant parses the timestamps providers send; failure yields the zero time.
func parseInstant(s string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// calendarDate renders s as YYYY-MM-DD in its own offset, or returns s unchanged.
func calendarDate(s string) string {
	if t, ok := parseInstant(s); ok {
		return t.Format(dateLayout)
	}
	return s
}
