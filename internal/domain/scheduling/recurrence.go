package scheduling

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrInvalidInterval is returned for recurrence intervals other than 1, 3, 6 or 12 months.
var ErrInvalidInterval = errors.New("recurrence interval must be 1, 3, 6 or 12 months")

var validIntervals = map[int]bool{1: true, 3: true, 6: true, 12: true}

// ValidInterval reports whether months is an accepted recurrence interval.
func ValidInterval(months int) bool {
	return validIntervals[months]
}

// Occurrence is one date/time in a recurring series.
type Occurrence struct {
	Date time.Time `json:"date"`
	Time string    `json:"time"`
}

// OccurrenceCount is the number of occurrences in a one-year series,
// including the base occurrence: ceil(12 / intervalMonths).
func OccurrenceCount(intervalMonths int) int {
	return (12 + intervalMonths - 1) / intervalMonths
}

// Expand returns the occurrences that follow baseDate in a one-year series.
// The base occurrence is not emitted; the caller has already booked it.
// Each date is computed from baseDate directly, so clamping one month-end
// (Jan 31 -> Apr 30) does not drift later ones (Jul 31 stays Jul 31).
// The returned sequence holds no state and can be ranged over repeatedly.
func Expand(baseDate time.Time, baseTime string, intervalMonths int) (iter.Seq[Occurrence], error) {
	if !ValidInterval(intervalMonths) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, intervalMonths)
	}
	count := OccurrenceCount(intervalMonths)
	return func(yield func(Occurrence) bool) {
		for i := 1; i < count; i++ {
			occ := Occurrence{Date: AddMonths(baseDate, intervalMonths*i), Time: baseTime}
			if !yield(occ) {
				return
			}
		}
	}, nil
}

// AddMonths adds calendar months to t, clamping the day to the last valid
// day of the target month. The time of day and location are preserved.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
