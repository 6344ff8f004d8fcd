package labs

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// HighRiskVelocity is the PSA rise in ng/mL per year above which a
	// patient is flagged.
	HighRiskVelocity = 0.75
	daysPerYear      = 365.25
	psaUnit          = "ng/ml"
)

var readingDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// Reading is one PSA value as recorded. Value may be a number or a string
// such as "4.2 ng/mL".
type Reading struct {
	Value any    `json:"value"`
	Date  string `json:"date"`
}

type Velocity struct {
	HasEnoughData bool    `json:"has_enough_data"`
	Velocity      float64 `json:"velocity"`
	IsHighRisk    bool    `json:"is_high_risk"`
	VelocityText  string  `json:"velocity_text"`
	LatestValue   float64 `json:"latest_value"`
	PreviousValue float64 `json:"previous_value"`
	TimeDiffYears float64 `json:"time_diff_years"`
}

// CalculateVelocity derives the PSA velocity from the two most recent
// readings. Readings are ordered by date, newest first, keeping input order
// for equal dates; readings with unparseable dates sort last. Any problem
// with the two chosen readings yields HasEnoughData=false rather than an
// error.
func CalculateVelocity(readings []Reading) Velocity {
	if len(readings) < 2 {
		return Velocity{}
	}

	type dated struct {
		r  Reading
		t  time.Time
		ok bool
	}
	ds := make([]dated, len(readings))
	for i, r := range readings {
		t, err := ParseReadingDate(r.Date)
		ds[i] = dated{r: r, t: t, ok: err == nil}
	}
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].ok != ds[j].ok {
			return ds[i].ok
		}
		return ds[i].t.After(ds[j].t)
	})

	latest, previous := ds[0], ds[1]
	if !latest.ok || !previous.ok {
		return Velocity{}
	}
	latestValue, err := ParseValue(latest.r.Value)
	if err != nil {
		return Velocity{}
	}
	previousValue, err := ParseValue(previous.r.Value)
	if err != nil {
		return Velocity{}
	}
	if !previous.t.Before(latest.t) {
		return Velocity{}
	}

	years := latest.t.Sub(previous.t).Hours() / 24 / daysPerYear
	v := (latestValue - previousValue) / years
	return Velocity{
		HasEnoughData: true,
		Velocity:      v,
		IsHighRisk:    v > HighRiskVelocity,
		VelocityText:  FormatVelocity(v),
		LatestValue:   latestValue,
		PreviousValue: previousValue,
		TimeDiffYears: years,
	}
}

// FormatVelocity renders v with two decimals and an explicit plus sign for
// rises.
func FormatVelocity(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.2f ng/mL/year", v)
	}
	return fmt.Sprintf("%.2f ng/mL/year", v)
}

// ParseValue extracts a finite PSA value from any numeric kind or a string
// with an optional ng/mL suffix in any case.
func ParseValue(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid PSA value %q", x)
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if strings.HasSuffix(strings.ToLower(s), psaUnit) {
			s = strings.TrimSpace(s[:len(s)-len(psaUnit)])
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid PSA value %q", x)
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		case rv.CanFloat():
			f = rv.Float()
		default:
			return 0, fmt.Errorf("unsupported PSA value type %T", v)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("PSA value is not finite")
	}
	return f, nil
}

// ParseReadingDate accepts a calendar date, RFC 3339 or a local timestamp.
func ParseReadingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range readingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
