package xsd

import (
	"regexp"
	"strconv"
	"time"
)

type temporalField uint8

const (
	fieldYear temporalField = iota
	fieldMonth
	fieldDay
	fieldHour
	fieldMinute
	fieldSecond
)

type temporalLayout struct {
	pattern *regexp.Regexp
	fields  []temporalField
}

const (
	yearExpr     = `(-?(?:[1-9]\d{4,}|\d{4}))`
	timezoneExpr = `(Z|[+-]\d{2}:\d{2})?`
	timeExpr     = `(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)`
)

// The timezone is always the last submatch.
var temporalLayouts = map[string]temporalLayout{
	"dateTime": {
		pattern: regexp.MustCompile(`^` + yearExpr + `-(\d{2})-(\d{2})T` + timeExpr + timezoneExpr + `$`),
		fields:  []temporalField{fieldYear, fieldMonth, fieldDay, fieldHour, fieldMinute, fieldSecond},
	},
	"date": {
		pattern: regexp.MustCompile(`^` + yearExpr + `-(\d{2})-(\d{2})` + timezoneExpr + `$`),
		fields:  []temporalField{fieldYear, fieldMonth, fieldDay},
	},
	"time": {
		pattern: regexp.MustCompile(`^` + timeExpr + timezoneExpr + `$`),
		fields:  []temporalField{fieldHour, fieldMinute, fieldSecond},
	},
	"gYearMonth": {
		pattern: regexp.MustCompile(`^` + yearExpr + `-(\d{2})` + timezoneExpr + `$`),
		fields:  []temporalField{fieldYear, fieldMonth},
	},
	"gYear": {
		pattern: regexp.MustCompile(`^` + yearExpr + timezoneExpr + `$`),
		fields:  []temporalField{fieldYear},
	},
	"gMonthDay": {
		pattern: regexp.MustCompile(`^--(\d{2})-(\d{2})` + timezoneExpr + `$`),
		fields:  []temporalField{fieldMonth, fieldDay},
	},
	"gDay": {
		pattern: regexp.MustCompile(`^---(\d{2})` + timezoneExpr + `$`),
		fields:  []temporalField{fieldDay},
	},
	"gMonth": {
		pattern: regexp.MustCompile(`^--(\d{2})` + timezoneExpr + `$`),
		fields:  []temporalField{fieldMonth},
	},
}

// temporal is a parsed date/time value. Fields absent from the lexical form
// keep the reference values of 1972-01-01T00:00:00, a leap year, so that
// --02-29 is accepted.
type temporal struct {
	year   int64
	month  int
	day    int
	hour   int
	minute int
	second float64
	hasTZ  bool
	offset int // minutes east of UTC
}

func parseTemporal(kind, value string) (temporal, error) {
	layout, ok := temporalLayouts[kind]
	if !ok {
		return temporal{}, invalidLexical(value, kind)
	}
	m := layout.pattern.FindStringSubmatch(value)
	if m == nil {
		return temporal{}, invalidLexical(value, kind)
	}

	t := temporal{year: 1972, month: 1, day: 1}
	for i, field := range layout.fields {
		s := m[i+1]
		switch field {
		case fieldYear:
			year, err := strconv.ParseInt(s, 10, 64)
			if err != nil || year == 0 {
				return temporal{}, invalidLexical(value, kind)
			}
			t.year = year
		case fieldMonth:
			t.month, _ = strconv.Atoi(s)
		case fieldDay:
			t.day, _ = strconv.Atoi(s)
		case fieldHour:
			t.hour, _ = strconv.Atoi(s)
		case fieldMinute:
			t.minute, _ = strconv.Atoi(s)
		case fieldSecond:
			t.second, _ = strconv.ParseFloat(s, 64)
		}
	}

	if tz := m[len(m)-1]; tz != "" {
		t.hasTZ = true
		if tz != "Z" {
			hours, _ := strconv.Atoi(tz[1:3])
			minutes, _ := strconv.Atoi(tz[4:6])
			if hours > 14 || minutes > 59 || hours == 14 && minutes != 0 {
				return temporal{}, invalidLexical(value, kind)
			}
			t.offset = hours*60 + minutes
			if tz[0] == '-' {
				t.offset = -t.offset
			}
		}
	}

	if t.month < 1 || t.month > 12 || t.day < 1 || t.day > daysIn(t.year, t.month) {
		return temporal{}, invalidLexical(value, kind)
	}
	if t.minute > 59 || t.second >= 60 {
		return temporal{}, invalidLexical(value, kind)
	}
	if t.hour > 24 || t.hour == 24 && (t.minute != 0 || t.second != 0) {
		return temporal{}, invalidLexical(value, kind)
	}
	return t, nil
}

func daysIn(year int64, month int) int {
	switch month {
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// instant maps t onto a UTC time. Values without a timezone are treated as
// UTC.
func (t temporal) instant() time.Time {
	whole := int(t.second)
	nanos := int((t.second - float64(whole)) * 1e9)
	utc := time.Date(int(t.year), time.Month(t.month), t.day, t.hour, t.minute, whole, nanos, time.UTC)
	return utc.Add(-time.Duration(t.offset) * time.Minute)
}

func compareTemporal(kind, a, b string) (int, error) {
	ta, err := parseTemporal(kind, a)
	if err != nil {
		return 0, err
	}
	tb, err := parseTemporal(kind, b)
	if err != nil {
		return 0, err
	}
	return ta.instant().Compare(tb.instant()), nil
}
