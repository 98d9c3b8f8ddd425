package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedTime is the result of a successful time-expression parse: the resolved
// absolute instant plus the remaining free text (the reminder body), with its
// original case and spacing preserved.
type ParsedTime struct {
	When time.Time
	Text string
}

// The trigger word and unit/month tokens match case-insensitively; the
// trailing reminder text is captured from the original input untouched.
var (
	relativePattern = regexp.MustCompile(`(?i)^\s*(?:напомни(?:\s+мне)?\s+)?через\s+(\d+)\s+(\S+)\s+(.+)$`)
	absolutePattern = regexp.MustCompile(`(?i)^\s*напомни(?:\s+мне)?\s+(\d{1,2})\s+([а-яё]+)\s+в\s+(\d{1,2})[.:](\d{2})\s+(.+)$`)
)

// monthsGenitive maps the Russian genitive month names used in phrases like
// "2 декабря" to month numbers.
var monthsGenitive = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

// unitDuration resolves a unit token by stem, so any grammatical form matches
// ("секунду", "секунды", "минут", "часа", "часов", ...).
func unitDuration(token string) (time.Duration, bool) {
	t := strings.ToLower(token)
	switch {
	case strings.Contains(t, "секунд"):
		return time.Second, true
	case strings.Contains(t, "минут"):
		return time.Minute, true
	case strings.Contains(t, "час"):
		return time.Hour, true
	}
	return 0, false
}

// ParseRelative parses "напомни через 2 минуты выпить воды" or the bare
// "через 10 минут проверить чайник". Returns nil when the text does not match
// the grammar.
func ParseRelative(text string, now time.Time) *ParsedTime {
	m := relativePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}

	unit, ok := unitDuration(m[2])
	if !ok {
		return nil
	}

	return &ParsedTime{
		When: now.Add(time.Duration(amount) * unit),
		Text: strings.TrimSpace(m[3]),
	}
}

// ParseAbsolute parses "напомни 2 декабря в 15.00 посмотреть задачи". The year
// defaults to the current one; if that instant already passed, it rolls
// forward exactly one year. A day/month combination the calendar rejects is a
// parse failure. Returns nil when the text does not match the grammar.
func ParseAbsolute(text string, now time.Time) *ParsedTime {
	m := absolutePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	day, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])

	month, ok := monthsGenitive[strings.ToLower(m[2])]
	if !ok {
		return nil
	}

	when, ok := makeDate(now.Year(), month, day, hour, minute)
	if !ok {
		return nil
	}
	if when.Before(now) {
		when, ok = makeDate(now.Year()+1, month, day, hour, minute)
		if !ok {
			return nil
		}
	}

	return &ParsedTime{
		When: when,
		Text: strings.TrimSpace(m[5]),
	}
}

// makeDate builds a local instant and rejects inputs time.Date would silently
// normalize, such as 31 ноября or hour 25.
func makeDate(year int, month time.Month, day, hour, minute int) (time.Time, bool) {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.Local)
	if t.Year() != year || t.Month() != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, false
	}
	return t, true
}
