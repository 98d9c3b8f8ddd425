package intent

import (
	"testing"
	"time"
)

func TestParseRelative(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		input    string
		wantText string
		wantWhen time.Time
	}{
		{
			name:     "minutes with trigger",
			input:    "напомни через 2 минуты выпить воды",
			wantText: "выпить воды",
			wantWhen: now.Add(2 * time.Minute),
		},
		{
			name:     "bare leading trigger",
			input:    "через 10 минут проверить чайник",
			wantText: "проверить чайник",
			wantWhen: now.Add(10 * time.Minute),
		},
		{
			name:     "seconds",
			input:    "напомни через 30 секунд снять чайник",
			wantText: "снять чайник",
			wantWhen: now.Add(30 * time.Second),
		},
		{
			name:     "hours with мне",
			input:    "напомни мне через 3 часа позвонить маме",
			wantText: "позвонить маме",
			wantWhen: now.Add(3 * time.Hour),
		},
		{
			name:     "mixed case trigger",
			input:    "Напомни Через 5 минут сделать перерыв",
			wantText: "сделать перерыв",
			wantWhen: now.Add(5 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRelative(tt.input, now)
			if got == nil {
				t.Fatalf("Expected a parse result for %q, got nil", tt.input)
			}
			if !got.When.Equal(tt.wantWhen) {
				t.Errorf("Expected when %v, got %v", tt.wantWhen, got.When)
			}
			if got.Text != tt.wantText {
				t.Errorf("Expected text %q, got %q", tt.wantText, got.Text)
			}
		})
	}
}

func TestParseRelativeRejects(t *testing.T) {
	now := time.Now()

	inputs := []string{
		"напомни выпить воды",
		"через пару минут выпить воды",
		"через 5 дней выпить воды",
		"через 5 минут",
		"просто поговорим",
	}

	for _, input := range inputs {
		if got := ParseRelative(input, now); got != nil {
			t.Errorf("Expected nil for %q, got %+v", input, got)
		}
	}
}

func TestParseRelativePreservesCase(t *testing.T) {
	now := time.Now()

	got := ParseRelative("напомни через 2 минуты Позвонить Маме", now)
	if got == nil {
		t.Fatal("Expected a parse result, got nil")
	}
	if got.Text != "Позвонить Маме" {
		t.Errorf("Expected original case preserved, got %q", got.Text)
	}
}

func TestParseAbsolute(t *testing.T) {
	// June 10 2025, so December 2 is still ahead this year
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		input    string
		wantText string
		wantWhen time.Time
	}{
		{
			name:     "dot separator",
			input:    "напомни 2 декабря в 15.00 посмотреть задачи",
			wantText: "посмотреть задачи",
			wantWhen: time.Date(2025, time.December, 2, 15, 0, 0, 0, time.Local),
		},
		{
			name:     "colon separator with мне",
			input:    "напомни мне 1 сентября в 9:30 собрать рюкзак",
			wantText: "собрать рюкзак",
			wantWhen: time.Date(2025, time.September, 1, 9, 30, 0, 0, time.Local),
		},
		{
			name:     "passed date rolls to next year",
			input:    "напомни 8 марта в 10:00 купить цветы",
			wantText: "купить цветы",
			wantWhen: time.Date(2026, time.March, 8, 10, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAbsolute(tt.input, now)
			if got == nil {
				t.Fatalf("Expected a parse result for %q, got nil", tt.input)
			}
			if !got.When.Equal(tt.wantWhen) {
				t.Errorf("Expected when %v, got %v", tt.wantWhen, got.When)
			}
			if got.Text != tt.wantText {
				t.Errorf("Expected text %q, got %q", tt.wantText, got.Text)
			}
		})
	}
}

func TestParseAbsoluteRejects(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	inputs := []string{
		"2 декабря в 15:00 посмотреть задачи",    // no trigger word
		"напомни 2 смарта в 15:00 задачи",        // unknown month
		"напомни 31 ноября в 15:00 задачи",       // day does not exist
		"напомни 2 декабря в 25:00 задачи",       // hour out of range
		"напомни 2 декабря в 15:00",              // no reminder text
		"напомни завтра в 15:00 позвонить маме",  // word instead of day number
	}

	for _, input := range inputs {
		if got := ParseAbsolute(input, now); got != nil {
			t.Errorf("Expected nil for %q, got %+v", input, got)
		}
	}
}

func TestParseAbsoluteRollsOverFebruary29(t *testing.T) {
	// 2025 has no Feb 29; the rollover target 2026 does not either, so the
	// whole parse must fail rather than land on March 1.
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	if got := ParseAbsolute("напомни 29 февраля в 10:00 проверить календарь", now); got != nil {
		t.Errorf("Expected nil for nonexistent date, got %+v", got)
	}
}

func TestUnitDurationForms(t *testing.T) {
	tests := []struct {
		token string
		want  time.Duration
	}{
		{"секунду", time.Second},
		{"секунды", time.Second},
		{"секунд", time.Second},
		{"минуту", time.Minute},
		{"минуты", time.Minute},
		{"минут", time.Minute},
		{"час", time.Hour},
		{"часа", time.Hour},
		{"часов", time.Hour},
	}

	for _, tt := range tests {
		got, ok := unitDuration(tt.token)
		if !ok {
			t.Errorf("Expected %q to resolve, got no match", tt.token)
			continue
		}
		if got != tt.want {
			t.Errorf("Expected %v for %q, got %v", tt.want, tt.token, got)
		}
	}

	if _, ok := unitDuration("дней"); ok {
		t.Error("Expected дней to be rejected")
	}
}
