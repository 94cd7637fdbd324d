package dialer

import (
	"errors"
	"testing"
	"time"

	"github.com/acme/predictive-dialer/internal/config"
	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

func TestCallingHoursAllows(t *testing.T) {
	hours, err := ParseCallingHours("UTC", []config.CallingWindow{{Day: "monday", Start: "09:00", End: "17:00"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	mondayMorning := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !hours.Allows(mondayMorning) {
		t.Fatalf("expected %v to be within calling hours", mondayMorning)
	}

	mondayNight := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	if hours.Allows(mondayNight) {
		t.Fatalf("expected %v to be outside calling hours", mondayNight)
	}

	tuesdayMorning := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	if hours.Allows(tuesdayMorning) {
		t.Fatalf("expected %v to be outside calling hours (wrong day)", tuesdayMorning)
	}
}

func TestCallingHoursSpanningMidnight(t *testing.T) {
	hours, err := ParseCallingHours("UTC", []config.CallingWindow{{Day: "mon", Start: "22:00", End: "02:00"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	night := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	if !hours.Allows(night) {
		t.Fatalf("expected %v to be within cross-midnight window", night)
	}

	earlyMorning := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	if !hours.Allows(earlyMorning) {
		t.Fatalf("expected %v to be within cross-midnight window", earlyMorning)
	}
}

func TestCallingHoursDailyAndTimeZone(t *testing.T) {
	if _, err := time.LoadLocation("Asia/Almaty"); err != nil {
		t.Skipf("time zone database unavailable: %v", err)
	}
	hours, err := ParseCallingHours("Asia/Almaty", []config.CallingWindow{{Day: "daily", Start: "09:00", End: "21:00"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !hours.Allows(time.Date(2024, 6, 5, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected daytime in Almaty to be allowed")
	}
	if hours.Allows(time.Date(2024, 6, 5, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected night in Almaty to be rejected")
	}
}

func TestCallingHoursEmptyAllowsEverything(t *testing.T) {
	hours, err := ParseCallingHours("", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !hours.Allows(time.Now()) {
		t.Fatalf("nil calling hours must allow dialing")
	}
}

func TestParseCallingHoursRejectsBadInput(t *testing.T) {
	cases := [][]config.CallingWindow{
		{{Day: "someday", Start: "09:00", End: "10:00"}},
		{{Day: "monday", Start: "9am", End: "10:00"}},
	}
	for _, windows := range cases {
		if _, err := ParseCallingHours("UTC", windows); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", windows, err)
		}
	}
}
