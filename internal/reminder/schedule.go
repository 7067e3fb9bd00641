// Package reminder sends the weekly reminder messages to users who opted in.
package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot is one weekly delivery: at Hour:Minute on Weekday, the text stored
// under Message is sent.
type Slot struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
	Message string
}

// Schedule is a set of weekly slots in one location.
type Schedule struct {
	Slots    []Slot
	Location *time.Location
}

// DefaultSchedule sends the first reminder on Wednesday and the second on
// Thursday, both at 11:00 Tehran time.
func DefaultSchedule() Schedule {
	loc, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		loc = time.FixedZone("IRST", 3*3600+1800)
	}
	return Schedule{
		Slots: []Slot{
			{Weekday: time.Wednesday, Hour: 11, Message: "reminder_first"},
			{Weekday: time.Thursday, Hour: 11, Message: "reminder_second"},
		},
		Location: loc,
	}
}

// ParseSlot reads "wednesday 11:00 reminder_first". The message key is
// optional and defaults to reminder_first.
func ParseSlot(s string) (Slot, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 || len(parts) > 3 {
		return Slot{}, fmt.Errorf("reminder slot %q: want \"<weekday> <HH:MM> [message]\"", s)
	}
	wd, ok := weekdays[strings.ToLower(parts[0])]
	if !ok {
		return Slot{}, fmt.Errorf("reminder slot %q: unknown weekday %q", s, parts[0])
	}
	hh, mm, ok := strings.Cut(parts[1], ":")
	if !ok {
		return Slot{}, fmt.Errorf("reminder slot %q: bad time %q", s, parts[1])
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Slot{}, fmt.Errorf("reminder slot %q: bad hour %q", s, hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Slot{}, fmt.Errorf("reminder slot %q: bad minute %q", s, mm)
	}
	slot := Slot{Weekday: wd, Hour: h, Minute: m, Message: "reminder_first"}
	if len(parts) == 3 {
		slot.Message = parts[2]
	}
	return slot, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Next returns the first slot strictly after t and the instant it fires.
// ok is false when the schedule has no slots.
func (s Schedule) Next(t time.Time) (time.Time, Slot, bool) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)

	var best time.Time
	var bestSlot Slot
	found := false
	for _, slot := range s.Slots {
		days := (int(slot.Weekday) - int(local.Weekday()) + 7) % 7
		at := time.Date(local.Year(), local.Month(), local.Day()+days, slot.Hour, slot.Minute, 0, 0, loc)
		if !at.After(local) {
			at = at.AddDate(0, 0, 7)
		}
		if !found || at.Before(best) {
			best, bestSlot, found = at, slot, true
		}
	}
	return best, bestSlot, found
}
