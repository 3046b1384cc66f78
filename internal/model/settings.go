package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LibrarySettings is the admin editable configuration document.  The JSON
// names match the keys persisted in library_settings.
type LibrarySettings struct {
	OpeningTime        string `json:"openingTime"`
	ClosingTime        string `json:"closingTime"`
	MinBookingDuration int    `json:"minBookingDuration"`
	MaxBookingDuration int    `json:"maxBookingDuration"`
	GraceMinutes       int    `json:"graceMinutes"`
	NoShowPenaltyXP    int    `json:"noShowPenaltyXP"`
}

// DefaultSettings are used until an admin stores something else.
func DefaultSettings() LibrarySettings {
	return LibrarySettings{
		OpeningTime:        "08:00",
		ClosingTime:        "22:00",
		MinBookingDuration: 15,
		MaxBookingDuration: 120,
		GraceMinutes:       5,
		NoShowPenaltyXP:    -50,
	}
}

// SettingsPatch is a partial update; nil fields keep their current value.
type SettingsPatch struct {
	OpeningTime        *string `json:"openingTime"`
	ClosingTime        *string `json:"closingTime"`
	MinBookingDuration *int    `json:"minBookingDuration"`
	MaxBookingDuration *int    `json:"maxBookingDuration"`
	GraceMinutes       *int    `json:"graceMinutes"`
	NoShowPenaltyXP    *int    `json:"noShowPenaltyXP"`
}

// Apply returns s with every non-nil field of p copied over.
func (s LibrarySettings) Apply(p SettingsPatch) LibrarySettings {
	if p.OpeningTime != nil {
		s.OpeningTime = strings.TrimSpace(*p.OpeningTime)
	}
	if p.ClosingTime != nil {
		s.ClosingTime = strings.TrimSpace(*p.ClosingTime)
	}
	if p.MinBookingDuration != nil {
		s.MinBookingDuration = *p.MinBookingDuration
	}
	if p.MaxBookingDuration != nil {
		s.MaxBookingDuration = *p.MaxBookingDuration
	}
	if p.GraceMinutes != nil {
		s.GraceMinutes = *p.GraceMinutes
	}
	if p.NoShowPenaltyXP != nil {
		s.NoShowPenaltyXP = *p.NoShowPenaltyXP
	}
	return s
}

// Validate rejects documents the lifecycle could not enforce.
func (s LibrarySettings) Validate() error {
	open, err := ParseClock(s.OpeningTime)
	if err != nil {
		return NewError(ErrValidation, "openingTime: "+err.Error())
	}
	closing, err := ParseClock(s.ClosingTime)
	if err != nil {
		return NewError(ErrValidation, "closingTime: "+err.Error())
	}
	switch {
	case closing <= open:
		return NewError(ErrValidation, "closingTime must be after openingTime")
	case s.MinBookingDuration <= 0:
		return NewError(ErrValidation, "minBookingDuration must be positive")
	case s.MaxBookingDuration < s.MinBookingDuration:
		return NewError(ErrValidation, "maxBookingDuration must not be below minBookingDuration")
	case s.GraceMinutes < 0:
		return NewError(ErrValidation, "graceMinutes must not be negative")
	case s.NoShowPenaltyXP > 0:
		return NewError(ErrValidation, "noShowPenaltyXP must not be positive")
	}
	return nil
}

// DurationAllowed reports whether minutes lies in [min, max].
func (s LibrarySettings) DurationAllowed(minutes int) bool {
	return minutes >= s.MinBookingDuration && minutes <= s.MaxBookingDuration
}

// Covers reports whether [start, end) fits the working hours.  The window is
// open at openingTime and closed from closingTime on: start must satisfy
// open <= start < close, end must not pass close, and both must fall on the
// same calendar day of the location the times are expressed in.
func (s LibrarySettings) Covers(start, end time.Time) bool {
	open, err := ParseClock(s.OpeningTime)
	if err != nil {
		return false
	}
	closing, err := ParseClock(s.ClosingTime)
	if err != nil {
		return false
	}
	if !end.After(start) {
		return false
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		return false
	}
	openSec, closeSec := open*60, closing*60
	startSec := secondOfDay(start)
	endSec := secondOfDay(end)
	return startSec >= openSec && startSec < closeSec && endSec <= closeSec
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(v string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", v)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 || len(m) != 2 {
		return 0, fmt.Errorf("%q has an invalid minute", v)
	}
	return hh*60 + mm, nil
}
