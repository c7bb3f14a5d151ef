// Package services orchestrates the billing engine over the store: entry
// lifecycle, billing edits, configuration fixes, reconciliation, schedule
// views and recurring templates.
//
// This file implements the Strategy Pattern for recurring template dueness.
// Each frequency has its own checker deciding whether a template has to be
// materialised today.
package services

import (
	"fmt"

	"payplan/internal/calendar"
	"payplan/internal/core"
)

// DuenessChecker is the strategy interface for checking if a recurring
// template is due.
type DuenessChecker interface {
	// IsDue reports whether the template should be materialised on today,
	// given the date of its last materialised occurrence.
	IsDue(lastExecution, today, startDate core.Date) bool
}

// DailyChecker implements DuenessChecker for daily templates.
type DailyChecker struct{}

// IsDue returns true if last execution was before today.
func (DailyChecker) IsDue(lastExecution, today, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return lastExecution.Before(today)
}

// WeeklyChecker implements DuenessChecker for weekly templates.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since last execution.
func (WeeklyChecker) IsDue(lastExecution, today, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return calendar.DaysBetween(lastExecution, today) >= 7
}

// MonthlyChecker implements DuenessChecker for monthly templates.
type MonthlyChecker struct{}

// IsDue returns true if we're in a new month and have reached the target day.
func (MonthlyChecker) IsDue(lastExecution, today, startDate core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}

	// Already processed this month?
	if lastExecution.InMonth(today.Year(), today.Month()) {
		return false
	}

	target := clampDay(today.Year(), today.Month(), startDate.Day())
	return !today.Before(target)
}

// YearlyChecker implements DuenessChecker for yearly templates.
type YearlyChecker struct{}

// IsDue returns true if we're in a new year and have reached the target month and day.
func (YearlyChecker) IsDue(lastExecution, today, startDate core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}

	// Already processed this year?
	if lastExecution.Year() == today.Year() {
		return false
	}

	target := clampDay(today.Year(), startDate.Month(), startDate.Day())
	return !today.Before(target)
}

// duenessStrategies maps frequencies to their checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the dueness checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown repetition type: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
