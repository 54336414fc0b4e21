// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridio

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/ncruces/go-strftime"
)

// TimePlaceholder is replaced in file name templates by the date of
// the first step of the file or, when no date can be computed, by the
// index of the first step.
const TimePlaceholder = "%t%"

// DefaultDateFormat is the strftime format used for TimePlaceholder.
const DefaultDateFormat = "%F-%HZ"

var units = map[string]time.Duration{
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"seconds": time.Second,
	"second":  time.Second,
}

var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// Date converts the time coordinate t to a date. Only the standard
// (Gregorian) calendars and units of the form "<unit> since <date>"
// are supported; ok is false otherwise.
func Date(t float64, calendar, timeUnits string) (date time.Time, ok bool) {
	switch calendar {
	case "", "standard", "gregorian", "proleptic_gregorian":
	default:
		return time.Time{}, false
	}
	parts := strings.SplitN(strings.TrimSpace(timeUnits), " since ", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	unit, ok := units[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return time.Time{}, false
	}
	ref := strings.TrimSuffix(strings.TrimSpace(parts[1]), "Z")
	for _, layout := range referenceLayouts {
		base, err := time.ParseInLocation(layout, ref, time.UTC)
		if err == nil {
			return base.Add(time.Duration(t * float64(unit))), true
		}
	}
	return time.Time{}, false
}

// FileName expands the time placeholder in template for a file whose
// first step is step. If the time coordinate of the step is known
// (hasTime) and convertible to a date, the date is formatted with the
// strftime format dateFormat; otherwise the step index is used.
func FileName(template, dateFormat string, step int64, t float64, hasTime bool, calendar, timeUnits string) string {
	if !strings.Contains(template, TimePlaceholder) {
		return template
	}
	repl := strconv.FormatInt(step, 10)
	if hasTime {
		if date, ok := Date(t, calendar, timeUnits); ok {
			if dateFormat == "" {
				dateFormat = DefaultDateFormat
			}
			repl = strftime.Format(dateFormat, date)
		}
	}
	return strings.Replace(template, TimePlaceholder, repl, -1)
}

func checkUnique(names []string) error {
	seen := make(map[string]int, len(names))
	for i, name := range names {
		if j, ok := seen[name]; ok {
			return errors.E(errors.Invalid, fmt.Sprintf("gridio: files %d and %d are both named %q", j, i, name))
		}
		seen[name] = i
	}
	return nil
}
