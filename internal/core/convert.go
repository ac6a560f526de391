package core

// convert.go normalizes raw cell text into canonical attribute values.
//
// Imported files come from spreadsheets and ERP exports, so the parsers are
// forgiving: currency symbols and thousands separators in numbers, accounting
// negatives "(12.50)", US/EU/ISO date layouts and yes/no style booleans are
// all accepted. The canonical output is what the store keeps.

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot: two-digit years landing more than this many years in
// the future are moved to the previous century.
var TwoDigitYearPivot = 20

var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
)

// CleanNumeric strips currency symbols and thousands separators and turns
// accounting negatives into a leading minus. Returns "" if the result is not
// a number.
func CleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return ""
	}
	return s
}

// ParseDate parses s trying unambiguous four-digit year layouts first.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// NormalizeValue validates raw against def and returns the canonical form.
// Text values are kept verbatim.
func NormalizeValue(def AttributeDefinition, raw string) (string, error) {
	switch def.Type {
	case FieldNumeric:
		clean := CleanNumeric(raw)
		if clean == "" {
			return "", fmt.Errorf("invalid number format")
		}
		return clean, nil
	case FieldDate:
		d, ok := ParseDate(raw)
		if !ok {
			return "", fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
		return d.Format("2006-01-02"), nil
	case FieldBool:
		b, ok := ParseBool(raw)
		if !ok {
			return "", fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
		if b {
			return "true", nil
		}
		return "false", nil
	case FieldEnum:
		v := strings.TrimSpace(raw)
		for _, ev := range def.EnumValues {
			if strings.EqualFold(ev, v) {
				return ev, nil
			}
		}
		return "", fmt.Errorf("value must be one of: %s", strings.Join(def.EnumValues, ", "))
	default:
		return raw, nil
	}
}
