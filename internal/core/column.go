package core

import "strings"

// ColumnSeparator splits a header token into code, locale and scope.
const ColumnSeparator = "-"

// ColumnSpec is a decoded header token. Empty Locale or Scope means absent.
type ColumnSpec struct {
	Code   string
	Locale string
	Scope  string
}

// DecodeColumn parses a composite header token:
//
//	price                       -> {code: price}
//	name-en_US                  -> {code: name, locale: en_US}
//	price-ecommerce             -> {code: price, scope: ecommerce}
//	description-en_US-ecommerce -> {code: description, locale: en_US, scope: ecommerce}
//
// With two segments, an underscore in the second one marks it as a locale.
// Tokens with more than three segments or with an empty segment are rejected.
func DecodeColumn(token string) (ColumnSpec, error) {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ColumnSeparator)

	for _, p := range parts {
		if p == "" {
			return ColumnSpec{}, &MalformedColumnError{
				Column:   token,
				Segments: len(parts),
				Reason:   "empty segment",
			}
		}
	}

	switch len(parts) {
	case 1:
		return ColumnSpec{Code: parts[0]}, nil
	case 2:
		if strings.Contains(parts[1], "_") {
			return ColumnSpec{Code: parts[0], Locale: parts[1]}, nil
		}
		return ColumnSpec{Code: parts[0], Scope: parts[1]}, nil
	case 3:
		return ColumnSpec{Code: parts[0], Locale: parts[1], Scope: parts[2]}, nil
	default:
		return ColumnSpec{}, &MalformedColumnError{
			Column:   token,
			Segments: len(parts),
			Reason:   "expected at most 3 dash-separated segments",
		}
	}
}

// DecodeHeader decodes every column of a header, returning the first failure.
func DecodeHeader(header []string) ([]ColumnSpec, error) {
	specs := make([]ColumnSpec, len(header))
	for i, col := range header {
		spec, err := DecodeColumn(col)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
	}
	return specs, nil
}
