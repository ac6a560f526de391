package core

import (
	"testing"
	"time"
)

func TestCleanNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123", "123"},
		{"-456", "-456"},
		{"123.45", "123.45"},
		{".99", ".99"},
		{"$1,234.56", "1234.56"},
		{"€99", "99"},
		{"(12.50)", "-12.50"},
		{"  42  ", "42"},
		{"1e3", "1e3"},
		{"abc", ""},
		{"12abc", ""},
		{"", ""},
		{"1.2.3", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanNumeric(tt.input); got != tt.want {
				t.Errorf("CleanNumeric(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      string
	}{
		{"2024-01-15", true, "2024-01-15"},
		{"2024/01/15", true, "2024-01-15"},
		{"1/15/2024", true, "2024-01-15"},
		{"01/15/2024", true, "2024-01-15"},
		{"Jan 15, 2024", true, "2024-01-15"},
		{"15 Jan 2024", true, "2024-01-15"},
		{"20240115", true, "2024-01-15"},
		{"1/15/24", true, "2024-01-15"},
		{"", false, ""},
		{"not a date", false, ""},
		{"2024-13-01", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	farFuture := (time.Now().Year() + TwoDigitYearPivot + 1) % 100
	input := "1/1/" + twoDigits(farFuture)

	got, ok := ParseDate(input)
	if !ok {
		t.Fatalf("ParseDate(%q) invalid", input)
	}
	if got.Year() > time.Now().Year() {
		t.Errorf("ParseDate(%q) year = %d, want previous century", input, got.Year())
	}
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      bool
	}{
		{"true", true, true},
		{"YES", true, true},
		{"y", true, true},
		{"1", true, true},
		{"false", true, false},
		{"No", true, false},
		{"0", true, false},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseBool(tt.input)
			if ok != tt.wantValid || got != tt.want {
				t.Errorf("ParseBool(%q) = %v, %v", tt.input, got, ok)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	color := AttributeDefinition{Code: "color", Type: FieldEnum, EnumValues: []string{"red", "blue"}}

	tests := []struct {
		name    string
		def     AttributeDefinition
		raw     string
		want    string
		wantErr bool
	}{
		{"text verbatim", AttributeDefinition{Type: FieldText}, "  Shirt ", "  Shirt ", false},
		{"numeric cleaned", AttributeDefinition{Type: FieldNumeric}, "$1,299.00", "1299.00", false},
		{"numeric invalid", AttributeDefinition{Type: FieldNumeric}, "cheap", "", true},
		{"numeric accounting negative", AttributeDefinition{Type: FieldNumeric}, "(5)", "-5", false},
		{"numeric not available", AttributeDefinition{Type: FieldNumeric}, "N/A", "", true},
		{"date canonical", AttributeDefinition{Type: FieldDate}, "Jan 2, 2025", "2025-01-02", false},
		{"date invalid", AttributeDefinition{Type: FieldDate}, "soon", "", true},
		{"bool canonical", AttributeDefinition{Type: FieldBool}, "Yes", "true", false},
		{"bool invalid", AttributeDefinition{Type: FieldBool}, "perhaps", "", true},
		{"enum canonical case", color, "RED", "red", false},
		{"enum invalid", color, "green", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.def, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeValue error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeValue = %q, want %q", got, tt.want)
			}
		})
	}
}
