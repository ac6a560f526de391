package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("sku;name")...),
			expected: "sku;name",
		},
		{
			name:     "file without BOM",
			input:    []byte("sku;name"),
			expected: "sku;name",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "shorter than BOM",
			input:    []byte("a"),
			expected: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"ascii", []byte("sku;name"), "sku;name"},
		{"valid multibyte", []byte("名前;café"), "名前;café"},
		{"invalid byte", []byte{'a', 0xFF, 'b'}, "a?b"},
		{"truncated sequence at end", []byte{'a', 0xE5, 0x90}, "a??"},
		{"empty", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitAcrossReads(t *testing.T) {
	input := strings.Repeat("café;名前\n", 50)

	// OneByteReader forces every multi-byte rune to straddle reads.
	result, err := io.ReadAll(NewUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != input {
		t.Errorf("sanitizer altered valid input split across reads")
	}
}

func TestCountingReader(t *testing.T) {
	data := "0123456789"
	reader := NewCountingReader(strings.NewReader(data), int64(len(data)))

	buf := make([]byte, 4)
	if _, err := reader.Read(buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reader.BytesRead(); got != 4 {
		t.Errorf("BytesRead = %d, want 4", got)
	}
	if got := reader.Progress(); got != 40 {
		t.Errorf("Progress = %d, want 40", got)
	}

	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reader.BytesRead(); got != 10 {
		t.Errorf("BytesRead = %d, want 10", got)
	}
	if got := reader.Progress(); got != 100 {
		t.Errorf("Progress = %d, want 100", got)
	}
}

func TestCountingReader_UnknownTotal(t *testing.T) {
	reader := NewCountingReader(strings.NewReader("abc"), 0)
	_, _ = io.ReadAll(reader)
	if got := reader.Progress(); got != 0 {
		t.Errorf("Progress = %d, want 0 for unknown total", got)
	}
}

func TestWrapForStreaming(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("sku;na\xFFme\n")...)
	reader := WrapForStreaming(bytes.NewReader(input), int64(len(input)))

	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "sku;na?me\n" {
		t.Errorf("got %q", string(result))
	}
	if reader.BytesRead() != int64(len(result)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead(), len(result))
	}
}
