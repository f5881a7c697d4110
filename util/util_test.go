package util

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("GetVersion() returned empty string")
	}
	if strings.ContainsAny(version, " \n\t") {
		t.Errorf("Version should be trimmed, got %q", version)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	nameAndVersion := GetNameAndVersion()
	if !strings.Contains(nameAndVersion, Name) {
		t.Errorf("Expected name in %q", nameAndVersion)
	}
	if !strings.Contains(nameAndVersion, GetVersion()) {
		t.Errorf("Expected version in %q", nameAndVersion)
	}
}

func TestStripHtml(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "paragraphs become spaces",
			input:    "<p>first</p><p>second</p>",
			expected: "first second",
		},
		{
			name:     "line breaks become spaces",
			input:    "first<br>second<br/>third",
			expected: "first second third",
		},
		{
			name:     "tags with attributes stripped",
			input:    `ping <span class="h-card"><a href="https://example.org/@alice">@alice</a></span>`,
			expected: "ping @alice",
		},
		{
			name:     "entities unescaped",
			input:    "fish &amp; chips &lt;3",
			expected: "fish & chips <3",
		},
		{
			name:     "whitespace folded and trimmed",
			input:    "  too \n\n many    spaces  ",
			expected: "too many spaces",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripHtml(tt.input)
			if result != tt.expected {
				t.Errorf("StripHtml(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestContentToSearch(t *testing.T) {
	got := ContentToSearch("<p>Hello <b>World</b></p>")
	if got != "hello world" {
		t.Errorf("ContentToSearch should lowercase and strip, got %q", got)
	}

	// The same note rendered with different markup normalizes identically.
	a := ContentToSearch("<p>Breaking News!</p>")
	b := ContentToSearch("Breaking   News!")
	if a != b {
		t.Errorf("Normalization should converge, got %q vs %q", a, b)
	}
}

func TestPrettyPrint(t *testing.T) {
	type sample struct {
		Field string
	}
	result := PrettyPrint(sample{Field: "value"})
	if !strings.Contains(result, "value") {
		t.Errorf("PrettyPrint should contain field value, got %q", result)
	}
}
