package cmd

import "testing"

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{name: "short string is unchanged", input: "list files", limit: 80, expected: "list files"},
		{name: "exact length is unchanged", input: "abcde", limit: 5, expected: "abcde"},
		{name: "long string is truncated with ellipsis", input: "this description is much longer than the limit allows for display", limit: 20, expected: "this description is…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateDescription(tt.input, tt.limit)
			if got != tt.expected {
				t.Errorf("truncateDescription(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
			}
		})
	}
}
