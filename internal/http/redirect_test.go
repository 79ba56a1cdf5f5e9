package http

import "testing"

func TestIsValidRedirectPath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		valid bool
	}{
		// Valid paths
		{"root", "/", true},
		{"simple path", "/datasets", true},
		{"nested path", "/datasets/123", true},
		{"path with query", "/datasets?page=1", true},
		{"path with fragment", "/runs#latest", true},
		{"double encoded is literal", "/%252f%252fevil.com", true},

		{"empty string", "", false},

		// Absolute URLs and open redirect attempts
		{"http URL", "http://evil.com", false},
		{"https URL", "https://evil.com", false},
		{"protocol-relative", "//evil.com", false},
		{"protocol-relative with path", "//evil.com/path", false},
		{"encoded double slash", "/%2f%2fevil.com", false},
		{"encoded slash", "/%2fevil.com", false},

		{"no leading slash", "datasets", false},
		{"relative path", "datasets/123", false},

		{"javascript protocol", "javascript:alert(1)", false},
		{"data protocol", "data:text/html,<script>", false},

		// Browsers normalise backslashes to slashes
		{"backslash", "\\\\evil.com", false},
		{"mixed slashes", "/\\evil.com", false},
		{"encoded backslash", "/%5cevil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isValidRedirectPath(tt.path)
			if got != tt.valid {
				t.Errorf("isValidRedirectPath(%q) = %v, want %v", tt.path, got, tt.valid)
			}
		})
	}
}
