package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   string
		masked bool
	}{
		{
			name: "plain URL is unchanged",
			in:   "https://cafe.example/menu?page=2",
		},
		{
			name:   "user info is masked",
			in:     "https://alice:pw@cafe.example/",
			want:   "https://" + MaskValue + "@cafe.example/",
			masked: true,
		},
		{
			name:   "token parameter is masked",
			in:     "https://cafe.example/a?page=2&token=abc",
			want:   "https://cafe.example/a?page=2&token=" + MaskValue,
			masked: true,
		},
		{
			name:   "prefixed parameter is masked",
			in:     "https://cafe.example/a?access_token=abc",
			want:   "https://cafe.example/a?access_token=" + MaskValue,
			masked: true,
		},
		{
			name: "parameter containing a keyword is kept",
			in:   "https://cafe.example/a?keyword=coffee",
		},
		{
			name: "non URL",
			in:   "cafe.example/a?token=abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := sanitizeURL(tt.in)
			if ok != tt.masked {
				t.Fatalf("sanitizeURL(%q) ok = %v, want %v", tt.in, ok, tt.masked)
			}
			if ok && got != tt.want {
				t.Errorf("sanitizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSecureLogger_MasksURLSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, true)
	logger.Debug("fetching", "url", "https://cafe.example/?sig=deadbeef")

	output := buf.String()
	if strings.Contains(output, "deadbeef") {
		t.Errorf("expected signature to be masked, got %s", output)
	}
	if !strings.Contains(output, "cafe.example") {
		t.Errorf("expected host to be kept, got %s", output)
	}
}
