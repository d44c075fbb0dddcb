package cache

import (
	"testing"
	"time"
)

func TestParseExpireTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"", time.Hour},
		{"1h", time.Hour},
		{"12h", 12 * time.Hour},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1m", 30 * 24 * time.Hour},
		{"2y", 2 * 365 * 24 * time.Hour},
		{"3H", 3 * time.Hour},
	}

	for _, tt := range tests {
		got, err := ParseExpireTime(tt.input)
		if err != nil {
			t.Errorf("ParseExpireTime(%q) returned error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseExpireTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseExpireTimeInvalid(t *testing.T) {
	for _, input := range []string{"h", "1", "1x", "h1", "-1h", "1.5h", "1h2d"} {
		if _, err := ParseExpireTime(input); err == nil {
			t.Errorf("ParseExpireTime(%q) expected error, got nil", input)
		}
	}
}
