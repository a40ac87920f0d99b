package downloader

import (
	"strings"
	"testing"
	"unicode"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"watch with scheme and www", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"watch with http", "http://youtube.com/watch?v=abc", true},
		{"watch without scheme", "youtube.com/watch?v=a-b_c", true},
		{"watch www without scheme", "www.youtube.com/watch?v=x", true},
		{"watch with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", true},
		{"short link without scheme", "youtu.be/x", true},
		{"short link with www", "www.youtu.be/abc", true},
		{"shorts", "https://www.youtube.com/shorts/abc123", true},
		{"shorts without scheme", "youtube.com/shorts/a", true},
		{"empty", "", false},
		{"watch without id", "https://www.youtube.com/watch?v=", false},
		{"shorts without id", "https://youtube.com/shorts/", false},
		{"other host", "https://vimeo.com/123456", false},
		{"lookalike host", "https://youtube.com.evil.example/watch?v=abc", false},
		{"host suffix", "https://notyoutube.com/watch?v=abc", false},
		{"ftp scheme", "ftp://youtube.com/watch?v=abc", false},
		{"playlist page", "https://www.youtube.com/playlist?list=PL123", false},
		{"channel page", "https://www.youtube.com/@channel", false},
		{"plain text", "not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidURL(tt.url); got != tt.expected {
				t.Errorf("IsValidURL(%q) = %v, expected %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{"plain", "Hello World", "Hello_World"},
		{"keeps allowed punctuation", "Song (Live) - v1.0_final", "Song_(Live)_-_v1.0_final"},
		{"strips separators", "AC/DC \\ Back in Black", "ACDC_Back_in_Black"},
		{"strips quotes", `He said "hi"`, "He_said_hi"},
		{"collapses whitespace", "a    b", "a_b"},
		{"strips control chars", "a\tb\nc\x00d", "abcd"},
		{"strips unicode", "Café déjà vu", "Caf_dj_vu"},
		{"traversal", "../../etc/passwd", "....etcpasswd"},
		{"only dots", "..", "audio"},
		{"empty", "", "audio"},
		{"only unsafe", "???", "audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.title); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, expected %q", tt.title, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilenameProperties(t *testing.T) {
	inputs := []string{
		"",
		"simple",
		"  leading and trailing  ",
		"../../../root/.ssh/id_rsa",
		`C:\Windows\System32`,
		"tab\there\r\nnewline\x07bell",
		strings.Repeat("long title ", 50),
		strings.Repeat("x", 500),
		"emoji 🎵 music 🎶",
		"mixed   \t  whitespace",
	}

	for _, in := range inputs {
		once := SanitizeFilename(in)
		if twice := SanitizeFilename(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if len(once) > maxFilenameLength {
			t.Errorf("output too long for %q: %d", in, len(once))
		}
		if strings.ContainsAny(once, `/\`) {
			t.Errorf("separator survived for %q: %q", in, once)
		}
		for _, r := range once {
			if unicode.IsControl(r) {
				t.Errorf("control char survived for %q: %q", in, once)
			}
		}
		if once == "." || once == ".." {
			t.Errorf("traversal token survived for %q", in)
		}
	}
}
