package downloader

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
		ok       bool
	}{
		{"integer", "100%", 100, true},
		{"decimal", "42.5%", 42.5, true},
		{"download line", "[download]  12.3% of ~4.56MiB at 1.2MiB/s ETA 00:03", 12.3, true},
		{"last match wins", "[download] 10.0%\r[download] 20.0%\r[download] 30.5%", 30.5, true},
		{"clamped", "150%", 100, true},
		{"no percent", "[youtube] abc: Downloading webpage", 0, false},
		{"percent without digits", "100 % done", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProgress(tt.text)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ParseProgress(%q) = (%v, %v), expected (%v, %v)", tt.text, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestProgressWriterSplitsLines(t *testing.T) {
	var seen []float64
	tail := newTailBuffer(64)
	w := newProgressWriter(func(p float64) { seen = append(seen, p) }, tail)

	chunks := []string{
		"[download]   1.0% of 3MiB\r[down",
		"load]  50.5% of 3MiB\r",
		"[download] 100% of 3MiB\n[ExtractAudio] done",
	}
	for _, c := range chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	w.Flush()

	expected := []float64{1, 50.5, 100}
	if !reflect.DeepEqual(seen, expected) {
		t.Errorf("expected progress %v, got %v", expected, seen)
	}
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	tail := newTailBuffer(8)
	tail.Write([]byte("0123456789"))
	tail.Write([]byte("ab"))

	if got := tail.String(); got != "456789ab" {
		t.Errorf("expected tail %q, got %q", "456789ab", got)
	}
	if strings.Contains(tail.String(), "0123") {
		t.Error("expected old bytes to be dropped")
	}
}
