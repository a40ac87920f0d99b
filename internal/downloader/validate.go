package downloader

import (
	"regexp"
	"strings"
)

const maxFilenameLength = 200

var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/shorts/[\w-]+`),
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9 \-_().]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// IsValidURL reports whether url is a watch page, short link or shorts URL.
func IsValidURL(url string) bool {
	for _, re := range videoURLPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// SanitizeFilename turns an arbitrary title into a fragment usable both on
// disk and inside a quoted Content-Disposition filename.
func SanitizeFilename(title string) string {
	safe := unsafeFilenameChars.ReplaceAllString(title, "")
	safe = whitespaceRun.ReplaceAllString(safe, "_")
	if len(safe) > maxFilenameLength {
		safe = safe[:maxFilenameLength]
	}
	if strings.Trim(safe, ".") == "" {
		return "audio"
	}
	return safe
}
