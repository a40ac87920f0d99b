package models

// Format is a target audio container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// ParseFormat returns the Format for s and whether it is supported.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatMP3, FormatWAV:
		return Format(s), true
	}
	return "", false
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// ContentTypeForExt maps an artifact extension (".mp3") to its MIME type.
func ContentTypeForExt(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	return Format(ext).ContentType()
}

// VideoInfo is the preview metadata of a single video.
type VideoInfo struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Channel   string  `json:"channel"`
	Views     int64   `json:"views"`
}
