// Package subtitle renders transcription segments into SRT or VTT caption
// files, including timestamp formatting and two-line caption wrapping.
package subtitle

import (
	"fmt"
	"strings"
)

// Segment is one timed span of transcribed text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FormatTimestamp converts seconds to an SRT timestamp (HH:MM:SS,mmm).
func FormatTimestamp(seconds float64) string {
	millis := int64(seconds*1000 + 0.5)
	if millis < 0 {
		millis = 0
	}
	hrs := millis / 3_600_000
	millis %= 3_600_000
	mins := millis / 60_000
	millis %= 60_000
	secs := millis / 1_000
	millis %= 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hrs, mins, secs, millis)
}

// wrapCaption wraps text into at most two lines of at most width characters,
// never breaking inside a word. The second return is false when the text
// cannot fit in two lines; callers then fall back to the unwrapped text.
func wrapCaption(text string, width int) (string, bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "", true
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) <= width {
			line += " " + word
			continue
		}
		lines = append(lines, line)
		line = word
	}
	lines = append(lines, line)

	if len(lines) > 2 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// captionText returns the wrapped caption for a segment, falling back to the
// trimmed raw text when it does not fit in two lines.
func captionText(text string, maxChars int) string {
	trimmed := strings.TrimSpace(text)
	if wrapped, ok := wrapCaption(trimmed, maxChars); ok && wrapped != "" {
		return wrapped
	}
	return trimmed
}

// BuildSRT renders segments as an SRT document.
func BuildSRT(segments []Segment, maxChars int) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			i+1,
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			captionText(seg.Text, maxChars),
		)
		if i < len(segments)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// BuildVTT renders segments as a WebVTT document.
func BuildVTT(segments []Segment, maxChars int) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n",
			vttTimestamp(seg.Start),
			vttTimestamp(seg.End),
			captionText(seg.Text, maxChars),
		)
		if i < len(segments)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// vttTimestamp is the SRT timestamp with a dot millisecond separator.
func vttTimestamp(seconds float64) string {
	return strings.Replace(FormatTimestamp(seconds), ",", ".", 1)
}

// Render builds a subtitle document in the requested format.
func Render(format string, segments []Segment, maxChars int) (string, error) {
	switch format {
	case "srt":
		return BuildSRT(segments, maxChars), nil
	case "vtt":
		return BuildVTT(segments, maxChars), nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", format)
	}
}

// FileExt returns the artifact file extension for a subtitle format.
func FileExt(format string) string {
	return "." + format
}

// ContentType returns the MIME type served for a subtitle format.
func ContentType(format string) string {
	if format == "vtt" {
		return "text/vtt; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
