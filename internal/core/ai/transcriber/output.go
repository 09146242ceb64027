package transcriber

import (
	"fmt"
	"strings"
	"time"
)

// parseWhisperOutput parses whisper.cpp text output into segments.
// Lines look like: [00:00:00.000 --> 00:00:05.000] Text here
func parseWhisperOutput(text string) []Segment {
	var segments []Segment

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				parts := strings.Split(line[1:end], " --> ")
				if len(parts) == 2 {
					if body := strings.TrimSpace(line[end+1:]); body != "" {
						segments = append(segments, Segment{
							Start: parseTimestamp(parts[0]),
							End:   parseTimestamp(parts[1]),
							Text:  body,
						})
					}
					continue
				}
			}
		}

		// plain text continues the previous segment
		if len(segments) == 0 {
			segments = append(segments, Segment{Text: line})
		} else {
			segments[len(segments)-1].Text += " " + line
		}
	}

	return segments
}

// parseTimestamp parses HH:MM:SS.mmm format.
func parseTimestamp(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0
	}

	var hours, minutes int
	var seconds float64
	fmt.Sscanf(parts[0], "%d", &hours)
	fmt.Sscanf(parts[1], "%d", &minutes)
	fmt.Sscanf(parts[2], "%f", &seconds)

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
}

// cleanTranscriptText removes timestamp markers from text.
func cleanTranscriptText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				line = strings.TrimSpace(line[end+1:])
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}
