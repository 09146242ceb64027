package captions

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Format names match the `ext` values yt-dlp reports for caption tracks.
const (
	FormatJSON3 = "json3"
	FormatVTT   = "vtt"
	FormatSRT   = "srt"
	FormatSRV1  = "srv1"
	FormatSRV2  = "srv2"
	FormatSRV3  = "srv3"
	FormatTTML  = "ttml"
)

// cue is one timed piece of caption text.
type cue struct {
	index int // explicit cue number, -1 if absent
	start time.Duration
	text  string
}

// Decode strips timing and markup from a caption payload and returns the
// spoken text joined by single spaces. An empty format is sniffed from data.
// automatic marks an auto-generated track, whose rolling lines repeat the
// previous cue and are emitted once.
func Decode(format string, data []byte, automatic bool) (string, error) {
	if format == "" {
		format = Sniff(data)
	}

	var cues []cue
	var err error
	switch strings.ToLower(format) {
	case FormatJSON3:
		cues, err = decodeJSON3(data)
	case FormatVTT, FormatSRT:
		cues = decodeCueText(data)
	case FormatSRV1, FormatSRV2, FormatSRV3, FormatTTML, "xml":
		cues, err = decodeTimedTextXML(data)
	default:
		return "", fmt.Errorf("unsupported caption format %q", format)
	}
	if err != nil {
		return "", err
	}

	return joinCues(cues, automatic), nil
}

// Sniff guesses the serialization of a caption payload.
func Sniff(data []byte) string {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	switch {
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return FormatVTT
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON3
	case bytes.HasPrefix(trimmed, []byte("<")):
		return FormatSRV3
	case bytes.Contains(trimmed, []byte("-->")):
		return FormatSRT
	default:
		return ""
	}
}

// joinCues orders cues and concatenates their text. Cues are ordered by their
// explicit index when every cue carries one, otherwise by start time.
// With collapse set, consecutive repeated lines are emitted once.
func joinCues(cues []cue, collapse bool) string {
	indexed := len(cues) > 0
	for _, c := range cues {
		if c.index < 0 {
			indexed = false
			break
		}
	}

	sort.SliceStable(cues, func(i, j int) bool {
		if indexed {
			return cues[i].index < cues[j].index
		}
		return cues[i].start < cues[j].start
	})

	var parts []string
	last := ""
	for _, c := range cues {
		for _, line := range strings.Split(c.text, "\n") {
			line = strings.Join(strings.Fields(line), " ")
			if line == "" || (collapse && line == last) {
				continue
			}
			parts = append(parts, line)
			last = line
		}
	}
	return strings.Join(parts, " ")
}

// json3 is YouTube's segmented timed-text JSON.
type json3Doc struct {
	Events []struct {
		StartMs int64 `json:"tStartMs"`
		Segs    []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func decodeJSON3(data []byte) ([]cue, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse json3 captions: %w", err)
	}

	cues := make([]cue, 0, len(doc.Events))
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		// a segment of just "\n" separates rows of the same event
		text := strings.ReplaceAll(sb.String(), "\n", " ")
		if strings.TrimSpace(text) == "" {
			continue
		}
		cues = append(cues, cue{
			index: -1,
			start: time.Duration(ev.StartMs) * time.Millisecond,
			text:  text,
		})
	}
	return cues, nil
}

var (
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	timestampRe = regexp.MustCompile(`^\s*((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})\s*-->`)
)

// decodeCueText handles WebVTT and SRT. Blocks are separated by blank lines;
// header, NOTE, STYLE and REGION blocks and the timing line are dropped.
func decodeCueText(data []byte) []cue {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	var cues []cue
	for _, block := range strings.Split(text, "\n\n") {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		if len(lines) == 0 {
			continue
		}
		first := strings.TrimSpace(lines[0])
		if strings.HasPrefix(first, "WEBVTT") || strings.HasPrefix(first, "NOTE") ||
			strings.HasPrefix(first, "STYLE") || strings.HasPrefix(first, "REGION") {
			continue
		}

		timing := -1
		for i, l := range lines {
			if strings.Contains(l, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}

		c := cue{index: -1}
		if timing > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(lines[timing-1])); err == nil {
				c.index = n
			}
		}
		if m := timestampRe.FindStringSubmatch(lines[timing]); m != nil {
			c.start = parseCueTimestamp(m[1])
		}

		var body []string
		for _, l := range lines[timing+1:] {
			l = html.UnescapeString(tagRe.ReplaceAllString(l, ""))
			if l = strings.TrimSpace(l); l != "" {
				body = append(body, l)
			}
		}
		if len(body) == 0 {
			continue
		}
		c.text = strings.Join(body, "\n")
		cues = append(cues, c)
	}
	return cues
}

// parseCueTimestamp parses HH:MM:SS.mmm, MM:SS.mmm and the SRT comma form.
func parseCueTimestamp(s string) time.Duration {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	parts := strings.Split(s, ":")

	var hours, minutes int
	var seconds float64
	switch len(parts) {
	case 3:
		hours, _ = strconv.Atoi(parts[0])
		minutes, _ = strconv.Atoi(parts[1])
		seconds, _ = strconv.ParseFloat(parts[2], 64)
	case 2:
		minutes, _ = strconv.Atoi(parts[0])
		seconds, _ = strconv.ParseFloat(parts[1], 64)
	default:
		return 0
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
}

// decodeTimedTextXML handles srv1 (<text start="1.2">) and srv3/ttml-like
// (<p t="1200">) documents.
func decodeTimedTextXML(data []byte) ([]cue, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var cues []cue
	var current *cue
	var sb strings.Builder
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse timed text XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if current != nil {
				depth++
				continue
			}
			if t.Name.Local != "text" && t.Name.Local != "p" {
				continue
			}
			current = &cue{index: -1}
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "start": // srv1: seconds
					if f, err := strconv.ParseFloat(a.Value, 64); err == nil {
						current.start = time.Duration(f * float64(time.Second))
					}
				case "t": // srv3: milliseconds
					if ms, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
						current.start = time.Duration(ms) * time.Millisecond
					}
				case "begin": // ttml: clock time
					current.start = parseCueTimestamp(a.Value)
				}
			}
			sb.Reset()
		case xml.CharData:
			if current != nil {
				sb.Write(t)
			}
		case xml.EndElement:
			if current == nil {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			// srv1 double-escapes entities inside <text>
			text := html.UnescapeString(tagRe.ReplaceAllString(sb.String(), ""))
			if strings.TrimSpace(text) != "" {
				current.text = text
				cues = append(cues, *current)
			}
			current = nil
		}
	}
	return cues, nil
}
