// Package subtitle parses, translates, repairs and burns sequential
// (SubRip) subtitles.
package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Block is one numbered cue of a SubRip file.
type Block struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// ParseError reports a malformed block that was skipped.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

const timeArrow = "-->"

// Parse reads SubRip text. The grammar is: index line, time-range line, one
// or more text lines, blank separator. Blocks that do not follow it are
// skipped and reported; they never leak into a neighbour's text.
func Parse(content string) ([]Block, []error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")

	var (
		blocks []Block
		errs   []error
	)
	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}

		startLine := i + 1
		index, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			errs = append(errs, &ParseError{Line: startLine, Reason: "expected block index"})
			i = skipBlock(lines, i)
			continue
		}
		if i+1 >= len(lines) {
			errs = append(errs, &ParseError{Line: startLine, Reason: "missing time range"})
			break
		}
		start, end, err := parseTimeRange(lines[i+1])
		if err != nil {
			errs = append(errs, &ParseError{Line: startLine + 1, Reason: err.Error()})
			i = skipBlock(lines, i)
			continue
		}

		j := i + 2
		var text []string
		for j < len(lines) && strings.TrimSpace(lines[j]) != "" {
			// A missing blank separator: the next block starts here.
			if isIndexLine(lines[j]) && j+1 < len(lines) && isTimeRangeLine(lines[j+1]) && len(text) > 0 {
				break
			}
			text = append(text, strings.TrimRight(lines[j], " \t"))
			j++
		}
		if len(text) == 0 {
			errs = append(errs, &ParseError{Line: startLine, Reason: "block has no text"})
			i = j
			continue
		}

		blocks = append(blocks, Block{Index: index, Start: start, End: end, Text: strings.Join(text, "\n")})
		i = j
	}
	return blocks, errs
}

func skipBlock(lines []string, i int) int {
	for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
		i++
	}
	return i
}

func isIndexLine(line string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(line))
	return err == nil
}

func isTimeRangeLine(line string) bool {
	_, _, err := parseTimeRange(line)
	return err == nil
}

func parseTimeRange(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, timeArrow, 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected time range")
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	// Anything after the end timestamp (position hints) is ignored.
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("missing end timestamp")
	}
	end, err := ParseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ParseTimestamp accepts HH:MM:SS,mmm and the dotted HH:MM:SS.mmm variant.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	frac := timeParts[1]
	if len(frac) == 0 || len(frac) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	millis, errMS := strconv.Atoi(frac + strings.Repeat("0", 3-len(frac)))
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Format renders blocks as SubRip, renumbering them from 1.
func Format(blocks []Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		fmt.Fprintf(&sb, "%d\n%s %s %s\n%s\n\n", i+1, FormatTimestamp(b.Start), timeArrow, FormatTimestamp(b.End), b.Text)
	}
	return sb.String()
}

// ReadFile parses a SubRip file from disk.
func ReadFile(path string) ([]Block, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read srt: %w", err)
	}
	blocks, parseErrs := Parse(string(data))
	return blocks, parseErrs, nil
}

// WriteFile writes blocks to path, replacing it atomically.
func WriteFile(path string, blocks []Block) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Format(blocks)), 0644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace srt: %w", err)
	}
	return nil
}
