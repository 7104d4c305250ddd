// Package lyrics converts WebVTT subtitle output into LRC lyric files.
package lyrics

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"chorus/internal/services"
)

// ConvertFile reads a VTT file and writes the LRC rendition to lrcPath.
func ConvertFile(vttPath, lrcPath string) error {
	data, err := os.ReadFile(vttPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "lyrics", "convert", fmt.Sprintf("read %s", vttPath), err)
	}
	lrc, err := Convert(string(data))
	if err != nil {
		return services.Wrap(services.ErrValidation, "lyrics", "convert", filepath.Base(vttPath), err)
	}
	if err := os.WriteFile(lrcPath, []byte(lrc), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "lyrics", "convert", fmt.Sprintf("write %s", lrcPath), err)
	}
	return nil
}

// Convert translates WebVTT cue text into LRC lines. Cue start times become
// [mm:ss.xx] timestamps; headers, cue identifiers, and NOTE blocks are
// dropped, and consecutive duplicate lines are collapsed.
func Convert(vtt string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(vtt))
	var out strings.Builder
	var pendingTimestamp string
	var lastText string
	sawHeader := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			pendingTimestamp = ""
			continue
		case strings.HasPrefix(line, "WEBVTT"):
			sawHeader = true
			continue
		case strings.HasPrefix(line, "NOTE"),
			strings.HasPrefix(line, "STYLE"),
			strings.HasPrefix(line, "REGION"):
			pendingTimestamp = ""
			continue
		case strings.Contains(line, "-->"):
			start := strings.TrimSpace(strings.SplitN(line, "-->", 2)[0])
			stamp, err := toLRCTimestamp(start)
			if err != nil {
				return "", err
			}
			pendingTimestamp = stamp
			continue
		}
		if pendingTimestamp == "" {
			// Cue identifier or stray text outside a cue.
			continue
		}
		text := stripMarkup(line)
		if text == "" || text == lastText {
			continue
		}
		out.WriteString(pendingTimestamp)
		out.WriteString(text)
		out.WriteByte('\n')
		lastText = text
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if !sawHeader {
		return "", fmt.Errorf("missing WEBVTT header")
	}
	return out.String(), nil
}

// toLRCTimestamp converts "hh:mm:ss.mmm" or "mm:ss.mmm" into "[mm:ss.xx]".
func toLRCTimestamp(value string) (string, error) {
	parts := strings.Split(value, ":")
	var hours, minutes int
	var secondsPart string
	switch len(parts) {
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return "", fmt.Errorf("invalid cue time %q", value)
		}
		hours = h
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", fmt.Errorf("invalid cue time %q", value)
		}
		minutes = m
		secondsPart = parts[2]
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return "", fmt.Errorf("invalid cue time %q", value)
		}
		minutes = m
		secondsPart = parts[1]
	default:
		return "", fmt.Errorf("invalid cue time %q", value)
	}

	seconds, err := strconv.ParseFloat(secondsPart, 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return "", fmt.Errorf("invalid cue time %q", value)
	}

	// Round to hundredths over the whole timestamp so 59.997s carries into
	// the next minute instead of folding back to .00.
	totalHundredths := int((float64((hours*60+minutes)*60)+seconds)*100 + 0.5)
	totalSeconds := totalHundredths / 100
	return fmt.Sprintf("[%02d:%02d.%02d]", totalSeconds/60, totalSeconds%60, totalHundredths%100), nil
}

// stripMarkup removes VTT inline tags like <c> and timing spans.
func stripMarkup(line string) string {
	var b strings.Builder
	inTag := false
	for _, r := range line {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
