// Package singlefile parses the HTML header SingleFile embeds at the top
// of every archived page: a `url:` line and a `saved date:` line, each a
// line-anchored comment near the top of the document. Uses targeted
// regex/parsing rather than a full HTML parser for a two-field
// extraction.
package singlefile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// maxHeaderLines bounds how far into the document we scan for the header,
// since both fields are always emitted within SingleFile's leading HTML
// comment block.
const maxHeaderLines = 50

var (
	urlLineRE  = regexp.MustCompile(`(?i)^\s*url:\s*(\S+)\s*$`)
	dateLineRE = regexp.MustCompile(`(?i)^\s*saved date:\s*(.+?)\s*$`)
)

// Header is the subset of a SingleFile HTML document's leading comment
// block this package extracts.
type Header struct {
	URL       string
	SavedDate time.Time
}

// gmtDateLayout matches SingleFile's "saved date:" format: a
// whitespace-separated weekday, month, day, year, and time, e.g.
// "Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)". Only
// the first five whitespace-separated tokens are significant; SingleFile
// always emits this in GMT, and the zone abbreviation/parenthetical that
// follows is discarded rather than parsed.
const gmtDateLayout = "Mon Jan 02 2006 15:04:05"

// ParseHeader reads up to maxHeaderLines lines from r and extracts the url
// and saved-date fields. Either field may be absent from the document; a
// zero Header field signals that.
func ParseHeader(r io.Reader) (Header, error) {
	scanner := bufio.NewScanner(r)

	var header Header

	for lineNum := 0; scanner.Scan() && lineNum < maxHeaderLines; lineNum++ {
		line := scanner.Text()

		if header.URL == "" {
			if m := urlLineRE.FindStringSubmatch(line); m != nil {
				header.URL = m[1]
			}
		}

		if header.SavedDate.IsZero() {
			if m := dateLineRE.FindStringSubmatch(line); m != nil {
				if t, err := parseGMTDate(m[1]); err == nil {
					header.SavedDate = t
				}
			}
		}

		if header.URL != "" && !header.SavedDate.IsZero() {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return header, fmt.Errorf("singlefile: reading header: %w", err)
	}

	return header, nil
}

// parseGMTDate parses the first five whitespace-separated tokens of a
// SingleFile saved-date string (weekday, month, day, year, time),
// discarding the GMT offset and trailing parenthetical timezone name.
func parseGMTDate(raw string) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) < 5 {
		return time.Time{}, fmt.Errorf("singlefile: malformed saved date %q", raw)
	}

	candidate := strings.Join(fields[:5], " ")

	t, err := time.Parse(gmtDateLayout, candidate)
	if err != nil {
		return time.Time{}, fmt.Errorf("singlefile: parsing saved date %q: %w", raw, err)
	}

	return t, nil
}
