package validation

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrNotCookieFile is returned when an upload is not a Netscape cookie file.
var ErrNotCookieFile = errors.New("not a netscape cookie file")

// MaxCookieFileSize bounds an uploaded credential file.
const MaxCookieFileSize = 1 << 20

const (
	httpOnlyPrefix     = "#HttpOnly_"
	cookieFieldCount   = 7
	sniffBufferSize    = 512
	textPlainMIMEShort = "text/plain"
)

// ValidateCookieFile checks that data looks like a Netscape cookie jar as
// written by browser export extensions: UTF-8 text whose non-comment lines
// have seven tab-separated fields. At least one cookie line is required.
func ValidateCookieFile(data []byte) error {
	if len(data) == 0 || len(data) > MaxCookieFileSize {
		return ErrNotCookieFile
	}
	sniff := data
	if len(sniff) > sniffBufferSize {
		sniff = sniff[:sniffBufferSize]
	}
	if !strings.HasPrefix(http.DetectContentType(sniff), textPlainMIMEShort) || !utf8.Valid(data) {
		return ErrNotCookieFile
	}

	cookies := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxCookieFileSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, httpOnlyPrefix):
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		case strings.HasPrefix(line, "#"):
			continue
		}
		if len(strings.Split(line, "\t")) != cookieFieldCount {
			return ErrNotCookieFile
		}
		cookies++
	}
	if err := scanner.Err(); err != nil {
		return ErrNotCookieFile
	}
	if cookies == 0 {
		return ErrNotCookieFile
	}
	return nil
}
