package capture

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	recordingPrefix = "video_"
	croppedPrefix   = "cropped_"
	maxTitleRunes   = 50
)

// Sanitize turns a title into a file name fragment: characters illegal in
// file names are dropped, whitespace runs become one underscore.
func Sanitize(title string) string {
	var b strings.Builder
	pendingSep := false
	n := 0
	for _, r := range strings.TrimSpace(title) {
		if n >= maxTitleRunes {
			break
		}
		switch {
		case unicode.IsSpace(r) || r == '_':
			pendingSep = b.Len() > 0
			continue
		case unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|.`, r):
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			n++
			pendingSep = false
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Stem is the extension-less recording file name for title at t.
func Stem(title string, t time.Time) string {
	unix := strconv.FormatInt(t.Unix(), 10)
	if s := Sanitize(title); s != "" {
		return recordingPrefix + s + "_" + unix
	}
	return recordingPrefix + unix
}

// ParseName recovers the title and timestamp from a recording or cropped
// file name. Underscores in the title come back as spaces.
func ParseName(name string) (title string, t time.Time, ok bool) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	switch {
	case strings.HasPrefix(base, recordingPrefix):
		base = strings.TrimPrefix(base, recordingPrefix)
	case strings.HasPrefix(base, croppedPrefix):
		base = strings.TrimPrefix(base, croppedPrefix)
	default:
		return "", time.Time{}, false
	}

	parts := strings.Split(base, "_")
	// trailing uniqueness counter: ..._<unix>_<n>. A last token that is itself
	// a timestamp belongs to the name, so a numeric title keeps its digits.
	if last := parts[len(parts)-1]; len(parts) >= 2 && isUnix(parts[len(parts)-2]) && isDigits(last) && !isUnix(last) {
		parts = parts[:len(parts)-1]
	}
	last := parts[len(parts)-1]
	if !isDigits(last) {
		return "", time.Time{}, false
	}
	sec, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return strings.Join(parts[:len(parts)-1], " "), time.Unix(sec, 0), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUnix(s string) bool { return len(s) >= 9 && isDigits(s) }
