package utils

import (
	"regexp"
	"strings"
	"time"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

// ExportTimestampLayout is the timestamp embedded in export and backup file names.
const ExportTimestampLayout = "20060102_150405"

// SanitizeFilename collapses whitespace (tabs and newlines included) to
// underscores, then strips characters that are invalid in file names on
// Windows or Unix and caps the length.
func SanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	filename = multipleSpaces.ReplaceAllString(filename, "_")
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = strings.Trim(filename, ".")

	if len(filename) > 200 {
		filename = filename[:200]
	}

	if filename == "" {
		filename = "export"
	}

	return filename
}

// ExportFilename builds "<kind>_<YYYYMMDD_HHMMSS>.<ext>".
func ExportFilename(kind string, at time.Time, ext string) string {
	name := SanitizeFilename(strings.ToLower(kind)) + "_" + at.Format(ExportTimestampLayout)
	ext = SanitizeFilename(strings.TrimPrefix(ext, "."))
	return name + "." + ext
}
