package rom

import "strings"

// archiveSeparator joins an archive file and an entry in a path string.
// A one-character separator yields "file#entry"; a two-character value is
// treated as a bracket pair yielding "file[entry]". Set once at startup.
var archiveSeparator = "#"

// SetArchiveSeparator configures the process-wide archive path separator.
func SetArchiveSeparator(sep string) {
	if sep == "" {
		sep = "#"
	}
	archiveSeparator = sep
}

// ArchiveSeparator returns the configured archive path separator.
func ArchiveSeparator() string { return archiveSeparator }

// JoinArchivePath renders an archive file and entry as one path string.
func JoinArchivePath(file, entry string) string {
	if len(archiveSeparator) == 2 {
		return file + archiveSeparator[:1] + entry + archiveSeparator[1:]
	}
	return file + archiveSeparator + entry
}

// SplitArchivePath splits a path string produced by JoinArchivePath.
// ok is false when the string does not contain the separator.
func SplitArchivePath(s string) (file, entry string, ok bool) {
	if len(archiveSeparator) == 2 {
		open, close := archiveSeparator[:1], archiveSeparator[1:]
		i := strings.Index(s, open)
		if i < 0 || !strings.HasSuffix(s, close) {
			return "", "", false
		}
		return s[:i], s[i+1 : len(s)-1], true
	}
	i := strings.Index(s, archiveSeparator)
	if i < 0 {
		return "", "", false
	}
	file = s[:i]
	entry = s[i+len(archiveSeparator):]
	// A trailing separator marks an archive with an empty entry part.
	entry = strings.TrimSuffix(entry, archiveSeparator)
	return file, entry, true
}
