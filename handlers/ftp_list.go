package handlers

import "strings"

// parseListLine parses one line of an FTP LIST response, returning the
// entry name and, when determinable from the line's format alone,
// whether it is a directory. isDirKnown is false for listing styles
// that can't classify an entry on their own (e.g. UNIX symlink lines)
// — such entries must be probed directly by attempting to change into
// them. ok is false when the line could not be parsed at all: an
// unrecognized format, or a server-specific status line that should
// just be ignored.
//
// Loosely follows the UNIX/MSDOS/EPLF line shapes described by D. J.
// Bernstein's ftpparse.c.
func parseListLine(line string) (name string, isDir bool, isDirKnown bool, ok bool) {
	switch {
	case len(line) > 0 && strings.ContainsRune("-dbclps", rune(line[0])):
		return parseUnixListLine(line)
	case len(line) > 0 && line[0] >= '0' && line[0] <= '9':
		return parseMSDOSListLine(line)
	case strings.HasPrefix(line, "+"):
		return parseEPLFListLine(line)
	default:
		return "", false, false, false
	}
}

func parseUnixListLine(line string) (name string, isDir bool, isDirKnown bool, ok bool) {
	switch line[0] {
	case '-':
		isDir, isDirKnown = false, true
	case 'd':
		isDir, isDirKnown = true, true
	default:
		isDirKnown = false
	}

	parts := splitFields(line, 9)
	if len(parts) != 9 {
		return "", false, false, false
	}
	raw := parts[8]
	if line[0] == 'l' {
		if i := strings.Index(raw, " -> "); i >= 0 {
			raw = raw[:i]
		}
	}
	return raw, isDir, isDirKnown, true
}

func parseMSDOSListLine(full string) (name string, isDir bool, isDirKnown bool, ok bool) {
	if len(full) < 17 {
		return "", false, false, false
	}
	rest := strings.TrimLeft(full[17:], " \t")
	if strings.HasPrefix(rest, "<DIR>") {
		if len(rest) < 15 {
			return "", false, false, false
		}
		return rest[15:], true, true, true
	}
	idx := strings.Index(rest, " ")
	if idx < 0 {
		return "", false, false, false
	}
	return rest[idx+1:], false, true, true
}

func parseEPLFListLine(full string) (name string, isDir bool, isDirKnown bool, ok bool) {
	rest := full[1:]
	parts := strings.SplitN(rest, "\t", 2)
	if len(parts) != 2 {
		return "", false, false, false
	}
	isDirKnown = true
	for _, f := range strings.Split(parts[0], ",") {
		if f == "/" {
			isDir = true
		}
	}
	return parts[1], isDir, isDirKnown, true
}

// splitFields mimics Python's str.split(None, n-1): split on runs of
// whitespace into at most n fields, with the final field retaining any
// remaining whitespace-separated content (including embedded spaces)
// verbatim — UNIX LIST filenames can contain spaces.
func splitFields(s string, n int) []string {
	fields := make([]string, 0, n)
	rest := s
	for len(fields) < n-1 {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:idx])
		rest = rest[idx:]
	}
	rest = strings.TrimLeft(rest, " \t")
	if rest != "" {
		fields = append(fields, rest)
	}
	return fields
}
