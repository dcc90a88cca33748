package filesystem

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
)

// EntryInfo is the view of a backed up file that filter expressions are evaluated against.
type EntryInfo struct {
	Domain string    // Backup domain, e.g. AppDomain-com.apple.Pages
	Path   string    // Path relative to the domain root
	Name   string    // Base name of the file
	Key    string    // Storage key
	Size   int64     // File size in bytes
	Mode   uint32    // raw mode bits as recorded by the backup (type + permissions)
	Perm   uint32    // just the permission bits (mode & 07777)
	Mtime  time.Time // Modification time
	Ctime  time.Time // Change time
	Btime  time.Time // Birth time
	Uid    uint32    // User ID
	Gid    uint32    // Group ID
}

// File type filter expressions and definitions
var (
	fileTypeMask  = 0o170000
	fileTypes     = map[string]uint32{"file": 0o100000, "directory": 0o040000, "symlink": 0o120000}
	fileTypeNames = func() []string {
		names := make([]string, 0, len(fileTypes))
		for name := range fileTypes {
			names = append(names, name)
		}
		return names
	}()
	fileTypeGroupRe = "(?:" + strings.Join(fileTypeNames, "|") + ")"
	fileTypeRe      = regexp.MustCompile(`\b(?i)type\s*(==|!=)\s*(` + fileTypeGroupRe + `(?:\s*,\s*` + fileTypeGroupRe + `)*)\b`)
	// Matches an attempt to filter by type using an unknown type name so it can be rejected.
	anyTypeRe = regexp.MustCompile(`\b(?i)type\s*(==|!=)`)
)

var (
	// modeOctRe insists on a leading 0 with 5-6 octal digits so plain decimal values like 33188
	// are left alone.
	modeOctRe = regexp.MustCompile(`\b(?i)(mode)\s*(==|!=|<=|>=|<|>)\s*(0[0-7]{5,6})\b`)
	// permOctRe allows 3-4 digits with an optional leading zero (chmod style).
	permOctRe = regexp.MustCompile(`\b(?i)(perm)\s*(==|!=|<=|>=|<|>)\s*(0?[0-7]{3,4})\b`)
	timeRe    = regexp.MustCompile(`\b(?i)(mtime|ctime|btime)\s*(<=|>=|<|>)\s*([0-9]+(?:\.[0-9]+)?[smhdMyw]+)\b`)
	sizeRe    = regexp.MustCompile(`\b(?i)(size)\s*(<=|>=|<|>|!=|=)\s*([0-9]+(?:\.[0-9]+)?(?:B|KB|MB|GB|TB|KiB|MiB|GiB|TiB))\b`)
	identRe   = regexp.MustCompile(`\b(?i)(mtime|ctime|btime|size|name|uid|gid|path|mode|perm|domain|key)\b`)
	fieldMap  = map[string]string{
		"mtime": "Mtime", "ctime": "Ctime", "btime": "Btime",
		"size": "Size", "name": "Name", "uid": "Uid", "gid": "Gid",
		"path": "Path", "mode": "Mode", "perm": "Perm",
		"domain": "Domain", "key": "Key",
	}
	unitFactors = map[string]float64{
		"B":  1,
		"KB": 1e3, "MB": 1e6, "GB": 1e9, "TB": 1e12,
		"KiB": 1 << 10, "MiB": 1 << 20, "GiB": 1 << 30, "TiB": 1 << 40,
	}
)

const FilterEntriesHelp = "Filter entries by expression: fields(name/path/domain/key <string>, uid/gid <int>, " +
	"mode <octal[like 0100644] | decimal[like 33188]>, perm <octal[like 644, 0644]>, " +
	"type <file|directory|symlink>, " +
	"mtime/ctime/btime <duration[like 1s, 2m, 3h, 4d, 5M, 10y]>, size <bytes[like 1B, 2KB, 3MiB, 4GiB]>); " +
	"operators(==,!=,<,>,<=,>=); helpers(glob([name|path|domain], pattern), regex([name|path|domain], pattern)); " +
	"logic(and|or|not); Example: --filter=\"mtime < 30d and type == file and glob(path, 'Documents/**/*.pages')\""

type EntryFilter func(EntryInfo) (bool, error)

// CompileFilter turns a DSL expression into a filter function.
func CompileFilter(query string) (EntryFilter, error) {
	q, err := preprocessDSL(query)
	if err != nil {
		return nil, err
	}

	prog, err := expr.Compile(q,
		expr.Env(EntryInfo{}),
		expr.AsBool(),
		expr.Function("ago", func(params ...any) (any, error) { return ago(params[0].(string)) }),
		expr.Function("bytes", func(params ...any) (any, error) { return parseBytes(params[0].(string)) }),
		expr.Function("glob", func(params ...any) (any, error) { return GlobMatch(params[1].(string), params[0].(string)) }),
		expr.Function("regex", func(params ...any) (any, error) { return regexMatch(params[0].(string), params[1].(string)) }),
		expr.Function("now", func(params ...any) (any, error) { return time.Now(), nil }),
	)
	if err != nil {
		return nil, err
	}

	return func(ei EntryInfo) (bool, error) {
		out, err := expr.Run(prog, ei)
		if err != nil {
			return false, fmt.Errorf("filter eval %q on %s: %w", query, ei.Path, err)
		}
		result, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("filter expression resulted in a non-boolean value of type %T. Make sure your filter is a valid comparison (e.g., 'size>100MB')", out)
		}
		return result, nil
	}, nil
}

// preprocessDSL applies all DSL to expr rewrites, including octal normalization.
func preprocessDSL(q string) (string, error) {
	q = normalizeOctal(q, permOctRe)
	q = normalizeOctal(q, modeOctRe)
	q = setFileType(q)
	if loc := anyTypeRe.FindStringIndex(q); loc != nil {
		return "", fmt.Errorf("unknown entry type in filter %q (valid types: %s)", q[loc[0]:], strings.Join(fileTypeNames, ", "))
	}
	// A time field being greater than a duration means it is older than that duration.
	q = timeRe.ReplaceAllStringFunc(q, func(m string) string {
		parts := timeRe.FindStringSubmatch(m)
		f, op, val := strings.ToLower(parts[1]), parts[2], parts[3]
		if goF, ok := fieldMap[f]; ok {
			switch op {
			case ">":
				op = "<"
			case "<":
				op = ">"
			case ">=":
				op = "<="
			case "<=":
				op = ">="
			}
			return fmt.Sprintf("%s %s ago(%q)", goF, op, val)
		}
		return m
	})
	q = sizeRe.ReplaceAllString(q, `$1 $2 bytes("$3")`)
	q = identRe.ReplaceAllStringFunc(q, func(s string) string {
		if goF, ok := fieldMap[strings.ToLower(s)]; ok {
			return goF
		}
		return s
	})
	return q, nil
}

// setFileType transforms type expressions into mode filters that include or exclude specific entry
// types.
func setFileType(q string) string {
	return fileTypeRe.ReplaceAllStringFunc(q, func(expr string) string {
		parts := fileTypeRe.FindStringSubmatch(expr)
		op, types := parts[1], parts[2]

		used := make(map[string]struct{})
		clauses := []string{}
		for name := range strings.SplitSeq(types, ",") {
			name = strings.TrimSpace(strings.ToLower(name))
			if _, ok := used[name]; ok {
				continue
			}
			used[name] = struct{}{}
			clauses = append(clauses, fmt.Sprintf("bitand(int(Mode), %d) == %d", fileTypeMask, fileTypes[name]))
		}

		expr = "(" + strings.Join(clauses, " or ") + ")"
		if op == "!=" {
			return fmt.Sprintf("not %s", expr)
		}
		return expr
	})
}

// normalizeOctal parses octal literals after stripping an optional 0o prefix or leading 0. For
// example 644, 0644, and 0o644 are all converted to 420.
func normalizeOctal(q string, re *regexp.Regexp) string {
	return re.ReplaceAllStringFunc(q, func(expr string) string {
		sub := re.FindStringSubmatch(expr)
		if len(sub) != 4 {
			return expr
		}
		field, op, lit := sub[1], sub[2], sub[3]
		if strings.HasPrefix(lit, "0o") || strings.HasPrefix(lit, "0O") {
			lit = lit[2:]
		} else if strings.HasPrefix(lit, "0") {
			lit = lit[1:]
		}
		val, err := strconv.ParseInt(lit, 8, 64)
		if err != nil {
			return expr
		}
		return fmt.Sprintf("%s %s %d", field, op, val)
	})
}

// ago returns time.Now() minus parsed duration.
func ago(durationStr string) (time.Time, error) {
	d, err := parseExtendedDuration(durationStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(-d), nil
}

// durationUnits extends time.ParseDuration with calendar-ish units. Months and years are fixed
// length.
var durationUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
	'M': 30 * 24 * time.Hour,
	'y': 365 * 24 * time.Hour,
}

func parseExtendedDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	factor, ok := durationUnits[s[len(s)-1]]
	if !ok {
		return time.ParseDuration(s)
	}
	f, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(f * float64(factor)), nil
}

// parseBytes converts a size literal such as 3MiB or 10KB into a byte count. A bare number is
// taken as bytes.
func parseBytes(sizeStr string) (int64, error) {
	unit := strings.TrimLeft(sizeStr, "0123456789.")
	num := strings.TrimSuffix(sizeStr, unit)
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = "B"
	}
	mul, ok := unitFactors[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", unit)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", sizeStr, err)
	}
	return int64(f * mul), nil
}

// GlobMatch reports whether name matches the doublestar pattern. Patterns always use forward
// slashes, as relative paths in a backup do regardless of the host platform.
func GlobMatch(pattern string, name string) (bool, error) {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return ok, nil
}

// IsGlobPattern reports if the string contains any glob meta characters.
func IsGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func regexMatch(s, pattern string) (bool, error) {
	return regexp.MatchString(pattern, s)
}

// ApplyFilter returns whether the entry should be kept. If filter==nil then (true, nil) will be
// returned.
func ApplyFilter(info EntryInfo, filter EntryFilter) (keep bool, err error) {
	if filter == nil {
		return true, nil
	}
	if keep, err = filter(info); err != nil {
		return false, fmt.Errorf("unable to apply filter: %w", err)
	}
	return
}
