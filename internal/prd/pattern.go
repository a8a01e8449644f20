package prd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IDPlaceholder marks where the variable part of a task id goes in a pattern.
const IDPlaceholder = "{id}"

// DefaultIDPattern is used when a document has neither a declared nor a detectable pattern.
const DefaultIDPattern = "T-{id}"

const idDelimiters = "-_."

// PatternOf returns the pattern a single task id follows, e.g. "REQ-001" -> "REQ-{id}".
// Returns "" when the id has no delimiter or an empty prefix.
func PatternOf(id string) string {
	idx := strings.LastIndexAny(id, idDelimiters)
	if idx <= 0 || idx == len(id)-1 {
		return ""
	}
	return id[:idx+1] + IDPlaceholder
}

// DetectIDPattern scans task ids for a common prefix before a delimiter.
// Returns "" when there are no tasks or the ids disagree.
func (d *Document) DetectIDPattern() string {
	detected := ""
	for _, p := range d.Phases {
		for _, t := range p.Tasks {
			if t.ID == "" {
				continue
			}
			pattern := PatternOf(t.ID)
			if pattern == "" {
				return ""
			}
			if detected == "" {
				detected = pattern
				continue
			}
			if pattern != detected {
				return ""
			}
		}
	}
	return detected
}

// EffectiveIDPattern returns the declared pattern, else the detected one, else the default.
func (d *Document) EffectiveIDPattern() string {
	if d.IDPattern != "" {
		return d.IDPattern
	}
	if p := d.DetectIDPattern(); p != "" {
		return p
	}
	return DefaultIDPattern
}

// MatchesPattern reports whether id follows pattern.
func MatchesPattern(id, pattern string) bool {
	prefix, ok := patternPrefix(pattern)
	if !ok {
		return false
	}
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}

// NextTaskID returns the next free id for pattern, one past the highest
// numeric suffix among existing ids, zero padded to three digits.
func NextTaskID(pattern string, existing []string) string {
	prefix, ok := patternPrefix(pattern)
	if !ok {
		prefix, _ = patternPrefix(DefaultIDPattern)
	}

	taken := make(map[string]bool, len(existing))
	highest := 0
	for _, id := range existing {
		taken[id] = true
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > highest {
			highest = n
		}
	}

	for n := highest + 1; ; n++ {
		id := fmt.Sprintf("%s%03d", prefix, n)
		if !taken[id] {
			return id
		}
	}
}

func patternPrefix(pattern string) (string, bool) {
	if !strings.HasSuffix(pattern, IDPlaceholder) {
		return "", false
	}
	prefix := strings.TrimSuffix(pattern, IDPlaceholder)
	return prefix, prefix != ""
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts text to a kebab-case identifier.
func Slugify(s string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	return slug
}

// TitleFromID invents a readable title from an identifier,
// e.g. "user-auth_login" -> "User auth login".
func TitleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return strings.ContainsRune(idDelimiters+" /:", r)
	})
	if len(words) == 0 {
		return ""
	}
	return Capitalize(strings.Join(words, " "))
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
