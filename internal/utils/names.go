package utils

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"

	"langvote/internal/errs"
)

const (
	MinNameLength  = 1
	MaxNameLength  = 50
	MaxSuggestions = 5
)

var (
	// 只允许字母、数字、空格以及 + # . - _，保证名称嵌入 id 或 HTML 属性时是安全的
	allowedName = regexp.MustCompile(`^[\p{L}\p{N} +#.\-_]+$`)
	hasAlnum    = regexp.MustCompile(`[\p{L}\p{N}]`)

	strictPolicy = bluemonday.StrictPolicy()
	folder       = cases.Fold()
)

// KnownLanguages 常见语言的规范写法，输入命中时按这里的大小写保存
var KnownLanguages = []string{
	"Python", "JavaScript", "TypeScript", "Java", "Go", "Rust", "C#", "C++", "C",
	"PHP", "Ruby", "Kotlin", "Swift", "Elixir", "Scala", "Haskell", "Dart", "Lua",
	"Zig", "Clojure", "OCaml", "Erlang", "F#", "Julia", "R", "Perl", "Nim", "Crystal",
}

var canonicalByKey = func() map[string]string {
	m := make(map[string]string, len(KnownLanguages))
	for _, name := range KnownLanguages {
		m[NameKey(name)] = name
	}
	return m
}()

// NormalizeName trims, collapses inner whitespace and applies the canonical
// spelling of well-known languages.
func NormalizeName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if canonical, ok := canonicalByKey[NameKey(name)]; ok {
		return canonical
	}
	return name
}

// NameKey is the uniqueness key: case folded with all whitespace removed.
func NameKey(name string) string {
	return folder.String(strings.Join(strings.Fields(name), ""))
}

// ValidateName checks an already normalized name.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n < MinNameLength:
		return &errs.ValidationError{Field: "name", Reason: "must not be empty"}
	case n > MaxNameLength:
		return &errs.ValidationError{Field: "name", Reason: "must be at most 50 characters"}
	case !allowedName.MatchString(name):
		return &errs.ValidationError{Field: "name", Reason: "may only contain letters, digits, spaces and + # . - _"}
	case !hasAlnum.MatchString(name):
		return &errs.ValidationError{Field: "name", Reason: "must contain a letter or digit"}
	case strictPolicy.Sanitize(name) != name:
		return &errs.ValidationError{Field: "name", Reason: "contains markup"}
	}
	return nil
}

// SimilarNames ranks existing names by similarity to name and returns at most limit of them.
func SimilarNames(name string, existing []string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}

	key := NameKey(name)
	var ranked []scored
	for _, candidate := range existing {
		score := Similarity(key, NameKey(candidate))
		if score >= 0.4 {
			ranked = append(ranked, scored{candidate, score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.name
	}
	return names
}

// Similarity returns a score in [0,1] from edit distance, with a bonus when one
// key contains the other.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}

	score := 1 - float64(levenshtein(ra, rb))/float64(longest)
	if strings.Contains(a, b) || strings.Contains(b, a) {
		score += 0.3
	}
	if score > 1 {
		score = 1
	}
	return score
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
