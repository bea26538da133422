// Package contentfilter implements the agent's pure outbound text filter
// (§4.7): a denylist of normalized substrings plus simple leet-variants,
// with no external dependency — this is intentionally a pure function
// over in-process data, not a network call to a moderation API, so there
// is nothing here to ground on a third-party library; see DESIGN.md.
package contentfilter

import "strings"

// Category names the reason a text was blocked.
type Category string

const (
	CategoryHate          Category = "hate_slur"
	CategoryCSAM          Category = "csam"
	CategoryExplicitPorn  Category = "explicit_pornography"
)

// denylist maps a normalized substring to the category it triggers. This
// is a minimal illustrative set, not an exhaustive moderation list — the
// spec calls for "a denylist of normalized substrings plus simple
// leet-variants", not a full classifier.
var denylist = map[string]Category{
	"killallthem":   CategoryHate,
	"subhuman race": CategoryHate,
	"cp links":      CategoryCSAM,
	"xxxexplicit":   CategoryExplicitPorn,
}

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
)

func normalize(text string) string {
	t := strings.ToLower(text)
	t = leetReplacer.Replace(t)
	t = strings.Join(strings.Fields(t), " ")
	return t
}

// Result is the outcome of Filter.
type Result struct {
	Allowed  bool
	Category Category
}

// Filter classifies outbound text. Pure function, no I/O: allow, or
// block(category) on the first denylist match found.
func Filter(text string) Result {
	normalized := normalize(text)
	for substr, category := range denylist {
		if strings.Contains(normalized, substr) {
			return Result{Allowed: false, Category: category}
		}
	}
	return Result{Allowed: true}
}
