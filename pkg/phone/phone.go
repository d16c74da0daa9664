// Package phone extracts candidate phone numbers from free-form text.
//
// Task descriptions carry numbers in wildly inconsistent shapes
// ("+52 55 1234 5678", "wa.me/5215512345678", "Cel: 55-1234-5678", ...).
// A single pattern cannot cover them, so the extractor runs a fixed,
// ordered table of regex strategies, each with its own confidence weight
// and canonicalization rule, then dedups by canonical number keeping the
// most confident instance.
//
// The extractor is pure and safe for concurrent use after construction.
package phone

import (
	"regexp"
	"sort"
	"strings"
)

// Extracted is one candidate produced by a single strategy match.
type Extracted struct {
	// Number is the canonical "+"-prefixed digit-only form.
	Number string
	// Raw is the exact text the strategy matched.
	Raw string
	// Start/End delimit Raw within the scanned text (byte offsets).
	Start int
	End   int
	// Confidence is the fixed weight of the strategy that produced it.
	Confidence float64
	// Strategy names the table entry that matched.
	Strategy string
}

// countryCodes is a small allow-list used as a soft sanity check on the
// two-digit prefix of a canonical number. Membership is advisory: an
// unknown prefix does not reject a candidate (international numbering is
// far larger than this table).
var countryCodes = map[string]string{
	"1":  "US/Canada",
	"33": "France",
	"34": "Spain",
	"39": "Italy",
	"44": "United Kingdom",
	"49": "Germany",
	"51": "Peru",
	"52": "Mexico",
	"54": "Argentina",
	"55": "Brazil",
	"56": "Chile",
	"57": "Colombia",
	"58": "Venezuela",
}

type strategy struct {
	name       string
	re         *regexp.Regexp
	confidence float64
	// canon builds the canonical number from the submatches.
	// Returning "" discards the match.
	canon func(x *Extractor, groups []string) string
}

// Extractor holds the compiled strategy table for one default country.
type Extractor struct {
	defaultCC  string
	strategies []strategy
}

// New compiles the strategy table. defaultCC is the country code assumed
// for bare local numbers (e.g. "52"); it must be non-empty digits.
func New(defaultCC string) *Extractor {
	x := &Extractor{defaultCC: defaultCC}
	x.strategies = []strategy{
		{
			name:       "international_plus",
			re:         regexp.MustCompile(`\+(\d{1,4})\s*(\d{6,15})`),
			confidence: 0.95,
			canon: func(_ *Extractor, g []string) string {
				return "+" + g[1] + g[2]
			},
		},
		{
			name:       "international_no_plus",
			re:         regexp.MustCompile(`\b(\d{1,4})\s*(\d{6,15})\b`),
			confidence: 0.90,
			canon: func(_ *Extractor, g []string) string {
				return "+" + g[1] + g[2]
			},
		},
		{
			name:       "default_country",
			re:         regexp.MustCompile(`(?:\+` + defaultCC + `|` + defaultCC + `)\s*(\d{10})`),
			confidence: 0.98,
			canon: func(x *Extractor, g []string) string {
				return "+" + x.defaultCC + g[1]
			},
		},
		{
			name:       "parenthesized",
			re:         regexp.MustCompile(`\+(\d{1,4})\s*\((\d{6,15})\)`),
			confidence: 0.92,
			canon: func(_ *Extractor, g []string) string {
				return "+" + g[1] + g[2]
			},
		},
		{
			name:       "hyphenated",
			re:         regexp.MustCompile(`\+(\d{1,4})\s*-\s*(\d{6,15})`),
			confidence: 0.88,
			canon: func(_ *Extractor, g []string) string {
				return "+" + g[1] + g[2]
			},
		},
		{
			name:       "spaced",
			re:         regexp.MustCompile(`\+(\d{1,4})\s+(\d{3,5})\s+(\d{3,5})\s+(\d{3,5})`),
			confidence: 0.85,
			canon: func(_ *Extractor, g []string) string {
				return "+" + g[1] + g[2] + g[3] + g[4]
			},
		},
		{
			name:       "messaging_link",
			re:         regexp.MustCompile(`wa\.me/(\d{10,15})`),
			confidence: 0.96,
			canon: func(_ *Extractor, g []string) string {
				return "+" + g[1]
			},
		},
		{
			name:       "labeled",
			re:         regexp.MustCompile(`(?i)(?:WhatsApp|WA|Tel[ée]fono|Phone|Cel|M[óo]vil|Tel):\s*(\+?[\d\s\-().]{7,20})`),
			confidence: 0.94,
			canon: func(x *Extractor, g []string) string {
				return x.normalize(g[1])
			},
		},
	}
	return x
}

// ExtractAll returns every distinct canonical number found in text,
// sorted by non-increasing confidence. Per number, the highest-confidence
// strategy instance wins. Candidates that fail validation are discarded
// silently.
func (x *Extractor) ExtractAll(text string) []Extracted {
	if text == "" {
		return nil
	}

	var found []Extracted
	for _, st := range x.strategies {
		for _, idx := range st.re.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, len(idx)/2)
			for i := range groups {
				if idx[2*i] >= 0 {
					groups[i] = text[idx[2*i]:idx[2*i+1]]
				}
			}
			num := st.canon(x, groups)
			if !valid(num) {
				continue
			}
			found = append(found, Extracted{
				Number:     num,
				Raw:        groups[0],
				Start:      idx[0],
				End:        idx[1],
				Confidence: st.confidence,
				Strategy:   st.name,
			})
		}
	}

	// Dedup by canonical number, keeping the most confident instance.
	// First-seen order is preserved so ties sort deterministically.
	best := map[string]int{}
	var unique []Extracted
	for _, e := range found {
		if i, ok := best[e.Number]; ok {
			if e.Confidence > unique[i].Confidence {
				unique[i] = e
			}
			continue
		}
		best[e.Number] = len(unique)
		unique = append(unique, e)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})
	return unique
}

// ExtractPrimary returns the single best candidate, if any.
func (x *Extractor) ExtractPrimary(text string) (Extracted, bool) {
	all := x.ExtractAll(text)
	if len(all) == 0 {
		return Extracted{}, false
	}
	return all[0], true
}

// Numbers is ExtractAll reduced to canonical strings.
func (x *Extractor) Numbers(text string) []string {
	all := x.ExtractAll(text)
	if len(all) == 0 {
		return nil
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Number
	}
	return out
}

// normalize strips separators from a loosely formatted number and attaches
// a country code when the shape implies one.
func (x *Extractor) normalize(raw string) string {
	n := separators.Replace(raw)
	switch {
	case strings.HasPrefix(n, "+"):
		return n
	case strings.HasPrefix(n, x.defaultCC) && len(n) >= len(x.defaultCC)+10:
		return "+" + n
	case strings.HasPrefix(n, "1") && len(n) == 11:
		return "+" + n
	case len(n) == 10 && !strings.HasPrefix(n, "0"):
		// Bare local number: assume the default country.
		return "+" + x.defaultCC + n
	case len(n) >= 10:
		return "+" + n
	default:
		return n
	}
}

var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// valid applies the canonical-form checks: leading "+", 10-15 digits,
// digits only. The country-code prefix lookup is deliberately soft and
// never rejects; see countryCodes.
func valid(num string) bool {
	if !strings.HasPrefix(num, "+") {
		return false
	}
	digits := num[1:]
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// Country reports the allow-list name for a canonical number's two-digit
// prefix, or "" when unknown.
func Country(num string) string {
	d := strings.TrimPrefix(num, "+")
	if len(d) >= 2 {
		if name, ok := countryCodes[d[:2]]; ok {
			return name
		}
	}
	if len(d) >= 1 {
		if name, ok := countryCodes[d[:1]]; ok {
			return name
		}
	}
	return ""
}
