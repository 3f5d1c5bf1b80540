// Package places resolves ambiguous geocoding results to a single place.
package places

import (
	"sort"
	"strings"
)

// minMeaningfulToken is the shortest token considered for substring matches.
const minMeaningfulToken = 3

// Scoring weights.
const (
	scoreExactName    = 3
	scoreNameContains = 1
	scoreStateMatch   = 3
	scoreCountryHint  = 3
	scoreCountryToken = 2
)

// countryHints maps lexical hints found in a query to ISO-2 country codes.
var countryHints = []struct {
	hint    string
	country string
}{
	{hint: "india", country: "IN"},
	{hint: "bharat", country: "IN"},
}

// Candidate is a single geocoding match.
type Candidate struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   *string `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// StateName returns the state or an empty string.
func (c Candidate) StateName() string {
	if c.State == nil {
		return ""
	}
	return *c.State
}

// Key identifies the place as "name, state, country", skipping empty parts.
// Favorites and lookup statistics use the same key.
func (c Candidate) Key() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Name, c.StateName(), c.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// QueryContext holds the tokenized form of a free-text query.
type QueryContext struct {
	Raw            string
	Tokens         []string
	HintedCountry  string
	lowered        string
	meaningfulOnly []string
}

// NewQueryContext tokenizes query. Tokens are the lower-cased runs of [a-z0-9].
func NewQueryContext(query string) QueryContext {
	lowered := strings.ToLower(query)
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})

	qc := QueryContext{
		Raw:     query,
		Tokens:  tokens,
		lowered: lowered,
	}

	for _, t := range tokens {
		if len(t) >= minMeaningfulToken {
			qc.meaningfulOnly = append(qc.meaningfulOnly, t)
		}
	}

	for _, h := range countryHints {
		if strings.Contains(lowered, h.hint) {
			qc.HintedCountry = h.country
			break
		}
	}

	return qc
}

// FirstToken returns the first token or an empty string.
func (q QueryContext) FirstToken() string {
	if len(q.Tokens) == 0 {
		return ""
	}
	return q.Tokens[0]
}

// MeaningfulTokens returns tokens long enough for substring matching.
func (q QueryContext) MeaningfulTokens() []string {
	return q.meaningfulOnly
}

// Score rates how well c matches the query.
func (q QueryContext) Score(c Candidate) int {
	name := strings.ToLower(c.Name)
	state := strings.ToLower(c.StateName())
	country := strings.ToUpper(c.Country)

	score := 0
	if first := q.FirstToken(); first != "" && name == first {
		score += scoreExactName
	}
	if q.anyMeaningfulIn(name) {
		score += scoreNameContains
	}
	if state != "" && q.anyMeaningfulIn(state) {
		score += scoreStateMatch
	}
	if q.HintedCountry != "" && country == q.HintedCountry {
		score += scoreCountryHint
	}
	if q.hasToken(strings.ToLower(country)) {
		score += scoreCountryToken
	}
	return score
}

func (q QueryContext) anyMeaningfulIn(s string) bool {
	for _, t := range q.meaningfulOnly {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func (q QueryContext) hasToken(s string) bool {
	for _, t := range q.Tokens {
		if t == s {
			return true
		}
	}
	return false
}

// SelectBestMatch returns the highest scoring candidate for query.
// Equal scores keep the geocoder's order. candidates must not be empty.
func SelectBestMatch(query string, candidates []Candidate) Candidate {
	if len(candidates) == 0 {
		panic("places: SelectBestMatch called with no candidates")
	}

	qc := NewQueryContext(query)

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{idx: i, score: qc.Score(c)}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	return candidates[ranked[0].idx]
}
