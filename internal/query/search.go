package query

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ashgale/canon/internal/graph"
)

// Match is one free-text hit with its relevance score.
type Match struct {
	Entity graph.Entity `json:"entity"`
	Score  float64      `json:"score"`
}

// Search scores entities against free text. Matching is case-insensitive
// via Unicode case folding, so it works for more than ASCII. The text is
// tokenized on whitespace; each token that appears in the entity name
// contributes to the score, with exact token hits worth more than
// substring hits. Ties are broken by graph insertion order, which keeps
// search output deterministic across runs.
//
// limit > 0 truncates the result; limit <= 0 returns every hit.
func Search(g *graph.Graph, text string, limit int) []Match {
	folder := cases.Fold()
	tokens := strings.Fields(folder.String(text))
	if len(tokens) == 0 {
		return nil
	}

	var matches []Match
	for _, e := range g.Entities() {
		score := scoreName(folder.String(e.Name), tokens)
		if score > 0 {
			matches = append(matches, Match{Entity: e, Score: score})
		}
	}

	// Entities() is insertion-ordered, so a stable sort preserves that
	// order among equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// scoreName scores a folded entity name against folded query tokens.
// An exact word hit scores 1.0; a substring hit scores by how much of the
// name the token covers, so "mist" ranks "Mistwood" over
// "Mistwood Border Watchtower".
func scoreName(name string, tokens []string) float64 {
	if name == "" {
		return 0
	}
	words := strings.Fields(name)

	var score float64
	for _, tok := range tokens {
		exact := false
		for _, w := range words {
			if w == tok {
				exact = true
				break
			}
		}
		switch {
		case exact:
			score += 1.0
		case strings.Contains(name, tok):
			score += float64(len(tok)) / float64(len(name))
		}
	}
	return score
}
