package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// MatchThreshold is the minimum similarity for a parsed title to attach
// to an already known show instead of creating a new one
const MatchThreshold = 0.85

// nearMissFloor marks new shows whose best candidate scored close to the
// threshold, so borderline creations can be surfaced later
const nearMissFloor = 0.45

// KnownShow is the matcher's view of a stored show
type KnownShow struct {
	ID       uint64
	Name     string
	Aliases  []string
	Episodes int // stored episode count, used to break score ties
}

// Score computes similarity between two titles in [0,1] over their
// normalized forms. 1 means the normalized forms are identical.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	dist := levenshtein.ComputeDistance(na, nb)
	longer := utf8.RuneCountInString(na)
	if l := utf8.RuneCountInString(nb); l > longer {
		longer = l
	}

	return 1 - float64(dist)/float64(longer)
}

// SearchScore is Score with a floor for substring hits, so short queries
// still rank against long show names
func SearchScore(query, name string) float64 {
	s := Score(query, name)
	nq := Normalize(query)
	if len(nq) >= 3 && strings.Contains(Normalize(name), nq) && s < 0.9 {
		return 0.9
	}
	return s
}

// Match parses a raw release title and resolves it against the known
// shows. Above MatchThreshold the best candidate wins, ties going to the
// show that already has the most episodes. Below it the release keeps
// ShowID zero and names a new show; Confidence still carries the best
// score so near misses are visible.
func Match(raw string, knowns []KnownShow) *Release {
	rel := Parse(raw)
	if rel.CleanTitle == "" {
		return rel
	}

	var best *KnownShow
	bestScore := 0.0
	for i := range knowns {
		s := scoreAgainst(rel.CleanTitle, &knowns[i])
		if s > bestScore || (s == bestScore && best != nil && knowns[i].Episodes > best.Episodes) {
			best = &knowns[i]
			bestScore = s
		}
	}

	rel.Confidence = bestScore
	if best != nil && bestScore >= MatchThreshold {
		rel.ShowID = best.ID
		rel.ShowName = best.Name
	}

	return rel
}

// NearMiss reports whether a new-show release scored close enough to an
// existing show that the creation deserves a second look
func (r *Release) NearMiss() bool {
	return r.ShowID == 0 && r.Confidence >= nearMissFloor
}

// scoreAgainst takes the best score across the show's name and aliases
func scoreAgainst(title string, show *KnownShow) float64 {
	best := Score(title, show.Name)
	for _, alias := range show.Aliases {
		if s := Score(title, alias); s > best {
			best = s
		}
	}
	return best
}
