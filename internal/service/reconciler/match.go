package reconciler

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/domain/vo"
)

// MatchRule names the orphan search rule that accepted a stored asset
type MatchRule int

const (
	MatchNone MatchRule = iota
	MatchExact
	MatchStem
	MatchSuffix
)

func (r MatchRule) String() string {
	switch r {
	case MatchExact:
		return "exact"
	case MatchStem:
		return "stem"
	case MatchSuffix:
		return "suffix"
	default:
		return "none"
	}
}

// storedPrefix matches names written as "<slot>-<external id>-<original>"
var storedPrefix = regexp.MustCompile(`^[a-z0-9_]+?-\d+-(.+)$`)

// MatchFilename reports which rule, if any, lets stored stand in for want.
// Rules are tried in precedence order and compare case-insensitively.
// Only the original-filename part of a stored name is compared, so the
// slot and external id written in front of it never take part.
func MatchFilename(want vo.Filename, stored string) MatchRule {
	if want.IsEmpty() || stored == "" {
		return MatchNone
	}

	if want.EqualFold(stored) {
		return MatchExact
	}

	original := strings.ToLower(stored)
	if m := storedPrefix.FindStringSubmatch(original); m != nil {
		original = m[1]
	}

	ext := strings.TrimPrefix(path.Ext(original), ".")
	if ext != want.Ext() {
		return MatchNone
	}
	stem := strings.TrimSuffix(original, path.Ext(original))

	if want.Stem() != "" && sameStem(stem, want.Stem()) {
		return MatchStem
	}

	sanitized := vo.MustFilename(want.Sanitized()).Stem()
	if original != strings.ToLower(stored) && sameStem(stem, sanitized) {
		return MatchSuffix
	}

	return MatchNone
}

// sameStem reports whether stem is want, optionally followed by the "-N"
// suffix storage adds to avoid overwriting.
func sameStem(stem, want string) bool {
	if stem == want {
		return true
	}
	rest, ok := strings.CutPrefix(stem, want+"-")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Candidate is a stored asset accepted by one of the rules
type Candidate struct {
	Asset *domain.MediaAsset
	Rule  MatchRule
}

// SelectCandidates filters assets down to those matching want, highest id first
func SelectCandidates(want vo.Filename, assets []*domain.MediaAsset) []Candidate {
	var out []Candidate
	for _, a := range assets {
		if rule := MatchFilename(want, a.Filename); rule != MatchNone {
			out = append(out, Candidate{Asset: a, Rule: rule})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Asset.ID != out[j].Asset.ID {
			return out[i].Asset.ID > out[j].Asset.ID
		}
		return out[i].Asset.CreatedAt.After(out[j].Asset.CreatedAt)
	})
	return out
}
