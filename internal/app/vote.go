package app

import (
	"regexp"

	"github.com/ew73/slack-karma/internal/domain"
)

// votePattern matches a vote at the very start of a message:
//
//	stuff++
//	"red hot chili peppers"++
//	"massive debt"--
//
// The subject is either a run of ASCII word characters or a double-quoted span
// of word characters, '+' and whitespace. Whitespace inside quotes includes the
// Unicode space separators (NBSP among them), vertical tab, BOM and the
// line/paragraph separators.
// The operator must follow immediately. Anything after it is ignored.
var votePattern = regexp.MustCompile(`^(\w+|"[\w+\s\v\p{Zs}\x{FEFF}\x{2028}\x{2029}]+")(--|\+\+)`)

// ParseVote extracts the leading vote from text.
func ParseVote(text string) (domain.Vote, bool) {
	m := votePattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Vote{}, false
	}
	return domain.Vote{Subject: m[1], Operator: domain.Operator(m[2])}, true
}
