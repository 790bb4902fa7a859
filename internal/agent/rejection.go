package agent

import (
	"fmt"
	"strings"
)

// RejectionKind is the closed set of reasons a proposal can be turned down.
type RejectionKind int

const (
	// RejectionMalformed covers output the loop could not use: no decision
	// block, no move in it, or a failed generation call.
	RejectionMalformed RejectionKind = iota + 1
	// RejectionIllegal is a well-formed candidate that is not a legal move.
	RejectionIllegal
)

func (k RejectionKind) String() string {
	switch k {
	case RejectionMalformed:
		return "malformed"
	case RejectionIllegal:
		return "illegal"
	default:
		return "unknown"
	}
}

// Rejection is fed back into the next strategist prompt.
type Rejection struct {
	Kind RejectionKind
	// Detail describes a malformed proposal.
	Detail string
	// Candidate and Hint describe an illegal proposal.
	Candidate string
	Hint      []string
}

// Reason renders the rejection for the strategist.
func (r Rejection) Reason() string {
	switch r.Kind {
	case RejectionMalformed:
		return r.Detail
	case RejectionIllegal:
		return fmt.Sprintf("Move '%s' is ILLEGAL. Legal moves are: [%s]...", r.Candidate, strings.Join(r.Hint, ", "))
	default:
		return "rejected"
	}
}

func malformedResponse() Rejection {
	return Rejection{Kind: RejectionMalformed, Detail: `Invalid JSON format. I need {"move": "..."}`}
}

func generationFailure(err error) Rejection {
	return Rejection{Kind: RejectionMalformed, Detail: fmt.Sprintf("Internal Error: %v", err)}
}

func noMoveFound() Rejection {
	return Rejection{Kind: RejectionMalformed, Detail: "No move found"}
}

func illegalMove(candidate string, legal []string, hintLen int) Rejection {
	if hintLen > len(legal) {
		hintLen = len(legal)
	}
	hint := make([]string, hintLen)
	copy(hint, legal[:hintLen])
	return Rejection{Kind: RejectionIllegal, Candidate: candidate, Hint: hint}
}
