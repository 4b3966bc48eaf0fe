package domain

import (
	"math"
	"strings"
)

// Operator is the vote direction written right after the subject.
type Operator string

const (
	OperatorIncrement Operator = "++"
	OperatorDecrement Operator = "--"
)

// Apply returns the karma value after this operator is applied to current.
// The result saturates at the int64 limits.
func (o Operator) Apply(current int64) int64 {
	if o == OperatorDecrement {
		if current == math.MinInt64 {
			return current
		}
		return current - 1
	}
	if current == math.MaxInt64 {
		return current
	}
	return current + 1
}

// Vote is a parsed karma vote. Subject is the raw matched text and keeps its
// double quotes: it is the key under which karma is stored.
type Vote struct {
	Subject  string
	Operator Operator
}

// DisplaySubject is the subject with every double quote removed.
func (v Vote) DisplaySubject() string {
	return strings.ReplaceAll(v.Subject, `"`, "")
}

// Event is one inbound chat message as delivered by the outgoing webhook.
type Event struct {
	Token       string
	UserName    string
	Text        string
	UserID      string
	TeamID      string
	ChannelID   string
	TriggerWord string
}

// Reply is the message posted back into the channel.
type Reply struct {
	Text string `json:"text,omitempty"`
}

// Outcome describes what the handler did with an event.
type Outcome int

const (
	OutcomeApplied          Outcome = iota // karma updated and persisted
	OutcomeUnauthorized                    // token mismatch
	OutcomeSelfMessage                     // message came from the bot itself
	OutcomeNoMatch                         // text does not start with a vote
	OutcomeInvalidValue                    // stored value for the subject is not a number
	OutcomeStoreUnavailable                // load or save failed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeSelfMessage:
		return "self_message"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeInvalidValue:
		return "invalid_value"
	case OutcomeStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Standing is one subject's karma in a leaderboard.
type Standing struct {
	Subject string `json:"subject"`
	Karma   int64  `json:"karma"`
}
