package gutter

// status.go - verification statuses, line tiers and the integer encoding shown to renderers.

import (
	"fmt"
	"strconv"
)

// VerificationStatus is the per-symbol status published by the language server.
type VerificationStatus int

const (
	StatusStale   VerificationStatus = 0
	StatusQueued  VerificationStatus = 1
	StatusRunning VerificationStatus = 2
	StatusError   VerificationStatus = 4
	StatusCorrect VerificationStatus = 5
)

func (s VerificationStatus) String() string {
	switch s {
	case StatusStale:
		return "stale"
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusError:
		return "error"
	case StatusCorrect:
		return "correct"
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// Settled reports whether the verifier is done with the symbol.
func (s VerificationStatus) Settled() bool {
	return s == StatusError || s == StatusCorrect
}

// Tier is the coarse classification of a line.
type Tier int

const (
	TierNothing Tier = iota
	TierVerified
	TierErrorContext
	TierAssertionFailed
	TierResolutionError
)

var tierBase = [...]int{
	TierNothing:         0,
	TierVerified:        200,
	TierErrorContext:    300,
	TierAssertionFailed: 400,
	TierResolutionError: 500,
}

var tierNames = [...]string{
	TierNothing:         "nothing",
	TierVerified:        "verified",
	TierErrorContext:    "error-context",
	TierAssertionFailed: "assertion-failed",
	TierResolutionError: "resolution-error",
}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "tier(" + strconv.Itoa(int(t)) + ")"
	}
	return tierNames[t]
}

// Settle is how fresh the verification result of a line is.
type Settle int

const (
	SettlePending Settle = iota // stale or queued
	SettleRunning
	SettleSettled
)

func (s Settle) String() string {
	switch s {
	case SettlePending:
		return "pending"
	case SettleRunning:
		return "running"
	case SettleSettled:
		return "settled"
	}
	return "settle(" + strconv.Itoa(int(s)) + ")"
}

// LineStatus is the classification of one line.
type LineStatus struct {
	Tier   Tier
	Settle Settle
}

// Code returns the integer understood by gutter renderers: the tier base plus
// the settle offset. Resolution errors carry no offset.
func (l LineStatus) Code() int {
	if l.Tier == TierResolutionError {
		return tierBase[TierResolutionError]
	}
	return tierBase[l.Tier] + int(l.Settle)
}

func (l LineStatus) String() string {
	if l.Tier == TierResolutionError || l.Settle == SettleSettled {
		return l.Tier.String()
	}
	return l.Tier.String() + " (" + l.Settle.String() + ")"
}

// Encode converts a per-line sequence to renderer codes.
func Encode(lines []LineStatus) []int {
	out := make([]int, len(lines))
	for i, l := range lines {
		out[i] = l.Code()
	}
	return out
}

// Decode is the inverse of LineStatus.Code.
func Decode(code int) (LineStatus, error) {
	if code == tierBase[TierResolutionError] {
		return LineStatus{Tier: TierResolutionError, Settle: SettleSettled}, nil
	}
	for t := TierNothing; t < TierResolutionError; t++ {
		off := code - tierBase[t]
		if off >= int(SettlePending) && off <= int(SettleSettled) {
			return LineStatus{Tier: t, Settle: Settle(off)}, nil
		}
	}
	return LineStatus{}, fmt.Errorf("unknown line status code %d", code)
}

func settleOf(status VerificationStatus, known bool) (Settle, error) {
	if !known {
		return SettleSettled, nil
	}
	switch status {
	case StatusStale, StatusQueued:
		return SettlePending, nil
	case StatusRunning:
		return SettleRunning, nil
	case StatusError, StatusCorrect:
		return SettleSettled, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownStatus, int(status))
}
