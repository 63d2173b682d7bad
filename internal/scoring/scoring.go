// Package scoring turns a finished session into mastery, XP, badge and
// summary outcomes and persists them.
package scoring

import (
	"fmt"

	"github.com/abhisek/stepwise/internal/store"
)

const (
	// XPPerCorrect is awarded for every correct answer.
	XPPerCorrect = 5

	// AccuracyBonusThreshold is the accuracy at which AccuracyBonusXP is
	// added.
	AccuracyBonusThreshold = 80

	// AccuracyBonusXP is the bonus for a high-accuracy session.
	AccuracyBonusXP = 10

	// BadgeAccuracyThreshold is the minimum accuracy for a topic badge.
	BadgeAccuracyThreshold = 70

	// BadgeMasteryCeiling is the prior mastery at or above which no badge
	// is awarded.
	BadgeMasteryCeiling = 50

	// MaxMastery caps the mastery percentage.
	MaxMastery = 100
)

// Accuracy returns round(correct/total*100), rounding halves up.
// An empty session scores 0.
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	correct = min(max(correct, 0), total)
	return (correct*200 + total) / (2 * total)
}

// MasteryDelta returns round(accuracy/5).
func MasteryDelta(accuracy int) int {
	return (accuracy*2 + 5) / 10
}

// XPEarned returns the session XP: XPPerCorrect per correct answer plus
// AccuracyBonusXP at or above AccuracyBonusThreshold.
func XPEarned(correct, accuracy int) int {
	xp := correct * XPPerCorrect
	if accuracy >= AccuracyBonusThreshold {
		xp += AccuracyBonusXP
	}
	return xp
}

// BadgeEligible reports whether a session earns the topic badge. prior is
// the progress record before this session, nil when none existed.
func BadgeEligible(accuracy int, prior *store.UserProgress) bool {
	if accuracy < BadgeAccuracyThreshold {
		return false
	}
	return prior == nil || prior.MasteryPercentage < BadgeMasteryCeiling
}

// BadgeName returns the topic badge name.
func BadgeName(topicName string) string {
	return topicName + " Explorer"
}

// BadgeDescription returns the topic badge description.
func BadgeDescription(topicName string) string {
	return fmt.Sprintf("Completed %s with at least %d%% accuracy", topicName, BadgeAccuracyThreshold)
}

// ParentSummaryText renders the digest sent to parents.
func ParentSummaryText(userName, topicName string, accuracy, streak int) string {
	unit := "days"
	if streak == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s completed today's goal. Topic: %s. Accuracy: %d%%. Streak: %d %s.",
		userName, topicName, accuracy, streak, unit)
}

// SessionSummaryText renders the summary stored on the session record.
func SessionSummaryText(total, accuracy int) string {
	return fmt.Sprintf("Completed %d questions with %d%% accuracy.", total, accuracy)
}

// Input is everything the scorer needs about a finished session.
type Input struct {
	User      *store.User
	Topic     *store.Topic
	SessionID int64
	Correct   int
	Total     int

	// Prior is the progress record before this session, nil when none.
	// Scorer.Complete refreshes it from the store.
	Prior *store.UserProgress
}

// Outcome is the computed result of a session.
type Outcome struct {
	SessionID      int64  `json:"sessionId"`
	Correct        int    `json:"correct"`
	Total          int    `json:"total"`
	Accuracy       int    `json:"accuracy"`
	MasteryBefore  int    `json:"masteryBefore"`
	MasteryAfter   int    `json:"masteryAfter"`
	XPEarned       int    `json:"xpEarned"`
	BadgeEarned    bool   `json:"badgeEarned"`
	BadgeName      string `json:"badgeName,omitempty"`
	SessionSummary string `json:"sessionSummary"`
	ParentSummary  string `json:"parentSummary"`
}

// Compute derives the outcome without touching storage.
func Compute(in Input) Outcome {
	acc := Accuracy(in.Correct, in.Total)

	before := 0
	if in.Prior != nil {
		before = in.Prior.MasteryPercentage
	}

	out := Outcome{
		SessionID:      in.SessionID,
		Correct:        in.Correct,
		Total:          in.Total,
		Accuracy:       acc,
		MasteryBefore:  before,
		MasteryAfter:   min(MaxMastery, before+MasteryDelta(acc)),
		XPEarned:       XPEarned(in.Correct, acc),
		BadgeEarned:    BadgeEligible(acc, in.Prior),
		SessionSummary: SessionSummaryText(in.Total, acc),
		ParentSummary:  ParentSummaryText(in.User.Name, in.Topic.Name, acc, in.User.Streak),
	}
	if out.BadgeEarned {
		out.BadgeName = BadgeName(in.Topic.Name)
	}
	return out
}
