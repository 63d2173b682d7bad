package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abhisek/stepwise/internal/apperr"
)

// BadgeXPAward is the fixed XP bonus granted with every badge.
const BadgeXPAward = 25

// User is a learner account.
type User struct {
	ID                int64      `db:"id" json:"id"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	Username          string     `db:"username" json:"username"`
	Name              string     `db:"name" json:"name"`
	Grade             int        `db:"grade" json:"grade"`
	Language          string     `db:"language" json:"language"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	WeeklyGoalTopics  int        `db:"weekly_goal_topics" json:"weeklyGoalTopics"`
	WeeklyGoalMinutes int        `db:"weekly_goal_minutes" json:"weeklyGoalMinutes"`
	CurrentSubject    string     `db:"current_subject" json:"currentSubject"`
	XPPoints          int        `db:"xp_points" json:"xpPoints"`
	Streak            int        `db:"streak" json:"streak"`
	LastActive        *time.Time `db:"last_active" json:"lastActive,omitempty"`
	ParentContact     string     `db:"parent_contact" json:"parentContact,omitempty"`
}

// Topic is a static catalog entry.
type Topic struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Subject  string `db:"subject" json:"subject"`
	Order    int    `db:"sort_order" json:"order"`
	IsLocked bool   `db:"is_locked" json:"isLocked"`
}

// Options is the ordered answer list of a question, stored as JSON.
type Options []string

// Value implements driver.Valuer.
func (o Options) Value() (driver.Value, error) {
	if o == nil {
		o = Options{}
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *Options) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan options: unsupported type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(o))
}

// Question is an immutable multiple-choice item.
type Question struct {
	ID            int64   `db:"id" json:"id"`
	TopicID       int64   `db:"topic_id" json:"topicId"`
	Text          string  `db:"question_text" json:"questionText"`
	Options       Options `db:"options" json:"options"`
	CorrectOption int     `db:"correct_option" json:"correctOption"`
	Difficulty    int     `db:"difficulty" json:"difficulty"`
	Hint          string  `db:"hint" json:"hint,omitempty"`
}

// Validate checks the structural invariants of a question.
func (q *Question) Validate() error {
	switch {
	case q.Text == "":
		return apperr.Invalid("questionText", "must not be empty")
	case len(q.Options) < 2:
		return apperr.Invalid("options", "need at least 2 options, got %d", len(q.Options))
	case q.CorrectOption < 0 || q.CorrectOption >= len(q.Options):
		return apperr.Invalid("correctOption", "%d out of range [0, %d)", q.CorrectOption, len(q.Options))
	case q.Difficulty < 1:
		return apperr.Invalid("difficulty", "must be positive, got %d", q.Difficulty)
	}
	return nil
}

// UserProgress is the per-user, per-topic mastery record.
type UserProgress struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"userId"`
	TopicID            int64     `db:"topic_id" json:"topicId"`
	MasteryPercentage  int       `db:"mastery_percentage" json:"masteryPercentage"`
	QuestionsAttempted int       `db:"questions_attempted" json:"questionsAttempted"`
	QuestionsCorrect   int       `db:"questions_correct" json:"questionsCorrect"`
	LastAttempted      time.Time `db:"last_attempted" json:"lastAttempted"`
}

// UserSession is one learning session. EndTime is nil while active.
type UserSession struct {
	ID                 int64      `db:"id" json:"id"`
	UserID             int64      `db:"user_id" json:"userId"`
	TopicID            int64      `db:"topic_id" json:"topicId"`
	StartTime          time.Time  `db:"start_time" json:"startTime"`
	EndTime            *time.Time `db:"end_time" json:"endTime,omitempty"`
	QuestionsAttempted int        `db:"questions_attempted" json:"questionsAttempted"`
	QuestionsCorrect   int        `db:"questions_correct" json:"questionsCorrect"`
	XPEarned           int        `db:"xp_earned" json:"xpEarned"`
	Summary            string     `db:"summary" json:"summary"`
}

// UserBadge is an achievement record.
type UserBadge struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"userId"`
	BadgeName        string    `db:"badge_name" json:"badgeName"`
	BadgeDescription string    `db:"badge_description" json:"badgeDescription"`
	DateEarned       time.Time `db:"date_earned" json:"dateEarned"`
}

// ParentSummary is the report generated for a completed session.
type ParentSummary struct {
	ID        int64      `db:"id" json:"id"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UserID    int64      `db:"user_id" json:"userId"`
	SessionID int64      `db:"session_id" json:"sessionId"`
	Content   string     `db:"content" json:"content"`
	Sent      bool       `db:"sent" json:"sent"`
	SentAt    *time.Time `db:"sent_at" json:"sentAt,omitempty"`
}

// UserRepo manages learner accounts.
type UserRepo interface {
	// Create inserts u and sets its ID. Returns ErrDuplicate for a taken
	// username.
	Create(ctx context.Context, u *User) error

	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)

	// AddXP increments the user's XP total by delta.
	AddXP(ctx context.Context, id int64, delta int) error

	// RecordActivity stores the streak computed at login.
	RecordActivity(ctx context.Context, id int64, streak int, at time.Time) error
}

// CatalogRepo gives access to topics and their questions.
type CatalogRepo interface {
	CreateTopic(ctx context.Context, t *Topic) error
	Topic(ctx context.Context, id int64) (*Topic, error)
	TopicByName(ctx context.Context, subject, name string) (*Topic, error)

	// Topics lists topics of subject ordered by Order; all topics when
	// subject is empty.
	Topics(ctx context.Context, subject string) ([]Topic, error)

	// CreateQuestion validates and inserts q.
	CreateQuestion(ctx context.Context, q *Question) error

	// QuestionsForTopic returns the topic's questions in ascending id
	// order. An empty result is not an error.
	QuestionsForTopic(ctx context.Context, topicID int64) ([]Question, error)

	// QuestionsForTopicAtDifficulty is QuestionsForTopic restricted to an
	// exact difficulty.
	QuestionsForTopicAtDifficulty(ctx context.Context, topicID int64, difficulty int) ([]Question, error)
}

// ProgressRepo manages per-user-per-topic mastery records.
type ProgressRepo interface {
	// Get returns ErrNotFound when no record exists for the pair.
	Get(ctx context.Context, userID, topicID int64) (*UserProgress, error)

	// Create inserts p, stamping LastAttempted. Returns ErrDuplicate when
	// the pair already has a record.
	Create(ctx context.Context, p *UserProgress) error

	// Update overwrites the counters of the (UserID, TopicID) record and
	// stamps LastAttempted. Returns ErrNotFound when absent.
	Update(ctx context.Context, p *UserProgress) error

	ListForUser(ctx context.Context, userID int64) ([]UserProgress, error)
}

// SessionRepo manages learning session records.
type SessionRepo interface {
	// Create inserts s, stamping StartTime.
	Create(ctx context.Context, s *UserSession) error

	Get(ctx context.Context, id int64) (*UserSession, error)

	// Update writes the mutable fields (end time, counters, XP, summary).
	// Returns ErrNotFound when absent.
	Update(ctx context.Context, s *UserSession) error

	// ListForUser returns the user's sessions, newest first. limit <= 0
	// means no limit.
	ListForUser(ctx context.Context, userID int64, limit int) ([]UserSession, error)
}

// BadgeRepo manages earned badges.
type BadgeRepo interface {
	// Create inserts b and credits the user with BadgeXPAward in the same
	// transaction.
	Create(ctx context.Context, b *UserBadge) error

	ListForUser(ctx context.Context, userID int64) ([]UserBadge, error)
}

// SummaryRepo manages parent summaries.
type SummaryRepo interface {
	Create(ctx context.Context, s *ParentSummary) error

	// Pending returns unsent summaries, oldest first.
	Pending(ctx context.Context, limit int) ([]ParentSummary, error)

	// MarkSent flags the summary as delivered at the given time.
	MarkSent(ctx context.Context, id int64, at time.Time) error

	ListForUser(ctx context.Context, userID int64) ([]ParentSummary, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match (empty = any)
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM call.
type LLMRequestEvent struct {
	ID           int64     `db:"id"`
	Timestamp    time.Time `db:"created_at"`
	Provider     string    `db:"provider"`
	Model        string    `db:"model"`
	Purpose      string    `db:"purpose"`
	InputTokens  int       `db:"input_tokens"`
	OutputTokens int       `db:"output_tokens"`
	LatencyMs    int64     `db:"latency_ms"`
	Success      bool      `db:"success"`
	ErrorMessage string    `db:"error_message"`
	RequestBody  string    `db:"request_body"`
	ResponseBody string    `db:"response_body"`
}

// LLMUsage aggregates token usage for one purpose or model.
type LLMUsage struct {
	Key          string `db:"usage_key"`
	Calls        int    `db:"calls"`
	InputTokens  int    `db:"input_tokens"`
	OutputTokens int    `db:"output_tokens"`
	AvgLatencyMs int64  `db:"avg_latency_ms"`
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns ErrNotFound for an unknown id.
	GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)
}
