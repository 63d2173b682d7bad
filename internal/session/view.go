package session

import (
	"github.com/abhisek/stepwise/internal/engagement"
	"github.com/abhisek/stepwise/internal/scoring"
	"github.com/abhisek/stepwise/internal/store"
)

// QuestionView is a question as shown to the learner, without its answer.
type QuestionView struct {
	ID         int64    `json:"id"`
	Text       string   `json:"questionText"`
	Options    []string `json:"options"`
	Difficulty int      `json:"difficulty"`
}

// View is a snapshot of a session for presentation.
type View struct {
	SessionID  int64  `json:"sessionId"`
	UserID     int64  `json:"userId"`
	TopicID    int64  `json:"topicId"`
	TopicName  string `json:"topicName"`
	Phase      Phase  `json:"phase"`
	Checkpoint bool   `json:"checkpoint"`

	// Engagement is the disengagement detector state.
	Engagement string `json:"engagement"`

	Question *QuestionView `json:"question,omitempty"`

	// Position is the 1-based index of the current question; equal to
	// Total once every question has been answered.
	Position int `json:"position"`
	Total    int `json:"total"`

	Difficulty int `json:"difficulty"`
	Answered   int `json:"answered"`
	Correct    int `json:"correct"`
	Accuracy   int `json:"accuracy"`

	LastAnswer *Feedback        `json:"lastAnswer,omitempty"`
	Hint       string           `json:"hint,omitempty"`
	Completion *scoring.Outcome `json:"completion,omitempty"`

	// Unsaved lists the completion steps that still need a retry.
	Unsaved []string `json:"unsaved,omitempty"`
}

// viewLocked snapshots st. The caller holds st.mu.
func viewLocked(st *state) View {
	v := View{
		SessionID:  st.id,
		UserID:     st.user.ID,
		TopicID:    st.topic.ID,
		TopicName:  st.topic.Name,
		Phase:      st.phase,
		Checkpoint: st.checkpoint(),
		Total:      len(st.questions),
		Difficulty: st.adapter.Level(),
		Answered:   st.answered,
		Correct:    st.correct,
		Accuracy:   scoring.Accuracy(st.correct, st.answered),
		LastAnswer: st.lastAnswer,
	}
	if st.phase == PhaseActive {
		v.Engagement = st.detector.State().String()
	} else {
		v.Engagement = engagement.StateIdle.String()
	}
	if q := st.current(); q != nil {
		v.Question = questionView(q)
		v.Position = st.index + 1
	} else {
		v.Position = len(st.questions)
	}
	if st.hintShown {
		v.Hint = st.hint
	}
	if st.outcome != nil {
		out := *st.outcome
		v.Completion = &out
	}
	v.Unsaved = unsavedSteps(st)
	return v
}

// unsavedSteps names the failed completion steps. The caller holds st.mu.
func unsavedSteps(st *state) []string {
	if st.unsaved == nil {
		return nil
	}
	steps := make([]string, len(st.unsaved.Failures))
	for i, f := range st.unsaved.Failures {
		steps[i] = f.Step
	}
	return steps
}

func questionView(q *store.Question) *QuestionView {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return &QuestionView{
		ID:         q.ID,
		Text:       q.Text,
		Options:    opts,
		Difficulty: q.Difficulty,
	}
}
