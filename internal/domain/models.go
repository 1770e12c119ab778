package domain

import "time"

// Phase is the coarse lifecycle stage of a quiz session.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// LoadStatus tells the presentation layer why a session is still loading.
type LoadStatus string

const (
	LoadStatusLoading     LoadStatus = "loading"
	LoadStatusReady       LoadStatus = "ready"
	LoadStatusUnavailable LoadStatus = "unavailable"
	LoadStatusNoQuestions LoadStatus = "no_questions"
)

// Question is a single multiple choice trivia question. Prompt and option
// texts are opaque display strings and may contain markup.
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// IsCorrect reports whether option is the correct answer.
func (q Question) IsCorrect(option string) bool {
	return option == q.CorrectAnswer
}

// HasOption reports whether option is one of the presented options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// PublicQuestion is the view of a question that is safe to show before answering.
type PublicQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Feedback is revealed once a selection has been made for the current question.
type Feedback struct {
	Selected      string `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
}

// SessionSnapshot is an immutable copy of a session's user facing state.
type SessionSnapshot struct {
	SessionID        string           `json:"sessionId"`
	Config           NormalizedConfig `json:"config"`
	Phase            Phase            `json:"phase"`
	LoadStatus       LoadStatus       `json:"loadStatus"`
	LoadError        string           `json:"loadError,omitempty"`
	CurrentIndex     int              `json:"currentIndex"`
	Total            int              `json:"total"`
	Question         *PublicQuestion  `json:"question,omitempty"`
	Feedback         *Feedback        `json:"feedback,omitempty"`
	IsLast           bool             `json:"isLast"`
	Score            int              `json:"score"`
	SecondsRemaining int              `json:"secondsRemaining"`
	Result           *Result          `json:"result,omitempty"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// User is the anonymous identity a score is saved under.
type User struct {
	ID string `json:"id"`
}

// ShortID returns the abbreviated guest tag shown to players.
func (u User) ShortID() string {
	if len(u.ID) <= 6 {
		return u.ID
	}
	return u.ID[:6]
}

// ScoreRecord is one saved finished session.
type ScoreRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
	CreatedAt  time.Time `json:"createdAt"`
}
