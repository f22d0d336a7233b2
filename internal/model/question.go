package model

// Option is a single labeled answer choice ("A" → "Paris").
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question represents a single exam question as held by the session.
// UserAnswer is empty while unanswered; IsPenalized is set by violation
// escalation and never cleared for the lifetime of the session.
type Question struct {
	ID           int      `json:"id"`
	QuestionText string   `json:"questionText"`
	Options      []Option `json:"options"`
	Marks        int      `json:"marks"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	UserAnswer   string   `json:"userAnswer"`
	IsPenalized  bool     `json:"isPenalized"`
}

// MarksForQuestion derives the point value from the stable question
// identifier: the first 50 identifiers are worth 1 mark, the rest 2.
func MarksForQuestion(id int) int {
	if id >= 1 && id <= 50 {
		return 1
	}
	return 2
}

// QuestionStatus is the per-question status projection shown in the
// progress panel.
type QuestionStatus string

const (
	StatusUnanswered QuestionStatus = "unanswered"
	StatusAnswered   QuestionStatus = "answered"
	StatusSkipped    QuestionStatus = "skipped"
	StatusPenalized  QuestionStatus = "penalized"
)

// StatusFor computes the canonical status of a question. Skipped is not
// derivable from the question itself; it is a navigation event recorded
// by the session controller.
func StatusFor(q *Question) QuestionStatus {
	switch {
	case q.IsPenalized:
		return StatusPenalized
	case q.UserAnswer != "":
		return StatusAnswered
	default:
		return StatusUnanswered
	}
}
