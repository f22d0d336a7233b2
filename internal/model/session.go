package model

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseUninitialized   Phase = "UNINITIALIZED"
	PhaseLoading         Phase = "LOADING"
	PhaseReady           Phase = "READY"
	PhaseActive          Phase = "ACTIVE"
	PhaseNoExamScheduled Phase = "NO_EXAM_SCHEDULED"
	PhaseLoadError       Phase = "LOAD_ERROR"
	PhaseTerminated      Phase = "TERMINATED"
)

// EndReason records why a session left ACTIVE.
type EndReason string

const (
	EndCompleted   EndReason = "completed"
	EndSubmitted   EndReason = "submitted"
	EndTimeout     EndReason = "timeout"
	EndSubmitError EndReason = "submission_error"
)

// SubmittedAnswer is one entry of the final submission payload. UserAnswer
// carries the placeholder "N" for unanswered questions.
type SubmittedAnswer struct {
	QuestionID  int    `json:"questionId"`
	UserAnswer  string `json:"userAnswer"`
	IsPenalized bool   `json:"isPenalized"`
}

// Submission is the final POST body sent to the exam gateway.
type Submission struct {
	QuizSessionID    string            `json:"quizSessionId"`
	TotalWarnings    int               `json:"totalWarnings"`
	SubmittedAnswers []SubmittedAnswer `json:"submittedAnswers"`
}

// UnansweredPlaceholder is sent in place of a missing answer.
const UnansweredPlaceholder = "N"

// Snapshot is the rendering-facing projection of the full session state.
// The front end renders exclusively from this; it owns no state of its own.
type Snapshot struct {
	Phase            Phase            `json:"phase"`
	Position         int              `json:"position"`
	TotalQuestions   int              `json:"totalQuestions"`
	CurrentQuestion  *Question        `json:"currentQuestion,omitempty"`
	SelectedOption   string           `json:"selectedOption,omitempty"`
	Progress         []QuestionStatus `json:"progress"`
	AnsweredCount    int              `json:"answeredCount"`
	ProgressText     string           `json:"progressText"`
	Breadcrumb       string           `json:"breadcrumb"`
	RemainingSeconds int              `json:"remainingSeconds"`
	TimeText         string           `json:"timeText"`
	ProgressOffset   float64          `json:"progressOffset"`
	WarningCount     int              `json:"warningCount"`
	InFullscreen     bool             `json:"inFullscreen"`
	AwaitingConfirm  bool             `json:"awaitingConfirm"`
	Instructions     *Instructions    `json:"instructions,omitempty"`
}

// Instructions is the pre-start exam summary shown by the instruction modal.
type Instructions struct {
	TotalQuestions string  `json:"totalQuestions"`
	TimeLimit      string  `json:"timeLimit"`
	FreeWarnings   int     `json:"freeWarnings"`
	PenalizedMarks float64 `json:"penalizedMarks"`
}
