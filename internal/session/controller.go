// Package session implements the exam session state machine: the controller
// owning question and timer state, the violation monitor, the countdown
// timer, and the event stream feeding the rendering front end.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/config"
	"github.com/miss-electronics/proctor-agent/internal/credential"
	"github.com/miss-electronics/proctor-agent/internal/model"
	"github.com/miss-electronics/proctor-agent/internal/store"
)

// Sentinel errors surfaced to the local API layer.
var (
	ErrUnauthenticated    = errors.New("no valid credential present")
	ErrNotReady           = errors.New("session is not ready to start")
	ErrNotActive          = errors.New("session is not active")
	ErrNotFullscreen      = errors.New("fullscreen engagement required")
	ErrAgreementRequired  = errors.New("instructions must be agreed to")
	ErrSubmitWindowClosed = errors.New("manual submission window not open")
	ErrUnknownOption      = errors.New("label does not match any option")
	ErrNoExamScheduled    = errors.New("no exam scheduled")
	ErrFetchFailed        = errors.New("failed to load exam data")
	ErrSubmitFailed       = errors.New("failed to submit exam")
)

// Gateway is the remote exam API surface the controller needs.
type Gateway interface {
	FetchExam(ctx context.Context, token, user string) (*model.ExamPaper, error)
	SubmitExam(ctx context.Context, token, user string, sub *model.Submission) error
}

// Progress is the local store surface the controller needs.
type Progress interface {
	Save(key, value string)
	SaveInt(key string, n int)
	SaveJSON(key string, v any)
	Load(key string) (string, bool)
	LoadInt(key string) (int, bool)
	LoadJSON(key string, dst any) bool
	Clear(keys ...string)
}

// Controller is the single source of truth for exam progress. It mediates
// between the remote gateway, the local progress mirror, the countdown
// timer, the violation monitor, and the local API.
//
// One mutex serializes every mutation: HTTP handlers, WebSocket events, and
// timer ticks all take it, so ordering between independently triggered
// handlers is delivery order, never a data race.
type Controller struct {
	cfg      *config.Config
	gw       Gateway
	progress Progress
	notifier *Notifier
	log      zerolog.Logger

	// now and tickInterval are injectable for tests.
	now          func() time.Time
	tickInterval time.Duration

	mu          sync.Mutex
	phase       model.Phase
	initialized bool // one-shot initialization latch
	epoch       int  // bumped on termination; async completions check it

	cred      *credential.Credential
	questions []*model.Question
	statuses  []model.QuestionStatus

	position     int // 1-based; 0 while no question is current
	breadcrumb   string
	remaining    int
	initialTime  int
	warnings     int
	inFullscreen bool

	awaitingConfirm bool
	submitting      bool

	timerCancel context.CancelFunc

	subs      map[int]chan Event
	nextSubID int
}

// New creates a Controller in the Uninitialized phase.
func New(cfg *config.Config, gw Gateway, progress Progress, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:          cfg,
		gw:           gw,
		progress:     progress,
		notifier:     NewNotifier(),
		log:          log.With().Str("component", "session").Logger(),
		now:          time.Now,
		tickInterval: time.Second,
		phase:        model.PhaseUninitialized,
		subs:         make(map[int]chan Event),
	}
}

// Initialize fetches the exam paper and merges any locally persisted
// progress. It runs at most once per session: duplicate calls while loaded
// are no-ops. A missing/expired credential or a fetch failure releases the
// latch so a later attempt (after sign-in or on reload) can retry; a
// successful fetch must never repeat, since the gateway records the attempt.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	c.phase = model.PhaseLoading

	cred, err := credential.Load(c.progress, c.now())
	if err != nil {
		c.initialized = false
		c.phase = model.PhaseUninitialized
		c.redirect(RedirectSignIn)
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("No usable credential, redirecting to sign-in")
		return fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}
	c.cred = cred
	epoch := c.epoch
	c.mu.Unlock()

	paper, err := c.gw.FetchExam(ctx, cred.AccessToken, cred.UserName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		// Session was torn down while the fetch was in flight.
		return nil
	}

	if err != nil {
		c.initialized = false
		c.phase = model.PhaseLoadError
		c.notify(err.Error(), true, 10*time.Second)
		return fmt.Errorf("%w: %s", ErrFetchFailed, err)
	}

	if len(paper.Questions) == 0 {
		c.phase = model.PhaseNoExamScheduled
		c.notify("No exam scheduled at this time. Please try again later.", true, 10*time.Second)
		return ErrNoExamScheduled
	}

	c.buildSessionLocked(paper)

	c.log.Info().
		Str("user", cred.UserName).
		Int("questions", len(c.questions)).
		Int("remaining", c.remaining).
		Int("warnings", c.warnings).
		Msg("Session ready")

	c.pushState()
	return nil
}

// buildSessionLocked assembles questions, merges persisted progress, and
// computes the effective remaining time. Callers must hold c.mu.
func (c *Controller) buildSessionLocked(paper *model.ExamPaper) {
	questions := make([]*model.Question, 0, len(paper.Questions))
	for _, pq := range paper.Questions {
		opts := make([]model.Option, 0, len(pq.Options))
		for _, key := range sortedKeys(pq.Options) {
			opts = append(opts, model.Option{Key: key, Text: pq.Options[key]})
		}
		questions = append(questions, &model.Question{
			ID:           pq.ID,
			QuestionText: pq.Text,
			Options:      opts,
			Marks:        model.MarksForQuestion(pq.ID),
			ImageURL:     pq.ImageURL,
			IsPenalized:  pq.Penalties > 0,
		})
	}

	// A rejoin after reload must not lose prior answers: merge the
	// persisted per-question state by identifier.
	var saved []model.Question
	if c.progress.LoadJSON(store.KeyAnswers, &saved) {
		byID := make(map[int]*model.Question, len(saved))
		for i := range saved {
			byID[saved[i].ID] = &saved[i]
		}
		for _, q := range questions {
			if prev, ok := byID[q.ID]; ok {
				q.UserAnswer = prev.UserAnswer
				q.IsPenalized = q.IsPenalized || prev.IsPenalized
			}
		}
	}

	// The server-computed remaining time wins when smaller; the persisted
	// value guards a reload; the configured maximum guards a user editing
	// the local mirror to extend their time.
	remaining := paper.Timer
	if savedTime, ok := c.progress.LoadInt(store.KeyTimeRemaining); ok && savedTime < remaining {
		remaining = savedTime
	}
	if c.cfg.TotalTimeSeconds < remaining {
		remaining = c.cfg.TotalTimeSeconds
	}
	if remaining < 0 {
		remaining = 0
	}

	statuses := make([]model.QuestionStatus, len(questions))
	for i, q := range questions {
		statuses[i] = model.StatusFor(q)
	}

	warnings, _ := c.progress.LoadInt(store.KeyWarnings)

	c.questions = questions
	c.statuses = statuses
	c.remaining = remaining
	c.initialTime = c.cfg.TotalTimeSeconds
	c.warnings = warnings
	c.position = 0
	c.breadcrumb = ""
	c.phase = model.PhaseReady
}

// Start acknowledges the instructions and activates the session: position
// moves to question 1, fullscreen engagement is assumed granted, and the
// countdown timer begins.
func (c *Controller) Start(agreed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseReady {
		return ErrNotReady
	}
	if !agreed {
		return ErrAgreementRequired
	}

	c.phase = model.PhaseActive
	c.inFullscreen = true
	c.goToLocked(1)

	ctx, cancel := context.WithCancel(context.Background())
	c.timerCancel = cancel
	go c.runTimer(ctx, c.epoch)

	c.log.Info().Int("questions", len(c.questions)).Msg("Session active")
	c.pushState()
	return nil
}

// Answer records the given option label for the current question. Valid
// only while active and fullscreen-engaged. The full question array is
// written through to the local mirror on every call.
func (c *Controller) Answer(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive {
		return ErrNotActive
	}
	if !c.inFullscreen {
		return ErrNotFullscreen
	}

	q := c.currentLocked()
	if q == nil {
		return ErrNotActive
	}
	if !hasOption(q, label) {
		return ErrUnknownOption
	}

	q.UserAnswer = label
	if !q.IsPenalized {
		c.statuses[c.position-1] = model.StatusAnswered
	}
	c.persistAnswersLocked()
	c.pushState()
	return nil
}

// GoToQuestion navigates to the 1-based position n. A position outside
// [1, total] signals natural completion: the session terminates cleanly
// rather than erroring.
func (c *Controller) GoToQuestion(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive {
		return ErrNotActive
	}
	if n < 1 || n > len(c.questions) {
		c.endLocked(model.EndCompleted, true)
		return nil
	}
	if !c.inFullscreen {
		return ErrNotFullscreen
	}

	c.goToLocked(n)
	c.pushState()
	return nil
}

// Advance moves forward one question. A departing question left unanswered
// transitions to skipped; on the last question no forward move occurs (the
// caller is expected to request submission).
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive {
		return ErrNotActive
	}
	if !c.inFullscreen {
		return ErrNotFullscreen
	}

	idx := c.position - 1
	if idx >= 0 && idx < len(c.questions) {
		if c.questions[idx].UserAnswer == "" && c.statuses[idx] == model.StatusUnanswered {
			c.statuses[idx] = model.StatusSkipped
		}
	}
	if c.position < len(c.questions) {
		c.goToLocked(c.position + 1)
	}
	c.persistAnswersLocked()
	c.pushState()
	return nil
}

// Previous moves back one question. Backward navigation never marks the
// departing question skipped.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive {
		return ErrNotActive
	}
	if !c.inFullscreen {
		return ErrNotFullscreen
	}
	if c.position > 1 {
		c.goToLocked(c.position - 1)
	}
	c.pushState()
	return nil
}

// RequestManualSubmit opens the confirmation step, but only inside the
// final-submission window. Exactly at the window edge is accepted.
func (c *Controller) RequestManualSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive {
		return ErrNotActive
	}

	window := int(c.cfg.FinalSubmissionWindow / time.Second)
	if c.remaining > window {
		minutesLeft := (c.remaining - window + 59) / 60
		c.notify(fmt.Sprintf(
			"Manual submission allowed in last %d minutes. %d minutes remaining.",
			window/60, minutesLeft), true, 5*time.Second)
		return ErrSubmitWindowClosed
	}

	c.awaitingConfirm = true
	c.pushState()
	return nil
}

// CancelSubmit dismisses the confirmation prompt.
func (c *Controller) CancelSubmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awaitingConfirm = false
	c.pushState()
}

// ConfirmSubmit performs the final submission after user confirmation.
func (c *Controller) ConfirmSubmit(ctx context.Context) error {
	return c.submit(ctx, model.EndSubmitted)
}

// submit builds the final payload and posts it to the gateway. On success
// the session terminates and local progress is cleared. On failure the
// session still terminates locally; whether the progress mirror survives is
// governed by PreserveOnSubmitFailure.
func (c *Controller) submit(ctx context.Context, reason model.EndReason) error {
	c.mu.Lock()
	if c.phase != model.PhaseActive || c.submitting {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.submitting = true
	c.awaitingConfirm = false

	answers := make([]model.SubmittedAnswer, 0, len(c.questions))
	for _, q := range c.questions {
		ans := q.UserAnswer
		if ans == "" {
			ans = model.UnansweredPlaceholder
		}
		answers = append(answers, model.SubmittedAnswer{
			QuestionID:  q.ID,
			UserAnswer:  ans,
			IsPenalized: q.IsPenalized,
		})
	}
	sub := &model.Submission{
		QuizSessionID:    c.cred.UserName,
		TotalWarnings:    c.warnings,
		SubmittedAnswers: answers,
	}
	token := c.cred.AccessToken
	user := c.cred.UserName
	epoch := c.epoch
	c.mu.Unlock()

	err := c.gw.SubmitExam(ctx, token, user, sub)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if epoch != c.epoch {
		// Session was torn down while the POST was in flight.
		return nil
	}

	if err != nil {
		c.log.Error().Err(err).Str("reason", string(reason)).Msg("Submission failed")
		c.notify(err.Error(), true, 5*time.Second)
		// The gateway never confirmed receipt; clearing local state here
		// forfeits any retry. Kept as the default behavior, with the
		// preserve flag as the escape hatch.
		c.endLocked(model.EndSubmitError, !c.cfg.PreserveOnSubmitFailure)
		return fmt.Errorf("%w: %s", ErrSubmitFailed, err)
	}

	c.log.Info().Str("reason", string(reason)).Int("total_warnings", c.warnings).Msg("Submission complete")
	c.endLocked(reason, true)
	return nil
}

// SetFullscreen tracks the continuous fullscreen engagement flag that gates
// answering and navigation.
func (c *Controller) SetFullscreen(engaged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != model.PhaseActive {
		return
	}
	if c.inFullscreen == engaged {
		return
	}
	c.inFullscreen = engaged
	c.pushState()
}

// recordViolation applies one accepted (non-debounced) violation: the
// warning count grows monotonically and, past the free budget, the current
// question is penalized. Idempotent on the penalty flag.
func (c *Controller) recordViolation(kind ViolationKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive {
		return
	}

	c.warnings++
	c.progress.SaveInt(store.KeyWarnings, c.warnings)

	if c.warnings <= c.cfg.MaxWarnings {
		left := c.cfg.MaxWarnings - c.warnings
		c.notify(fmt.Sprintf(
			"Warning %d. You %s. Warnings left before deductions: %d.",
			c.warnings, kind.Describe(), left), false, 8*time.Second)
	} else {
		if q := c.currentLocked(); q != nil {
			if !q.IsPenalized {
				q.IsPenalized = true
				c.persistAnswersLocked()
			}
			c.statuses[c.position-1] = model.StatusPenalized
		}
		c.notify(fmt.Sprintf(
			"MARK DEDUCTION WARNING! Violation %d. Further violations result in deduction for the current question.",
			c.warnings), true, 10*time.Second)
	}

	c.log.Warn().
		Str("kind", string(kind)).
		Int("warnings", c.warnings).
		Int("position", c.position).
		Msg("Violation recorded")

	c.pushState()
}

// Abandon terminates the session explicitly (front end teardown, sign-out).
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == model.PhaseActive {
		c.endLocked(model.EndCompleted, true)
	}
}

// endLocked transitions to Terminated: the timer stops, the epoch advances
// so stray async completions become no-ops, and (optionally) the local
// progress mirror is cleared. Callers must hold c.mu.
func (c *Controller) endLocked(reason model.EndReason, clearProgress bool) {
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
	c.phase = model.PhaseTerminated
	c.epoch++

	if clearProgress {
		c.progress.Clear(store.KeyWarnings, store.KeyTimeRemaining, store.KeyAnswers)
	}

	c.log.Info().Str("reason", string(reason)).Msg("Session terminated")

	c.pushState()
	c.redirect(RedirectPostExam)
}

// goToLocked sets the current position and breadcrumb. Callers must hold
// c.mu and have validated n.
func (c *Controller) goToLocked(n int) {
	c.position = n
	c.breadcrumb = fmt.Sprintf("Question %d of %d", n, len(c.questions))
}

// currentLocked returns the current question or nil. Callers must hold c.mu.
func (c *Controller) currentLocked() *model.Question {
	if c.position < 1 || c.position > len(c.questions) {
		return nil
	}
	return c.questions[c.position-1]
}

// persistAnswersLocked mirrors the full question array. Callers must hold c.mu.
func (c *Controller) persistAnswersLocked() {
	flat := make([]model.Question, len(c.questions))
	for i, q := range c.questions {
		flat[i] = *q
	}
	c.progress.SaveJSON(store.KeyAnswers, flat)
}

// Snapshot returns the rendering-facing state projection.
func (c *Controller) Snapshot() *model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *model.Snapshot {
	answered := 0
	for _, st := range c.statuses {
		if st == model.StatusAnswered || st == model.StatusPenalized {
			answered++
		}
	}

	snap := &model.Snapshot{
		Phase:            c.phase,
		Position:         c.position,
		TotalQuestions:   len(c.questions),
		Progress:         append([]model.QuestionStatus(nil), c.statuses...),
		AnsweredCount:    answered,
		ProgressText:     fmt.Sprintf("%d/%d", answered, len(c.questions)),
		Breadcrumb:       c.breadcrumb,
		RemainingSeconds: c.remaining,
		TimeText:         formatClock(c.remaining),
		ProgressOffset:   progressOffset(c.remaining, c.initialTime),
		WarningCount:     c.warnings,
		InFullscreen:     c.inFullscreen,
		AwaitingConfirm:  c.awaitingConfirm,
	}

	if q := c.currentLocked(); q != nil {
		qCopy := *q
		snap.CurrentQuestion = &qCopy
		snap.SelectedOption = q.UserAnswer
	}

	if c.phase == model.PhaseReady {
		snap.Instructions = &model.Instructions{
			TotalQuestions: fmt.Sprintf("%d Questions", len(c.questions)),
			TimeLimit:      "Remaining: " + formatDuration(c.remaining),
			FreeWarnings:   c.cfg.MaxWarnings,
			PenalizedMarks: c.cfg.PenalizedMarks,
		}
	}

	return snap
}

// Phase reports the current lifecycle phase.
func (c *Controller) Phase() model.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func hasOption(q *model.Question, label string) bool {
	for _, opt := range q.Options {
		if opt.Key == label {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
