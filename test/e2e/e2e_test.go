//go:build e2e
// +build e2e

// End-to-end exercise of the agent with every real component wired: sqlite
// store, gateway HTTP client against a stub exam service, session machine,
// REST API, and the WebSocket event stream. Run with: go test -tags e2e ./test/e2e/
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/config"
	"github.com/miss-electronics/proctor-agent/internal/gateway"
	"github.com/miss-electronics/proctor-agent/internal/handler"
	"github.com/miss-electronics/proctor-agent/internal/model"
	"github.com/miss-electronics/proctor-agent/internal/router"
	"github.com/miss-electronics/proctor-agent/internal/session"
	"github.com/miss-electronics/proctor-agent/internal/store"
	"github.com/miss-electronics/proctor-agent/internal/validator"
)

const (
	studentUser = "e2e_student"
	studentPass = "password123"
	accessToken = "e2e-access-token"
)

// stubExamService imitates the remote gateway endpoints the agent touches.
type stubExamService struct {
	paper      *model.ExamPaper
	submission *model.Submission
}

func (s *stubExamService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login/", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Username != studentUser || req.Password != studentPass {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials."})
			return
		}
		json.NewEncoder(w).Encode(model.LoginResponse{
			Access:   accessToken,
			Refresh:  "e2e-refresh-token",
			Username: studentUser,
		})
	})

	mux.HandleFunc("GET /exam/"+studentUser+"/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token."})
			return
		}
		json.NewEncoder(w).Encode(s.paper)
	})

	mux.HandleFunc("POST /exam/"+studentUser+"/submit/", func(w http.ResponseWriter, r *http.Request) {
		sub := &model.Submission{}
		if err := json.NewDecoder(r.Body).Decode(sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.submission = sub
		json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
	})

	return mux
}

func examPaper() *model.ExamPaper {
	return &model.ExamPaper{
		// Inside the final-submission window from the start so the manual
		// submit path can be exercised without waiting out the clock.
		Timer: 300,
		Questions: []model.PaperQuestion{
			{ID: 1, Text: "What is 2+2?", Options: map[string]string{"A": "3", "B": "4", "C": "5", "D": "6"}},
			{ID: 2, Text: "Capital of France?", Options: map[string]string{"A": "Paris", "B": "Lyon"}},
			{ID: 51, Text: "Essay-weight question", Options: map[string]string{"A": "yes", "B": "no"}},
		},
	}
}

func TestAgentFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	log := zerolog.Nop()

	stub := &stubExamService{paper: examPaper()}
	remote := httptest.NewServer(stub.handler())
	defer remote.Close()

	cfg := &config.Config{
		GinMode:               gin.TestMode,
		GatewayBaseURL:        remote.URL,
		GatewayTimeout:        5 * time.Second,
		StorePath:             filepath.Join(t.TempDir(), "progress.db"),
		TotalTimeSeconds:      3600,
		MaxWarnings:           2,
		ViolationDebounce:     10 * time.Millisecond,
		FinalSubmissionWindow: 900 * time.Second,
		PenalizedMarks:        0.5,
	}

	st, err := store.Open(cfg.StorePath, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout, log)
	ctrl := session.New(cfg, gw, st, log)
	monitor := session.NewMonitor(ctrl, cfg.ViolationDebounce, log)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(ctrl, log),
		Events:  handler.NewEventsHandler(ctrl, monitor, log, nil),
	}
	agent := httptest.NewServer(router.SetupRouter(handlers, cfg))
	defer agent.Close()
	defer ctrl.Abandon()

	// Step 1: sign in against the remote gateway, persisting the credential
	// the way cmd/login does.
	t.Run("Login", func(t *testing.T) {
		resp, err := gw.Login(context.Background(), studentUser, studentPass)
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		st.Save(store.KeyAccessToken, resp.Access)
		st.Save(store.KeyRefreshToken, resp.Refresh)
		st.Save(store.KeyUserName, resp.Username)
	})

	// Step 2: initialize the session; the agent fetches the paper.
	t.Run("Initialize", func(t *testing.T) {
		snap := postSnapshot(t, agent.URL, "/api/v1/session/initialize", nil)
		if snap.Phase != string(model.PhaseReady) {
			t.Fatalf("phase = %q, want READY", snap.Phase)
		}
		if snap.TotalQuestions != 3 {
			t.Fatalf("totalQuestions = %d, want 3", snap.TotalQuestions)
		}
	})

	// Step 3: connect the event stream before starting, as the front end does.
	wsURL := "ws" + strings.TrimPrefix(agent.URL, "http") + "/ws/v1/session/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	// The stream opens with the current snapshot.
	ev := readEvent(t, conn)
	if ev.Type != "state" || ev.State == nil {
		t.Fatalf("first event = %+v, want state snapshot", ev)
	}

	// Step 4: agree and start.
	t.Run("Start", func(t *testing.T) {
		snap := postSnapshot(t, agent.URL, "/api/v1/session/start", map[string]any{"agreed": true})
		if snap.Phase != string(model.PhaseActive) {
			t.Fatalf("phase = %q, want ACTIVE", snap.Phase)
		}
	})

	// Step 5: answer over REST.
	t.Run("Answer", func(t *testing.T) {
		snap := postSnapshot(t, agent.URL, "/api/v1/session/answer", map[string]any{"label": "B"})
		if snap.SelectedOption != "B" {
			t.Fatalf("selectedOption = %q, want B", snap.SelectedOption)
		}
	})

	// Step 6: report violations over the event stream until one penalizes.
	t.Run("Violations", func(t *testing.T) {
		// MaxWarnings is 2: the third accepted violation penalizes the
		// current question. Spacing beats the debounce interval.
		for i := 0; i < 3; i++ {
			sendEvent(t, conn, map[string]any{"action": "violation", "kind": "visibility"})
			time.Sleep(3 * cfg.ViolationDebounce)
		}

		snap := waitForWarnings(t, agent.URL, 3)
		if snap.WarningCount != 3 {
			t.Fatalf("warningCount = %d, want 3", snap.WarningCount)
		}
	})

	// Step 7: leaving fullscreen both flags the state and counts a violation.
	t.Run("FullscreenExit", func(t *testing.T) {
		sendEvent(t, conn, map[string]any{"action": "fullscreen", "engaged": false})
		snap := waitForWarnings(t, agent.URL, 4)
		if snap.InFullscreen {
			t.Fatal("inFullscreen still true after exit signal")
		}

		// Answering is gated until fullscreen is re-engaged.
		status, _ := post(t, agent.URL, "/api/v1/session/answer", map[string]any{"label": "A"})
		if status != http.StatusConflict {
			t.Fatalf("answer while not fullscreen: status = %d, want 409", status)
		}

		sendEvent(t, conn, map[string]any{"action": "fullscreen", "engaged": true})
		waitFor(t, func() bool { return snapshot(t, agent.URL).InFullscreen })
	})

	// Step 8: manual submit with confirmation.
	t.Run("Submit", func(t *testing.T) {
		snap := postSnapshot(t, agent.URL, "/api/v1/session/submit", map[string]any{"confirmed": false})
		if !snap.AwaitingConfirm {
			t.Fatal("awaitingConfirm = false after submit request")
		}

		snap = postSnapshot(t, agent.URL, "/api/v1/session/submit", map[string]any{"confirmed": true})
		if snap.Phase != string(model.PhaseTerminated) {
			t.Fatalf("phase = %q, want TERMINATED", snap.Phase)
		}

		sub := stub.submission
		if sub == nil {
			t.Fatal("gateway never received the submission")
		}
		if sub.QuizSessionID != studentUser {
			t.Errorf("quizSessionId = %q, want %q", sub.QuizSessionID, studentUser)
		}
		if sub.TotalWarnings != 4 {
			t.Errorf("totalWarnings = %d, want 4", sub.TotalWarnings)
		}
		if len(sub.SubmittedAnswers) != 3 {
			t.Fatalf("submittedAnswers = %d entries, want 3", len(sub.SubmittedAnswers))
		}
		if sub.SubmittedAnswers[0].UserAnswer != "B" {
			t.Errorf("answer 1 = %q, want B", sub.SubmittedAnswers[0].UserAnswer)
		}
		if !sub.SubmittedAnswers[0].IsPenalized {
			t.Error("question 1 should carry the penalty from the third violation")
		}
		for _, a := range sub.SubmittedAnswers[1:] {
			if a.UserAnswer != model.UnansweredPlaceholder {
				t.Errorf("question %d submitted as %q, want %q", a.QuestionID, a.UserAnswer, model.UnansweredPlaceholder)
			}
		}
	})

	// Step 9: the progress mirror is cleared after a successful submission.
	t.Run("ProgressCleared", func(t *testing.T) {
		for _, key := range []string{store.KeyWarnings, store.KeyTimeRemaining, store.KeyAnswers} {
			if _, ok := st.Load(key); ok {
				t.Errorf("key %s survived submission", key)
			}
		}
		// The credential is not progress and must survive.
		if _, ok := st.Load(store.KeyAccessToken); !ok {
			t.Error("credential was cleared with the progress keys")
		}
	})
}

// Helpers

type snapshotData struct {
	Phase           string `json:"phase"`
	TotalQuestions  int    `json:"totalQuestions"`
	SelectedOption  string `json:"selectedOption"`
	WarningCount    int    `json:"warningCount"`
	InFullscreen    bool   `json:"inFullscreen"`
	AwaitingConfirm bool   `json:"awaitingConfirm"`
}

type wsEvent struct {
	Type  string        `json:"event"`
	State *snapshotData `json:"state"`
}

func post(t *testing.T, base, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(base+path, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func postSnapshot(t *testing.T, base, path string, body any) *snapshotData {
	t.Helper()

	status, raw := post(t, base, path, body)
	if status != http.StatusOK {
		t.Fatalf("POST %s: status %d: %s", path, status, raw)
	}
	var env struct {
		Data snapshotData `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return &env.Data
}

func snapshot(t *testing.T, base string) *snapshotData {
	t.Helper()

	resp, err := http.Get(base + "/api/v1/session/state")
	if err != nil {
		t.Fatalf("GET state: %v", err)
	}
	defer resp.Body.Close()

	var env struct {
		Data snapshotData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return &env.Data
}

func sendEvent(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) *wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	ev := &wsEvent{}
	if err := conn.ReadJSON(ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func waitForWarnings(t *testing.T, base string, want int) *snapshotData {
	t.Helper()
	var snap *snapshotData
	waitFor(t, func() bool {
		snap = snapshot(t, base)
		return snap.WarningCount >= want
	})
	return snap
}
