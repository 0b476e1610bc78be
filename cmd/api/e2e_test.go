package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	adapterHTTP "github.com/goalsmith/goalsmith/internal/adapters/handler/http"
	"github.com/goalsmith/goalsmith/internal/adapters/repository"
	"github.com/goalsmith/goalsmith/internal/core/domain"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubClassifier struct {
	record *services.DraftRecord
}

func (s *stubClassifier) Classify(_ context.Context, _ services.ClassifyInput) (*services.DraftRecord, error) {
	return s.record, nil
}

type captureMessenger struct {
	mu       sync.Mutex
	messages []services.Message
}

func (m *captureMessenger) Send(_ context.Context, msg services.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *captureMessenger) last() (services.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return services.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

const (
	e2eUserID = int64(1001)
	e2eChatID = int64(2002)
	e2eAdmin  = "e2e-admin-key"
)

func TestEndToEnd_GoalLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)}
	deadline := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)

	goalRepo := repository.NewInMemoryGoalRepository()
	userRepo := repository.NewInMemoryUserRepository()
	reminderRepo := repository.NewInMemoryReminderRepository()
	snapshotRepo := repository.NewInMemorySnapshotRepository()

	classifier := &stubClassifier{record: &services.DraftRecord{
		Description:    "Run 5k before dinner",
		Category:       []string{"health"},
		RecurrenceType: "one_time",
		Timeframe:      "today",
		Deadlines:      []time.Time{deadline},
		TimeInvestment: 5,
		Difficulty:     1,
		Impact:         1,
		PenaltyTier:    "small",
	}}
	outbox := &captureMessenger{}

	tokenService := services.NewTokenService("e2e-secret", "goalsmith-test", time.Hour, []int64{e2eUserID})
	lifecycleService := services.NewLifecycleService(goalRepo, userRepo, clock)
	windowService := services.NewWindowService(goalRepo, clock)
	statsService := services.NewStatsService(goalRepo, userRepo, snapshotRepo, clock)
	intakeService := services.NewIntakeService(classifier, goalRepo, userRepo, outbox, clock)

	adminHash, err := bcrypt.GenerateFromPassword([]byte(e2eAdmin), bcrypt.MinCost)
	require.NoError(t, err)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(tokenService),
		GoalHandler:     adapterHTTP.NewGoalHandler(intakeService, lifecycleService, windowService),
		ReminderHandler: adapterHTTP.NewReminderHandler(reminderRepo, clock),
		StatsHandler:    adapterHTTP.NewStatsHandler(statsService),
		TokenService:    tokenService,
		AdminKeyHash:    string(adminHash),
		StartTime:       clock.Now(),
	})

	do := func(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
		t.Helper()
		req, err := http.NewRequest(method, path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	var token string
	var goalID int64

	t.Run("1. Token Denied Off The Allow List", func(t *testing.T) {
		w := do(t, http.MethodPost, "/api/v1/auth/token", "",
			`{"user_id": 555, "chat_id": 556}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("2. Token Issued", func(t *testing.T) {
		w := do(t, http.MethodPost, "/api/v1/auth/token", "",
			fmt.Sprintf(`{"user_id": %d, "chat_id": %d}`, e2eUserID, e2eChatID))
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)
		token = resp.Token
	})

	t.Run("3. Protected Routes Reject Missing Token", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/v1/goals", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("4. Intake Creates A Limbo Goal And Pushes A Proposal", func(t *testing.T) {
		w := do(t, http.MethodPost, "/api/v1/goals/intake", token,
			`{"text": "run 5k before dinner", "display_name": "Ada"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp services.IntakeResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Goals, 1)
		assert.Equal(t, domain.StatusLimbo, resp.Goals[0].Status)
		assert.Equal(t, 5.0, resp.Goals[0].GoalValue)
		assert.Equal(t, 7.5, resp.Goals[0].Penalty)
		require.NotNil(t, resp.Proposal)
		goalID = resp.Goals[0].ID

		msg, ok := outbox.last()
		require.True(t, ok, "proposal should have been pushed")
		assert.Len(t, msg.Buttons, 2)
	})

	t.Run("5. Accept Moves The Goal To Pending", func(t *testing.T) {
		w := do(t, http.MethodPost, fmt.Sprintf("/api/v1/goals/%d/action", goalID), token,
			`{"action": "accept"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var goal domain.Goal
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &goal))
		assert.Equal(t, domain.StatusPending, goal.Status)
	})

	t.Run("6. Pending Goal Shows In The Today Window", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/v1/goals/window/today", token, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var report services.WindowReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 1, report.GoalsCount)
		assert.Equal(t, 5.0, report.TotalGoalValue)
	})

	t.Run("7. Unknown Window Is A Bad Request", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/v1/goals/window/fortnight", token, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("8. Done Archives The Goal", func(t *testing.T) {
		w := do(t, http.MethodPost, fmt.Sprintf("/api/v1/goals/%d/action", goalID), token,
			`{"action": "done"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var goal domain.Goal
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &goal))
		assert.Equal(t, domain.StatusArchivedDone, goal.Status)
		require.NotNil(t, goal.CompletionTime)
	})

	t.Run("9. Done Twice Is A Conflict", func(t *testing.T) {
		w := do(t, http.MethodPost, fmt.Sprintf("/api/v1/goals/%d/action", goalID), token,
			`{"action": "done"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("10. Admin Snapshot Run Requires The Key", func(t *testing.T) {
		w := do(t, http.MethodPost, "/api/v1/admin/snapshots/run", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("11. Snapshot Run Covers The Finished Day", func(t *testing.T) {
		clock.Advance(24 * time.Hour)

		req, err := http.NewRequest(http.MethodPost, "/api/v1/admin/snapshots/run", &bytes.Buffer{})
		require.NoError(t, err)
		req.Header.Set("X-Admin-Key", e2eAdmin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Written int `json:"written"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Written)
	})

	t.Run("12. Weekly Stats Reflect The Snapshot", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/v1/stats/week", token, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var stats services.PeriodStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.GoalsSet)
		assert.Equal(t, 1, stats.GoalsFinished)
		assert.Equal(t, 5.0, stats.ScoreGained)
		require.NotNil(t, stats.CompletionRate)
		assert.Equal(t, 100.0, *stats.CompletionRate)
	})

	t.Run("13. Reminder Round Trip", func(t *testing.T) {
		at := clock.Now().Add(2 * time.Hour)
		w := do(t, http.MethodPost, "/api/v1/reminders", token,
			fmt.Sprintf(`{"reminder_text": "stretch", "time": %q}`, at.Format(time.RFC3339)))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created domain.Reminder
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotEmpty(t, created.ID)

		w = do(t, http.MethodDelete, "/api/v1/reminders/"+created.ID, token, "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(t, http.MethodGet, "/api/v1/reminders", token, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), created.ID)
	})
}
