package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/goalsmith/goalsmith/internal/adapters/handler/http"
	"github.com/goalsmith/goalsmith/internal/adapters/repository"
	"github.com/goalsmith/goalsmith/internal/core/domain"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

var testOwner = domain.Owner{UserID: 1, ChatID: 2}

type testClock struct {
	now time.Time
}

func (c testClock) Now() time.Time { return c.now }

type stubClassifier struct {
	record *services.DraftRecord
}

func (s *stubClassifier) Classify(_ context.Context, _ services.ClassifyInput) (*services.DraftRecord, error) {
	return s.record, nil
}

type nopMessenger struct{}

func (nopMessenger) Send(context.Context, services.Message) error { return nil }

// ownerStub stands in for the auth middleware: every request runs as
// testOwner.
func ownerStub() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("owner", testOwner)
		c.Next()
	}
}

func setupGoalRouter(record *services.DraftRecord) (*gin.Engine, *repository.InMemoryGoalRepository) {
	gin.SetMode(gin.TestMode)

	clock := testClock{now: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)}
	goals := repository.NewInMemoryGoalRepository()
	users := repository.NewInMemoryUserRepository()
	if err := users.Upsert(context.Background(), domain.NewUser(testOwner, "Ada")); err != nil {
		panic(err)
	}

	handler := adapterHTTP.NewGoalHandler(
		services.NewIntakeService(&stubClassifier{record: record}, goals, users, nopMessenger{}, clock),
		services.NewLifecycleService(goals, users, clock),
		services.NewWindowService(goals, clock),
	)

	r := gin.New()
	group := r.Group("/api/v1")
	group.Use(ownerStub())
	handler.RegisterRoutes(group)
	return r, goals
}

func seedPending(t *testing.T, goals *repository.InMemoryGoalRepository, status domain.Status) *domain.Goal {
	t.Helper()

	deadline := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	goal := &domain.Goal{
		Owner:          testOwner,
		Status:         status,
		Recurrence:     domain.RecurrenceOneTime,
		Timeframe:      domain.TimeframeToday,
		Deadline:       &deadline,
		FinalIteration: domain.FinalIterationNA,
		Iteration:      1,
		TimeInvestment: 5,
		Difficulty:     1,
		Impact:         1,
		GoalValue:      5,
		Penalty:        7.5,
		Description:    "clean the kitchen",
		Category:       []string{"home"},
		SetTime:        time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, goals.Create(context.Background(), goal))
	return goal
}

func TestGoalHandler_Intake(t *testing.T) {
	deadline := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	record := &services.DraftRecord{
		Description:    "Clean the kitchen",
		Category:       []string{"home"},
		RecurrenceType: "one_time",
		Timeframe:      "today",
		Deadlines:      []time.Time{deadline},
		TimeInvestment: 5,
		Difficulty:     1,
		Impact:         1,
		PenaltyTier:    "small",
	}

	t.Run("Success: 201 Created", func(t *testing.T) {
		router, _ := setupGoalRouter(record)

		req, _ := http.NewRequest("POST", "/api/v1/goals/intake",
			bytes.NewBufferString(`{"text": "clean the kitchen tonight"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"limbo"`)
		assert.Contains(t, w.Body.String(), `"proposal"`)
	})

	t.Run("Missing text: 400", func(t *testing.T) {
		router, _ := setupGoalRouter(record)

		req, _ := http.NewRequest("POST", "/api/v1/goals/intake", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Invalid record: 400 with violations", func(t *testing.T) {
		bad := *record
		bad.Category = nil
		router, _ := setupGoalRouter(&bad)

		req, _ := http.NewRequest("POST", "/api/v1/goals/intake",
			bytes.NewBufferString(`{"text": "something"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "violations")
	})
}

func TestGoalHandler_Action(t *testing.T) {
	t.Run("Accept: 200 with the new status", func(t *testing.T) {
		router, goals := setupGoalRouter(nil)
		goal := seedPending(t, goals, domain.StatusLimbo)

		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/v1/goals/%d/action", goal.ID),
			bytes.NewBufferString(`{"action": "accept"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
	})

	t.Run("Illegal transition: 409", func(t *testing.T) {
		router, goals := setupGoalRouter(nil)
		goal := seedPending(t, goals, domain.StatusLimbo)

		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/v1/goals/%d/action", goal.ID),
			bytes.NewBufferString(`{"action": "done"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Unknown goal: 404", func(t *testing.T) {
		router, _ := setupGoalRouter(nil)

		req, _ := http.NewRequest("POST", "/api/v1/goals/999/action",
			bytes.NewBufferString(`{"action": "accept"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Non-numeric id: 400", func(t *testing.T) {
		router, _ := setupGoalRouter(nil)

		req, _ := http.NewRequest("POST", "/api/v1/goals/abc/action",
			bytes.NewBufferString(`{"action": "accept"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGoalHandler_Adjust(t *testing.T) {
	t.Run("Up: 200 with the new value", func(t *testing.T) {
		router, goals := setupGoalRouter(nil)
		goal := seedPending(t, goals, domain.StatusPending)

		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/v1/goals/%d/adjust", goal.ID),
			bytes.NewBufferString(`{"field": "goal_value", "direction": "up"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Field string  `json:"field"`
			Value float64 `json:"value"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 7.0, resp.Value)
	})

	t.Run("Unknown field: 400", func(t *testing.T) {
		router, goals := setupGoalRouter(nil)
		goal := seedPending(t, goals, domain.StatusPending)

		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/v1/goals/%d/adjust", goal.ID),
			bytes.NewBufferString(`{"field": "impact", "direction": "up"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGoalHandler_Windows(t *testing.T) {
	t.Run("Today window: 200 with totals", func(t *testing.T) {
		router, goals := setupGoalRouter(nil)
		seedPending(t, goals, domain.StatusPending)

		req, _ := http.NewRequest("GET", "/api/v1/goals/window/today", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"goals_count":1`)
	})

	t.Run("Unknown window: 400", func(t *testing.T) {
		router, _ := setupGoalRouter(nil)

		req, _ := http.NewRequest("GET", "/api/v1/goals/window/fortnight", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Upcoming with a bad hours param: 400", func(t *testing.T) {
		router, _ := setupGoalRouter(nil)

		req, _ := http.NewRequest("GET", "/api/v1/goals/upcoming?hours=soon", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGoalHandler_Get(t *testing.T) {
	t.Run("Another owner's goal: 404", func(t *testing.T) {
		router, goals := setupGoalRouter(nil)

		deadline := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
		foreign := &domain.Goal{
			Owner:          domain.Owner{UserID: 9, ChatID: 9},
			Status:         domain.StatusPending,
			Recurrence:     domain.RecurrenceOneTime,
			Timeframe:      domain.TimeframeToday,
			Deadline:       &deadline,
			FinalIteration: domain.FinalIterationNA,
			Iteration:      1,
			TimeInvestment: 5,
			Difficulty:     1,
			Impact:         1,
			GoalValue:      5,
			Penalty:        7.5,
			Description:    "secret",
			Category:       []string{"other"},
			SetTime:        deadline.Add(-time.Hour),
		}
		require.NoError(t, goals.Create(context.Background(), foreign))

		req, _ := http.NewRequest("GET", fmt.Sprintf("/api/v1/goals/%d", foreign.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
