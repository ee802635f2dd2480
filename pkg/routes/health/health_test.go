package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBudget struct {
	remaining int
}

func (f fakeBudget) Remaining() int {
	return f.remaining
}

func newHealthContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestChecker_Health(t *testing.T) {
	t.Run("reports registry budget", func(t *testing.T) {
		checker := NewChecker(nil, nil, fakeBudget{remaining: 583}, "test")

		c, rec := newHealthContext(t)
		require.NoError(t, checker.Health(c))

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

		budget := status.Checks["registry_budget"]
		require.NotNil(t, budget)
		assert.Equal(t, "healthy", budget.Status)
		assert.Equal(t, "583 requests remaining", budget.Message)
	})

	t.Run("missing database is unhealthy", func(t *testing.T) {
		checker := NewChecker(nil, nil, nil, "test")

		c, rec := newHealthContext(t)
		require.NoError(t, checker.Health(c))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "unhealthy", status.Status)
		assert.Nil(t, status.Checks["registry_budget"])
	})
}

func TestChecker_Ready(t *testing.T) {
	checker := NewChecker(nil, nil, nil, "test")

	c, rec := newHealthContext(t)
	require.NoError(t, checker.Ready(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.SetReady(true)
	c, rec = newHealthContext(t)
	require.NoError(t, checker.Ready(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
