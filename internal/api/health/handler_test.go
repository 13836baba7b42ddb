package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.Wrap(errors.ErrUnavailable, "connection refused") }

func serve(t *testing.T, fn http.HandlerFunc) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec.Code, status
}

func TestHealth_AllHealthy(t *testing.T) {
	h := New(logger.NewNop(), "finsight", "test")
	h.Register("postgres", CheckerFunc(ok))
	h.Register("redis", CheckerFunc(ok))

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Len(t, status.Checks, 2)
}

func TestHealth_Degraded(t *testing.T) {
	h := New(logger.NewNop(), "finsight", "test")
	h.Register("postgres", CheckerFunc(ok))
	h.Register("clickhouse", CheckerFunc(down))

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Checks["clickhouse"].Status)
	assert.Contains(t, status.Checks["clickhouse"].Error, "connection refused")

	code, status = serve(t, h.HandleReadiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, status.Status)
}

func TestHealth_NoBackendsIsHealthy(t *testing.T) {
	h := New(logger.NewNop(), "finsight", "test")
	h.Register("ignored", nil)

	code, status := serve(t, h.HandleReadiness)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Checks)
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	New(logger.NewNop(), "finsight", "test").HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
