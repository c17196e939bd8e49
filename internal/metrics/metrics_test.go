package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerExportsCounters(t *testing.T) {
	before := Read()
	IncrementRenders()
	IncrementStaleRenders()
	IncrementRollbacks()
	SetStoreBackend("memory")

	after := Read()
	assert.Equal(t, before.Renders+1, after.Renders)
	assert.Equal(t, before.StaleRenders+1, after.StaleRenders)
	assert.Equal(t, before.Rollbacks+1, after.Rollbacks)

	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, body, `store_backend="memory"`)
	assert.Contains(t, body, "# TYPE feed_stale_renders_total counter")
	assert.Contains(t, body, "feed_renders_total ")
}
