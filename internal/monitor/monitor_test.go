package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcart/internal/config"
)

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector("test")

	mc.RecordSuggestion("periodic", "semantic")
	mc.RecordSuggestion("periodic", "semantic")
	mc.RecordNudge("sent")
	mc.RecordCollaboratorCall("ranker", errors.New("timeout"), 20*time.Millisecond)
	mc.RecordWishlistVote(-1, false)
	mc.ConnectionOpened()
	mc.ConnectionOpened()
	mc.ConnectionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.suggestionsTotal.WithLabelValues("periodic", "semantic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.nudgesTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.collaboratorTotal.WithLabelValues("ranker", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.wishlistVotesTotal.WithLabelValues("down", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.wsConnections))

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_suggestions_total")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var mc *MetricsCollector
	assert.NotPanics(t, func() {
		mc.RecordChatMessage(true)
		mc.RecordSuggestion("combo", "combo")
		mc.RecordNudge("suppressed")
		mc.RecordCollaboratorCall("theme", nil, time.Millisecond)
		mc.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		mc.ConnectionOpened()
	})
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewMetricsCollector("")
	b := NewMetricsCollector("")
	a.RecordNotification("info")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.notificationsTotal.WithLabelValues("info")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.notificationsTotal.WithLabelValues("info")))
}

func TestDisabledTracer(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{ServiceName: "groupcart"}, "test")
	require.NoError(t, err)

	ctx, span := tracer.StartCollaboratorSpan(context.Background(), "ranker", "http://ranker/semantic_suggestions")
	RecordError(span, errors.New("boom"))
	span.End()

	assert.Equal(t, "", TraceID(ctx))
	assert.NoError(t, tracer.Shutdown(context.Background()))

	var nilTracer *Tracer
	_, span = nilTracer.StartSpan(context.Background(), "noop")
	span.End()
}
