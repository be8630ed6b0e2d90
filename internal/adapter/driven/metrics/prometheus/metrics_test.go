package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.EventReceived(domain.EventStatusUpdate)
	m.EventReceived(domain.EventStatusUpdate)
	m.EventDropped(domain.EventInvitationReply, "malformed")
	m.ActivityOutcome(domain.ActivityControl, domain.OutcomeRejected)
	m.RPCFailed("rpc:user_service/invite")

	require.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("StatusUpdate")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("InvitationReply", "malformed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("control", "rejected")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rpcErrors.WithLabelValues("rpc:user_service/invite")))
}

func TestMetricsCallStatus(t *testing.T) {
	m := NewMetrics()
	require.Equal(t, 1.0, testutil.ToFloat64(m.callStatus.WithLabelValues("ready")))

	m.CallStatus(domain.CallInCall)
	require.Equal(t, 0.0, testutil.ToFloat64(m.callStatus.WithLabelValues("ready")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.callStatus.WithLabelValues("incall")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.EventReceived(domain.EventExitActivity)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `interbot_user_events_total{type="ExitActivity"} 1`)
}
