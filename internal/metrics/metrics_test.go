package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBetsPlaced_Increments(t *testing.T) {
	before := testutil.ToFloat64(BetsPlaced.WithLabelValues("0"))
	BetsPlaced.WithLabelValues("0").Inc()
	after := testutil.ToFloat64(BetsPlaced.WithLabelValues("0"))
	if after != before+1 {
		t.Errorf("BetsPlaced{outcome=0} = %v, want %v", after, before+1)
	}
}

func TestOrdersMatched_AddsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(OrdersMatched.WithLabelValues("1"))
	OrdersMatched.WithLabelValues("1").Add(3)
	after := testutil.ToFloat64(OrdersMatched.WithLabelValues("1"))
	if after != before+3 {
		t.Errorf("OrdersMatched{outcome=1} = %v, want %v", after, before+3)
	}
}

func TestResolutionFailures_LabeledByPhase(t *testing.T) {
	before := testutil.ToFloat64(ResolutionFailures.WithLabelValues("submit_app_state"))
	ResolutionFailures.WithLabelValues("submit_app_state").Inc()
	after := testutil.ToFloat64(ResolutionFailures.WithLabelValues("submit_app_state"))
	if after != before+1 {
		t.Errorf("ResolutionFailures{phase=submit_app_state} = %v, want %v", after, before+1)
	}
}

func TestWSConnections_IncDec(t *testing.T) {
	before := testutil.ToFloat64(WSConnections)
	WSConnections.Inc()
	WSConnections.Inc()
	WSConnections.Dec()
	after := testutil.ToFloat64(WSConnections)
	if after != before+1 {
		t.Errorf("WSConnections = %v, want %v", after, before+1)
	}
}

func TestBetLatency_Observes(t *testing.T) {
	// Histograms aren't single-valued like a counter/gauge; just confirm
	// Observe doesn't panic on a representative latency.
	BetLatency.Observe(0.042)
}
