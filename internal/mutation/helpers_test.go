package mutation_test

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	"quicktodo/internal/metrics"
)

func promCount(m *metrics.Metrics) (int, error) {
	return testutil.GatherAndCount(m.Registry(), "quicktodo_mutations_total")
}
