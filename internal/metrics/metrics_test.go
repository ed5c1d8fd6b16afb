package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
	err := prometheus.Register(Caches)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}

func TestCyclesCounter(t *testing.T) {
	before := testutil.ToFloat64(Cycles.WithLabelValues("test", "published"))
	Cycles.WithLabelValues("test", "published").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Cycles.WithLabelValues("test", "published")))
}
