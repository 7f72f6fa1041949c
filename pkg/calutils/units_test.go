package calutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversions(t *testing.T) {
	assert.InDelta(t, 0.8e-6, PpmToFraction(0.8), 1e-18)
	assert.InDelta(t, 12, ScaleFactorToPpm(1.000012), 1e-6)
	assert.InDelta(t, -6.5, ScaleFactorToPpm(0.9999935), 1e-6)
	assert.Equal(t, 250.0, MetresToMm(0.25))
	assert.Equal(t, 22.5, MeanTemperature(20, 25))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 10.05, Round(10.050000001, 5))
	assert.Equal(t, 0.12346, Round(0.123456, 5))
	assert.Equal(t, -3.5, Round(-3.46, 1))
}

func TestEventKey(t *testing.T) {
	d := time.Date(2024, time.March, 4, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "20240304-S100", EventKey(d, "S100"))
}
