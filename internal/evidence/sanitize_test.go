package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/config"
)

func testEvidenceConfig() config.EvidenceConfig {
	return config.EvidenceConfig{
		TimeoutSecs:          20,
		WebSearchTimeoutSecs: 12,
		SuspiciousDefaults:   []float64{19.99, 20, 25, 50, 100, 120},
		RatioHigh:            3.0,
		RatioLow:             0.33,
	}
}

func TestSanitize_RatioBounds(t *testing.T) {
	s := NewSanitizer(testEvidenceConfig())

	samples, allSuspect := s.Sanitize([]float64{500, 105, 30}, 100)
	require.Len(t, samples, 3)
	assert.False(t, allSuspect)

	// 500/100 = 5.0 exceeds the high ratio.
	assert.True(t, samples[0].Suspect)
	assert.Contains(t, samples[0].SuspectReason, "exceeds")

	// 105 sits comfortably inside the band.
	assert.False(t, samples[1].Suspect)

	// 30/100 = 0.30 falls below the low ratio.
	assert.True(t, samples[2].Suspect)
	assert.Contains(t, samples[2].SuspectReason, "below")
}

func TestSanitize_SuspiciousDefaults(t *testing.T) {
	s := NewSanitizer(testEvidenceConfig())

	// Defaults are flagged even when they sit inside the ratio band.
	samples, _ := s.Sanitize([]float64{19.99, 100, 45}, 60)
	assert.True(t, samples[0].Suspect)
	assert.Equal(t, "matches suspicious default", samples[0].SuspectReason)
	assert.True(t, samples[1].Suspect)
	assert.False(t, samples[2].Suspect)
}

func TestSanitize_NoAnchorSkipsRatioCheck(t *testing.T) {
	s := NewSanitizer(testEvidenceConfig())

	samples, allSuspect := s.Sanitize([]float64{5, 5000}, 0)
	assert.False(t, samples[0].Suspect)
	assert.False(t, samples[1].Suspect)
	assert.False(t, allSuspect)
}

func TestSanitize_AllSuspect(t *testing.T) {
	s := NewSanitizer(testEvidenceConfig())

	samples, allSuspect := s.Sanitize([]float64{120, 120}, 40)
	require.Len(t, samples, 2)
	assert.True(t, allSuspect)
	for _, sm := range samples {
		assert.True(t, sm.Suspect)
	}
}

func TestSanitize_Empty(t *testing.T) {
	s := NewSanitizer(testEvidenceConfig())

	samples, allSuspect := s.Sanitize(nil, 40)
	assert.Nil(t, samples)
	assert.False(t, allSuspect)
}
