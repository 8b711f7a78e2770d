package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_MergesOverlappingAndTouching(t *testing.T) {
	got := normalize([]interval{{600, 660}, {540, 600}, {700, 720}, {710, 730}, {800, 800}})
	assert.Equal(t, []interval{{540, 660}, {700, 730}}, got)
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name  string
		spans []interval
		cuts  []interval
		want  []interval
	}{
		{"cut inside splits", []interval{{540, 1020}}, []interval{{720, 780}}, []interval{{540, 720}, {780, 1020}}},
		{"cut covers span", []interval{{540, 600}}, []interval{{500, 700}}, []interval{}},
		{"cut trims start", []interval{{540, 600}}, []interval{{500, 560}}, []interval{{560, 600}}},
		{"cut trims end", []interval{{540, 600}}, []interval{{580, 650}}, []interval{{540, 580}}},
		{"touching cut is no-op", []interval{{540, 600}}, []interval{{600, 660}}, []interval{{540, 600}}},
		{"no cuts", []interval{{540, 600}}, nil, []interval{{540, 600}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := subtract(tt.spans, tt.cuts)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTile(t *testing.T) {
	spans := []interval{{540, 610}, {660, 720}}

	assert.Equal(t, []interval{{540, 570}, {570, 600}, {660, 690}, {690, 720}}, tile(spans, 30, 10))
	assert.Equal(t, []interval{{540, 570}, {570, 600}, {660, 690}}, tile(spans, 30, 3))
	assert.Empty(t, tile(spans, 90, 10))
	assert.Empty(t, tile(spans, 30, 0))
}

func TestClockRoundTrip(t *testing.T) {
	for _, m := range []int{0, 59, 60, 545, 23*60 + 59} {
		assert.Equal(t, m, minuteOf(clockOf(m)))
	}
}
