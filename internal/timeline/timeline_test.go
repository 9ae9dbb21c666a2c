package timeline

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultParams = Params{SampleRate: 16000, Hop: 128, ChunkDuration: 1.0, AudioDuration: 5.0}

func labelsOf(pairs []Pair) []int {
	out := make([]int, len(pairs))
	for i, p := range pairs {
		out[i] = p.Label
	}
	return out
}

func TestSmooth(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		want   []int
	}{
		{name: "empty", labels: []int{}, want: []int{}},
		{name: "single one", labels: []int{1}, want: []int{1}},
		{name: "single zero", labels: []int{0}, want: []int{0}},
		{name: "isolated spike removed", labels: []int{0, 0, 1, 0, 0}, want: []int{0, 0, 0, 0, 0}},
		{name: "isolated dip filled", labels: []int{1, 1, 0, 1, 1}, want: []int{1, 1, 1, 1, 1}},
		{name: "edge pair ties go to fluent", labels: []int{1, 0}, want: []int{0, 0}},
		{name: "edge window of two ones", labels: []int{1, 1, 0}, want: []int{1, 1, 0}},
		{name: "alternating", labels: []int{1, 0, 1, 0, 1}, want: []int{0, 1, 0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Smooth(tt.labels, make([]float64, len(tt.labels)))
			assert.Equal(t, tt.want, labelsOf(got))
		})
	}
}

func TestSmooth_PreservesLength(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for n := 0; n < 50; n++ {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = r.IntN(2)
		}
		assert.Len(t, Smooth(labels, nil), n)
	}
}

func TestSmooth_UniformInputUnchanged(t *testing.T) {
	for _, v := range []int{0, 1} {
		labels := make([]int, 7)
		for i := range labels {
			labels[i] = v
		}
		assert.Equal(t, labels, labelsOf(Smooth(labels, nil)))
	}
}

func TestSmooth_Confidences(t *testing.T) {
	got := Smooth([]int{0, 1, 0}, []float64{0.2, 0.9, 0.4})
	assert.Equal(t, []Pair{{0, 0.2}, {0, 0.9}, {0, 0.4}}, got)

	got = Smooth([]int{1, 1}, nil)
	assert.Equal(t, []Pair{{1, 0}, {1, 0}}, got)
}

func TestGroup_Empty(t *testing.T) {
	assert.Empty(t, Group(nil, defaultParams))
	assert.Empty(t, Group([]Pair{}, defaultParams))
}

func TestGroup(t *testing.T) {
	pairs := []Pair{{0, 0.2}, {0, 0.4}, {1, 0.8}, {1, 0.9}, {1, 1.0}, {0, 0.1}}
	ranges := Group(pairs, defaultParams)
	require.Len(t, ranges, 3)

	hop := 128.0 / 16000.0

	assert.Equal(t, LabelFluent, ranges[0].Label)
	assert.Equal(t, []int{0, 1}, ranges[0].Chunks)
	assert.Equal(t, 0.0, ranges[0].Start)
	assert.Equal(t, 1.0, ranges[0].End)
	assert.InDelta(t, 0.3, ranges[0].AvgConfidence, 1e-12)

	assert.Equal(t, LabelStammered, ranges[1].Label)
	assert.True(t, ranges[1].Stammered())
	assert.Equal(t, []int{2, 3, 4}, ranges[1].Chunks)
	assert.InDelta(t, 2*hop, ranges[1].Start, 1e-12)
	assert.InDelta(t, 2*hop+1, ranges[1].End, 1e-12)
	assert.InDelta(t, 0.9, ranges[1].AvgConfidence, 1e-12)

	assert.Equal(t, LabelFluent, ranges[2].Label)
	assert.False(t, ranges[2].Stammered())
	assert.Equal(t, []int{5}, ranges[2].Chunks)
}

func TestGroup_PartitionsChunks(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for trial := 0; trial < 20; trial++ {
		n := 1 + r.IntN(200)
		labels := make([]int, n)
		for i := range labels {
			labels[i] = r.IntN(2)
		}

		ranges := Group(Smooth(labels, nil), defaultParams)

		var all []int
		for i, rg := range ranges {
			require.NotEmpty(t, rg.Chunks)
			if i > 0 {
				assert.NotEqual(t, ranges[i-1].Label, rg.Label, "adjacent ranges share a label")
			}
			all = append(all, rg.Chunks...)
		}
		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, all)
	}
}

// The end time uses the first chunk's offset plus one chunk duration, even
// when the range spans many chunks.
func TestGroup_EndTimeUsesFirstChunk(t *testing.T) {
	pairs := make([]Pair, 400)
	for i := 100; i < 400; i++ {
		pairs[i].Label = 1
	}
	params := Params{SampleRate: 16000, Hop: 128, ChunkDuration: 1.0, AudioDuration: 10}

	ranges := Group(pairs, params)
	require.Len(t, ranges, 2)
	assert.Len(t, ranges[1].Chunks, 300)
	assert.InDelta(t, 0.8, ranges[1].Start, 1e-12)
	assert.InDelta(t, 1.8, ranges[1].End, 1e-12)
}

func TestGroup_ClampsToDuration(t *testing.T) {
	pairs := []Pair{{0, 0}, {1, 0}}
	params := Params{SampleRate: 16000, Hop: 16000, ChunkDuration: 1.0, AudioDuration: 1.5}

	ranges := Group(pairs, params)
	require.Len(t, ranges, 2)
	assert.Equal(t, 1.0, ranges[0].End)
	assert.Equal(t, 1.0, ranges[1].Start)
	assert.Equal(t, 1.5, ranges[1].End)

	ranges = Group(pairs, Params{SampleRate: 16000, Hop: 128, ChunkDuration: 1.0})
	for _, rg := range ranges {
		assert.Zero(t, rg.Start)
		assert.Zero(t, rg.End)
	}
}
