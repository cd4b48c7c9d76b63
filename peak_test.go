package pamixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeFragment struct {
	data   []byte
	length int
}

type fakeFragments struct {
	frags []fakeFragment
	drops int
}

func (f *fakeFragments) Peek() ([]byte, int) {
	if len(f.frags) == 0 {
		return nil, 0
	}
	return f.frags[0].data, f.frags[0].length
}

func (f *fakeFragments) Drop() {
	f.drops++
	if len(f.frags) > 0 {
		f.frags = f.frags[1:]
	}
}

func TestReadPeak(t *testing.T) {
	tests := []struct {
		name  string
		frag  fakeFragment
		peak  float32
		res   peekResult
		drops int
	}{
		{"empty", fakeFragment{}, 0, peekEmpty, 0},
		{"hole", fakeFragment{nil, 16}, 0, peekHole, 1},
		{"zero length", fakeFragment{[]byte{}, 0}, 0, peekMalformed, 1},
		{"partial sample", fakeFragment{[]byte{1, 2, 3}, 3}, 0, peekMalformed, 1},
		{"length mismatch", fakeFragment{samples(0.5), 8}, 0, peekMalformed, 1},
		{"single sample", fakeFragment{samples(0.25), 4}, 0.25, peekSample, 1},
		{"last sample wins", fakeFragment{samples(0.9, 0.1, 0.4), 12}, 0.4, peekSample, 1},
		{"clamped high", fakeFragment{samples(3), 4}, 1, peekSample, 1},
		{"clamped low", fakeFragment{samples(-0.5), 4}, 0, peekSample, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeFragments{}
			if tt.frag.data != nil || tt.frag.length != 0 {
				r.frags = []fakeFragment{tt.frag}
			}
			peak, res := readPeak(r)
			assert.Equal(t, tt.res, res)
			assert.Equal(t, tt.peak, peak)
			assert.Equal(t, tt.drops, r.drops)
		})
	}
}

func TestReadPeakConsumesOneFragment(t *testing.T) {
	r := &fakeFragments{frags: []fakeFragment{
		{samples(0.1), 4},
		{nil, 4},
		{samples(0.3), 4},
	}}

	var got []peekResult
	for {
		_, res := readPeak(r)
		if res == peekEmpty {
			break
		}
		got = append(got, res)
	}
	assert.Equal(t, []peekResult{peekSample, peekHole, peekSample}, got)
	assert.Equal(t, 3, r.drops)
}

func TestPeekResultString(t *testing.T) {
	assert.Equal(t, "hole", peekHole.String())
	assert.Equal(t, "malformed", peekMalformed.String())
	assert.Equal(t, "sample", peekSample.String())
}
