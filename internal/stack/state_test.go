package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	uploaded := Facts{LocalUpstream: true, UpstreamUploaded: true}

	tests := []struct {
		name string
		give Facts
		want State
	}{
		{"RemoteUpstream", Facts{}, RootReached},
		{"NeverUploaded", Facts{LocalUpstream: true}, UnseenUpstream},
		{"Covered", with(uploaded, func(f *Facts) { f.BaseIsLastUpload = true }), Covered},
		{"Behind", with(uploaded, func(f *Facts) { f.LastUploadBeforeBase = true }), Behind},
		{"Ahead", with(uploaded, func(f *Facts) { f.BaseBeforeLastUpload = true }), AheadDiverged},
		{"Unrelated", uploaded, Unrelated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.give))
		})
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		state     State
		str       string
		continues bool
		fatal     bool
	}{
		{RootReached, "root-reached", false, false},
		{UnseenUpstream, "unseen-upstream", true, false},
		{Covered, "covered", false, false},
		{Behind, "behind", true, false},
		{AheadDiverged, "ahead-diverged", false, true},
		{Unrelated, "unrelated", false, true},
		{State(0), "unknown", false, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.state.String())
		assert.Equal(t, tt.continues, tt.state.Continues(), "%v.Continues()", tt.state)
		assert.Equal(t, tt.fatal, tt.state.Fatal(), "%v.Fatal()", tt.state)
	}
}

func with(f Facts, fn func(*Facts)) Facts {
	fn(&f)
	return f
}
