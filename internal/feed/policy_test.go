package feed

import (
	"testing"

	"github.com/vicky5124/robo-arc-sub000/internal/model"
)

func TestContentFilterAccepts(t *testing.T) {
	f := ContentFilter{
		GeneralAllow:    []string{"landscape", "animals"},
		RestrictedExtra: []string{"gore"},
		Banned:          []string{"spoiler"},
	}

	tests := []struct {
		name   string
		policy model.Policy
		tags   []string
		want   bool
	}{
		{"general allowed tag", model.PolicyGeneral, []string{"landscape", "sky"}, true},
		{"general no allowed tag", model.PolicyGeneral, []string{"sky"}, false},
		{"general banned tag wins", model.PolicyGeneral, []string{"landscape", "spoiler"}, false},
		{"restricted extra tag", model.PolicyRestricted, []string{"gore"}, true},
		{"restricted base tag", model.PolicyRestricted, []string{"animals"}, true},
		{"restricted ignores ban list", model.PolicyRestricted, []string{"landscape", "spoiler"}, true},
		{"restricted no match", model.PolicyRestricted, []string{"sky"}, false},
		{"no tags", model.PolicyGeneral, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Accepts(tt.policy, tt.tags); got != tt.want {
				t.Errorf("Accepts(%v, %v) = %v, want %v", tt.policy, tt.tags, got, tt.want)
			}
		})
	}
}

func TestContentFilterEmptyAllowAcceptsAll(t *testing.T) {
	f := ContentFilter{Banned: []string{"spoiler"}}

	if !f.Accepts(model.PolicyGeneral, []string{"anything"}) {
		t.Error("empty allow-list must accept untagged policy matches")
	}
	if f.Accepts(model.PolicyGeneral, []string{"spoiler"}) {
		t.Error("banned tag must still reject for general")
	}
	if !f.Accepts(model.PolicyRestricted, []string{"spoiler"}) {
		t.Error("restricted must not consult the ban list")
	}
}
