package model

import "testing"

func TestEventMaskHas(t *testing.T) {
	m := EventMessageDelete | EventMemberJoin

	if !m.Has(EventMessageDelete) || !m.Has(EventMemberJoin) {
		t.Error("set bits not reported")
	}
	if m.Has(EventMessageEdit) {
		t.Error("unset bit reported")
	}
	if !m.Has(EventMessageDelete | EventMemberJoin) {
		t.Error("combined query over set bits failed")
	}
	if m.Has(EventMessageDelete | EventMessageEdit) {
		t.Error("combined query must require every bit")
	}
	if !EventMask(EventAll).Has(EventMessagePin) {
		t.Error("EventAll missing a defined bit")
	}
}

func TestEventMaskString(t *testing.T) {
	tests := []struct {
		mask EventMask
		want string
	}{
		{EventMessageDelete, "message_delete"},
		{EventMessagePin, "message_pin"},
		{EventReactionClear, "reaction_clear"},
		{EventMessageDelete | EventMessageEdit, "mask(0x3)"},
		{0, "mask(0x0)"},
	}
	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("EventMask(%d).String() = %q, want %q", tt.mask, got, tt.want)
		}
	}
}

func TestWatchDelivered(t *testing.T) {
	var w Watch
	if w.Delivered("k") {
		t.Error("empty watch reports delivered")
	}
	w.MarkDelivered("k")
	if !w.Delivered("k") {
		t.Error("marked key not reported")
	}
}
