package liveness

import "testing"

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		code int
		want Status
	}{
		{200, Alive},
		{204, Alive},
		{301, Alive},
		{399, Alive},
		{403, Dead},
		{404, Dead},
		{410, Dead},
		{429, Unknown},
		{500, Dead},
		{503, Dead},
	}
	for _, tt := range tests {
		if got := p.Classify(tt.code); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestPolicy_DeadOverridesAliveRange(t *testing.T) {
	p, err := NewPolicy([]StatusRange{{From: 200, To: 299}}, []int{204}, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if p.Classify(204) != Dead {
		t.Error("explicit dead code should win over alive range")
	}
	if p.Classify(200) != Alive {
		t.Error("200 should be alive")
	}
	if p.Classify(302) != Dead {
		t.Error("codes outside alive ranges are dead")
	}
}

func TestNewPolicy_Invalid(t *testing.T) {
	if _, err := NewPolicy(nil, nil, nil); err == nil {
		t.Error("expected error without alive ranges")
	}
	if _, err := NewPolicy([]StatusRange{{From: 300, To: 200}}, nil, nil); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := NewPolicy([]StatusRange{{From: 200, To: 299}}, []int{503}, []int{503}); err == nil {
		t.Error("expected error for code both dead and unknown")
	}
}
