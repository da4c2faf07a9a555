package permission

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Mode
		ok   bool
	}{
		{"bypass on", ModeBypass, true},
		{"BYPASS ON", ModeBypass, true},
		{"bypass enable", ModeBypass, true},
		{"bypass true", ModeBypass, true},
		{"bypass 1", ModeBypass, true},
		{"bypass off", ModeApproval, true},
		{"bypass disable", ModeApproval, true},
		{"approval on", ModeApproval, true},
		{"approval off", ModeBypass, true},
		{"auto on", ModeAuto, true},
		{"auto off", ModeApproval, true},
		{"auto false", ModeApproval, true},
		{"  Auto   0  ", ModeApproval, true},
		{"bypass", "", false},
		{"bypass maybe", "", false},
		{"deploy on", "", false},
		{"can you run the tests", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseCommand(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseCommandEquivalences(t *testing.T) {
	// "approval off" and "bypass on" are the same request.
	a, _ := ParseCommand("approval off")
	b, _ := ParseCommand("bypass on")
	if a != b {
		t.Errorf("approval off (%q) != bypass on (%q)", a, b)
	}

	// Turning auto off never escalates to bypass.
	got, _ := ParseCommand("auto off")
	if got == ModeBypass {
		t.Error("auto off must not yield bypass")
	}
	if got != ModeApproval {
		t.Errorf("auto off = %q, want approval", got)
	}
}

func TestIsStatusQuery(t *testing.T) {
	positive := []string{"mode", "mode?", "mode status", "Mode Status?", "bypass status", "approval?", "auto", "AUTO STATUS"}
	for _, text := range positive {
		if !IsStatusQuery(text) {
			t.Errorf("IsStatusQuery(%q) = false, want true", text)
		}
	}

	negative := []string{"", "status", "mode please", "what mode", "bypass on", "auto off now"}
	for _, text := range negative {
		if IsStatusQuery(text) {
			t.Errorf("IsStatusQuery(%q) = true, want false", text)
		}
	}
}
