package scope

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		channelID string
		threadID  string
		userID    string
		want      string
	}{
		{"thread wins", "C123", "1700000000.000100", "U1", "C123-1700000000.000100"},
		{"thread ignores user", "C123", "171.9", "", "C123-171.9"},
		{"dm with user", "D456", "", "U1", "D456-U1"},
		{"dm without user", "D456", "", "", "D456"},
		{"plain channel", "C123", "", "U1", "C123"},
		{"dm thread is shared", "D456", "171.9", "U1", "D456-171.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.channelID, tt.threadID, tt.userID); got != tt.want {
				t.Errorf("Resolve(%q, %q, %q) = %q, want %q", tt.channelID, tt.threadID, tt.userID, got, tt.want)
			}
		})
	}
}

func TestResolveStable(t *testing.T) {
	a := Resolve("C123", "171.9", "U1")
	b := Resolve("C123", "171.9", "U2")
	if a != b {
		t.Errorf("same thread resolved to different keys: %q vs %q", a, b)
	}

	channel := Resolve("C123", "", "")
	if a == channel {
		t.Error("thread key must be distinct from its parent channel key")
	}
}

func TestKey(t *testing.T) {
	if got := Key("U1", "C123", ""); got != "U1:C123:direct" {
		t.Errorf("Key without thread = %q", got)
	}
	if got := Key("U1", "C123", "171.9"); got != "U1:C123:171.9" {
		t.Errorf("Key with thread = %q", got)
	}
}
