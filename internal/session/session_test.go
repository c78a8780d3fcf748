package session

import "testing"

func TestExpiredURLDetection(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.linkedin.com/login", true},
		{"https://www.linkedin.com/uas/login?session_redirect=%2Fin%2Fjane", true},
		{"https://www.linkedin.com/authwall?trk=...", true},
		{"https://www.linkedin.com/in/jane-doe/", false},
		{"https://www.linkedin.com/feed/", false},
	}
	for _, tt := range tests {
		if got := expired(tt.url); got != tt.want {
			t.Errorf("expired(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateUnauthenticated:   "unauthenticated",
		StateAuthenticating:    "authenticating",
		StateAuthenticated:     "authenticated",
		StateCheckpointBlocked: "checkpoint_blocked",
		StateExpired:           "expired",
		StateTerminated:        "terminated",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
