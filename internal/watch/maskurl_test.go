package watch

import (
	"strings"
	"testing"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "authToken masked",
			in:   "wss://push.example.com/?authToken=abcdefgh1234",
			want: "wss://push.example.com/?authToken=abcd...34",
		},
		{
			name: "short token fully masked",
			in:   "wss://push.example.com/?token=abc",
			want: "wss://push.example.com/?token=...",
		},
		{
			name: "other params untouched",
			in:   "wss://push.example.com/?channel=presence",
			want: "wss://push.example.com/?channel=presence",
		},
		{
			name: "no query",
			in:   "wss://push.example.com/stream",
			want: "wss://push.example.com/stream",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskURL(tt.in); got != tt.want {
				t.Errorf("maskURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaskURLNeverLeaksToken(t *testing.T) {
	const secret = "supersecrettokenvalue"
	got := maskURL("wss://push.example.com/?authToken=" + secret + "&access_token=" + secret)
	if strings.Contains(got, secret) {
		t.Errorf("masked url still contains the token: %s", got)
	}
}
