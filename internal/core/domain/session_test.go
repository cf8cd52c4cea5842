package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewSession(t *testing.T) {
	tests := []struct {
		name    string
		access  string
		refresh string
		wantErr bool
	}{
		{"both set", "acc", "ref", false},
		{"missing access", "", "ref", true},
		{"missing refresh", "acc", "", true},
		{"both missing", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.access, tt.refresh)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("error should be ErrInvalidArgument, got %v", err)
				}
				if !s.IsZero() {
					t.Errorf("session should be zero on error, got %v", s)
				}
				return
			}
			if s.State() != StateLoggedIn {
				t.Errorf("State() = %v, want %v", s.State(), StateLoggedIn)
			}
		})
	}
}

func TestSession_State(t *testing.T) {
	tests := []struct {
		name string
		s    Session
		want State
		auth bool
	}{
		{"empty", Session{}, StateLoggedOut, false},
		{"full", Session{Access: "a", Refresh: "r"}, StateLoggedIn, true},
		{"access only", Session{Access: "a"}, StatePartial, true},
		{"refresh only", Session{Refresh: "r"}, StatePartial, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
			if got := tt.s.Authenticated(); got != tt.auth {
				t.Errorf("Authenticated() = %v, want %v", got, tt.auth)
			}
		})
	}
}

func TestSession_Equal(t *testing.T) {
	a := Session{Access: "a", Refresh: "r"}
	if !a.Equal(Session{Access: "a", Refresh: "r"}) {
		t.Error("identical sessions should be equal")
	}
	if a.Equal(Session{Access: "a", Refresh: "x"}) {
		t.Error("sessions with different refresh should differ")
	}
}

func TestSession_StringMasksCredentials(t *testing.T) {
	s := Session{Access: "eyJhbGciOiJIUzI1NiJ9.payload.sig", Refresh: "short"}
	out := s.String()

	if strings.Contains(out, "payload") {
		t.Errorf("String() leaked credential body: %s", out)
	}
	if !strings.Contains(out, "eyJh...") {
		t.Errorf("String() should keep a hint of the access credential: %s", out)
	}
	if !strings.Contains(out, "refresh=***") {
		t.Errorf("short credential should be fully masked: %s", out)
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "<unset>"},
		{"abc", "***"},
		{"0123456789ab", "***"},
		{"0123456789abcdef", "0123...cdef"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateLoggedIn.String() != "logged_in" {
		t.Errorf("StateLoggedIn.String() = %q", StateLoggedIn.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("unknown state String() = %q", State(42).String())
	}
}
