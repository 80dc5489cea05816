package domain

import (
	"testing"
	"time"
)

func TestUser_IsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"expired", time.Now().Add(-time.Hour), true},
		{"not expired", time.Now().Add(time.Hour), false},
		{"no expiry", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{UID: "u1", ExpiresAt: tt.expiresAt}
			if got := u.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_CanPractice(t *testing.T) {
	tests := []struct {
		name string
		user *User
		want bool
	}{
		{"nil", nil, false},
		{"unverified", &User{UID: "u1"}, false},
		{"verified", &User{UID: "u1", EmailVerified: true}, true},
		{"no uid", &User{EmailVerified: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.CanPractice(); got != tt.want {
				t.Errorf("CanPractice() = %v, want %v", got, tt.want)
			}
		})
	}
}
