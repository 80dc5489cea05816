package domain

import "time"

// User is the signed-in identity as read from the identity provider's
// token. The session controller only ever reads it.
type User struct {
	UID           string
	Email         string
	EmailVerified bool
	IsVIP         bool
	ExpiresAt     time.Time
}

// IsExpired reports whether the identity token has expired.
func (u *User) IsExpired() bool {
	return !u.ExpiresAt.IsZero() && time.Now().After(u.ExpiresAt)
}

// CanPractice reports whether the user may run sessions that report results.
func (u *User) CanPractice() bool {
	return u != nil && u.UID != "" && u.EmailVerified
}

// Stats is the aggregate progress shown on the profile dashboard.
type Stats struct {
	XP        int `json:"xp"`
	Streak    int `json:"streak"`
	Completed int `json:"completed"`
}

// CoachAdvice is the weakness analysis returned by the backend.
type CoachAdvice struct {
	Weaknesses []string `json:"weaknesses"`
	Advice     string   `json:"advice"`
}
