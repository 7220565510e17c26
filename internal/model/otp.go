package model

import (
	"time"
)

// OTPChallenge is the live verification cycle for one phone number.
type OTPChallenge struct {
	SessionID         string    `json:"session_id"`
	Code              string    `json:"-"`
	To                string    `json:"to"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
}

// OTPResult is the outcome of an OTP send or verify operation. Business
// failures (wrong code, expired, cooldown) are reported here, not as errors.
type OTPResult struct {
	Success           bool       `json:"success"`
	SessionID         string     `json:"session_id,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	Error             string     `json:"error,omitempty"`
}
