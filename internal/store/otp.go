package store

import (
	"time"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
)

// OTPStore holds at most one live challenge per phone number. Expired
// challenges linger until SweepExpired runs at the top of send/verify.
type OTPStore struct {
	challenges *Keyed[model.OTPChallenge]
}

// NewOTPStore creates an empty OTP store.
func NewOTPStore() *OTPStore {
	return &OTPStore{challenges: NewKeyed[model.OTPChallenge]()}
}

// GetByPhone returns the challenge for phone to, if present.
func (s *OTPStore) GetByPhone(to string) (model.OTPChallenge, bool) {
	return s.challenges.Get(to)
}

// Set stores challenge under its phone number, superseding any prior one.
// The entry expires with the challenge, so SweepExpired can reap it.
func (s *OTPStore) Set(to string, challenge model.OTPChallenge) {
	s.challenges.SetExpiring(to, challenge, challenge.ExpiresAt)
}

// Delete removes the challenge for phone to, if any.
func (s *OTPStore) Delete(to string) {
	s.challenges.Delete(to)
}

// DecrementAttempts atomically decrements the attempts-remaining counter for
// phone to and returns the new count. ok is false when no challenge exists.
func (s *OTPStore) DecrementAttempts(to string) (remaining int, ok bool) {
	s.challenges.Update(to, func(ch model.OTPChallenge, present bool) (model.OTPChallenge, bool) {
		if !present {
			return ch, false
		}
		ch.AttemptsRemaining--
		remaining = ch.AttemptsRemaining
		ok = true
		return ch, true
	})
	return remaining, ok
}

// SweepExpired removes every challenge whose expiry has passed.
func (s *OTPStore) SweepExpired(now time.Time) int {
	return s.challenges.Sweep(now)
}
