package notify

import (
	"context"
	"sync"
	"time"
)

// Delivery is one message captured by Recorder.
type Delivery struct {
	Kind      string // "verification" or "password_reset"
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Recorder keeps deliveries in memory so callers can read tokens back.
// Err, when set, is returned from every send after recording.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
}

func (r *Recorder) SendEmailVerification(_ context.Context, email, token string) error {
	return r.record(Delivery{Kind: "verification", Email: email, Token: token})
}

func (r *Recorder) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	return r.record(Delivery{Kind: "password_reset", Email: email, Token: token, ExpiresAt: expiresAt})
}

func (r *Recorder) record(d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return r.Err
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Last returns the most recent delivery of kind.
func (r *Recorder) Last(kind string) (Delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.deliveries) - 1; i >= 0; i-- {
		if r.deliveries[i].Kind == kind {
			return r.deliveries[i], true
		}
	}
	return Delivery{}, false
}
