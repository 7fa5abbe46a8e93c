package worker

import "time"

// Backoff computes how long to wait before retrying a failed sweep. The
// delay doubles per consecutive failure (geometric with Factor) and is
// clamped at Max so a long outage never pushes the retry past one interval.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Delay returns the wait after the given number of consecutive failures.
// failures is 1-based; values below 1 return Initial.
func (b Backoff) Delay(failures int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	delay := float64(initial)
	for i := 1; i < failures; i++ {
		delay *= factor
		if b.Max > 0 && delay >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	return time.Duration(delay)
}
