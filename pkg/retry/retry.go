// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package retry provides the single backoff policy surface shared by the
// delivery and polling services.
//
// A [Policy] produces exponential backoff delays with jitter. Two stock
// policies exist: [DefaultPolicy] for generic transport failures and
// [RateLimitPolicy] with a longer base and ceiling for rate-limit-class
// failures, which recover on the remote side's schedule rather than ours.
package retry

import (
	"math/rand"
	"time"
)

// Policy describes an exponential backoff schedule.
type Policy struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Multiplier scales the delay per attempt. Must be >= 1.
	Multiplier float64
	// JitterFraction randomizes each delay by +/- this fraction, spreading
	// retries from concurrent failures. 0 disables jitter.
	JitterFraction float64
	// MaxAttempts bounds the total number of attempts (first try included).
	MaxAttempts int
}

// DefaultPolicy returns the schedule for generic retryable failures.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay:   5 * time.Second,
		MaxDelay:       5 * time.Minute,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		MaxAttempts:    5,
	}
}

// RateLimitPolicy returns the schedule for rate-limit-class failures, with
// a longer base delay and ceiling than the generic policy.
func RateLimitPolicy() Policy {
	return Policy{
		InitialDelay:   time.Minute,
		MaxDelay:       30 * time.Minute,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		MaxAttempts:    5,
	}
}

// Delay returns the backoff before retry number attempt (1-based: the
// delay after the first failure is Delay(1)). Attempts below 1 are treated
// as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		// Uniform in [1-j, 1+j].
		d *= 1 + p.JitterFraction*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt (1-based count of attempts made so
// far) has used up the policy's budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
