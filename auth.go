// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cctp

import "errors"

var (
	ErrUnauthorized = errors.New("caller not authorized")
	ErrSystemPaused = errors.New("system paused")
	ErrZeroIdentity = errors.New("identity must not be zero")
)

// Pauser gates value-moving operations. Pause administration itself lives
// outside this module; components only consult the gate.
type Pauser interface {
	Paused() bool
}

// notPaused is the shared whenNotPaused precondition. A nil gate never
// pauses.
func notPaused(p Pauser) error {
	if p != nil && p.Paused() {
		return ErrSystemPaused
	}
	return nil
}
