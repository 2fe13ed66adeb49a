package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned when a module's circuit breaker is engaged.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module is paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when module is paused in p.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
