package common

import "errors"

// ErrModulePaused is returned when a native module has been administratively
// halted and a mutating operation is attempted against it.
var ErrModulePaused = errors.New("module paused")

// Module names recognised by the pause switchboard.
const (
	ModuleToken = "token"
	ModuleDuel  = "duel"
)

// PauseView exposes the pause switchboard consulted before every mutating
// native-module operation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
