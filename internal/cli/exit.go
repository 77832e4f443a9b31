package cli

import "fmt"

// actionExit carries a non-zero action exit code (QUEUE, REJECT, HOLD) up
// through cobra. An action exit is not an error — the evidence root is
// fully committed — so Execute maps it silently.
type actionExit struct {
	code int
}

func (a *actionExit) Error() string {
	return fmt.Sprintf("action exit %d", a.code)
}

// exitFor wraps a pipeline exit code for cobra: zero is success, anything
// else rides up as an actionExit.
func exitFor(code int) error {
	if code == 0 {
		return nil
	}
	return &actionExit{code: code}
}
