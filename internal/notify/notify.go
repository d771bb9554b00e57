// Package notify surfaces notifications on the desktop. Delivery is best
// effort over notify-send; hosts without it get a silent no-op.
package notify

import (
	"os/exec"

	"go.uber.org/zap"
)

// Desktop shells out to notify-send. Errors are logged at debug and
// otherwise swallowed; a missing binary must not degrade the session.
type Desktop struct {
	logger *zap.Logger
}

// NewDesktop creates a desktop notifier.
func NewDesktop(logger *zap.Logger) *Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Desktop{logger: logger}
}

// Notify shows a transient desktop notification.
func (d *Desktop) Notify(title, body string) {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return
	}
	go func() {
		if err := exec.Command("notify-send", "--app-name=sdesk", title, body).Run(); err != nil {
			d.logger.Debug("notify-send failed", zap.Error(err))
		}
	}()
}

// Noop discards every notification. Used headless and in tests.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(string, string) {}
