package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// DesktopSender shows a notification on the local desktop.
type DesktopSender interface {
	Send(title, message string) error
}

// LinuxSender uses notify-send.
type LinuxSender struct{}

func (LinuxSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSSender uses osascript.
type MacOSSender struct{}

func (MacOSSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// DesktopNotifier forwards messages to a platform sender.
type DesktopNotifier struct {
	sender DesktopSender
}

// NewDesktopNotifier returns a notifier for the current platform, or nil when
// the platform has no supported sender.
func NewDesktopNotifier() *DesktopNotifier {
	switch runtime.GOOS {
	case "linux":
		return &DesktopNotifier{sender: LinuxSender{}}
	case "darwin":
		return &DesktopNotifier{sender: MacOSSender{}}
	default:
		return nil
	}
}

func (n *DesktopNotifier) Notify(ctx context.Context, msg Message) error {
	// best effort; a missing notify-send must not fail the run
	_ = n.sender.Send(msg.Subject, msg.Body)
	return nil
}
