package actor

import "fmt"

// The supervisor protocol (spec.md §4.6) is the stable, process-internal
// wire contract a parent cell observes from its children. A handler cell
// reports each failed message with an ErrorReportMsg and keeps running. A
// procedure cell whose body fails sends one ErrorReportMsg and then stops
// silently, so no StoppedMsg follows it; otherwise a stopping child sends
// one StoppedMsg or StoppedUncleanMsg.

// StoppedMsg reports that a child terminated normally (spec.md §4.6,
// `('stopped', child)`).
type StoppedMsg struct {
	// Child is the cell reference that terminated.
	Child *Cell
}

// StoppedUncleanMsg reports that a child's stop did not complete via the
// body's orderly exit (spec.md §4.6, `('stopped', child, 'unclean',
// reason)`). The runtime sends it only when the body does not exit within
// the stop timeout after cancellation. A body that returns an error other
// than ErrCancelled while being stopped is not reported this way: the
// parent receives an ErrorReportMsg and then a StoppedMsg.
type StoppedUncleanMsg struct {
	Child  *Cell
	Reason string
}

// ErrorReportMsg reports that a child raised while processing a message
// (spec.md §4.6, `('error', child, (exc, trace), during_startup)`). The
// runtime sets only Child and Err: Trace is empty and DuringStartup is false
// in every report it sends.
type ErrorReportMsg struct {
	Child        *Cell
	Err          error
	Trace        string
	DuringStartup bool
}

// String renders a human-readable summary of the message.
func (m StoppedMsg) String() string {
	return fmt.Sprintf("stopped(%s)", m.Child.ID())
}

func (m StoppedUncleanMsg) String() string {
	return fmt.Sprintf("stopped-unclean(%s, reason=%s)", m.Child.ID(), m.Reason)
}

func (m ErrorReportMsg) String() string {
	return fmt.Sprintf("error(%s, during_startup=%t): %v",
		m.Child.ID(), m.DuringStartup, m.Err)
}
