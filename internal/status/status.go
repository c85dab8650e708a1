// Package status projects the graph's internal explain/admin state onto the
// user-visible {status, code} pair reported over the control socket.
package status

import "github.com/routerwrt/lnmgr/internal/graph"

// Status is the user-visible node state.
type Status int

const (
	StatusUp Status = iota
	StatusWaiting
	StatusFailed
	StatusAdminDown
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusWaiting:
		return "waiting"
	case StatusFailed:
		return "failed"
	case StatusAdminDown:
		return "admin_down"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Code further qualifies a non-Up Status; the zero value means no code
// applies (Up and Disabled never carry one).
type Code int

const (
	CodeNone Code = iota
	CodeAdmin
	CodeFailed
	CodeSignal
)

func (c Code) String() string {
	switch c {
	case CodeAdmin:
		return "admin"
	case CodeFailed:
		return "failed"
	case CodeSignal:
		return "signal"
	default:
		return ""
	}
}

// Projected is the {status, code} pair plus the explain detail it was
// derived from, ready for JSON serialization by the control server.
type Projected struct {
	Status Status
	Code   Code
	Detail string
}

// Project maps a node's explain result and admin_up signal to its
// user-visible status, applying the frozen top-down priority: Disabled,
// then AdminDown, then Failed, then Waiting, and finally Up.
func Project(explain graph.Explanation, adminUp bool) Projected {
	if explain.Type == graph.ExplainDisabled {
		return Projected{Status: StatusDisabled}
	}
	if !adminUp {
		return Projected{Status: StatusAdminDown, Code: CodeAdmin}
	}
	if explain.Type == graph.ExplainFailed {
		return Projected{Status: StatusFailed, Code: CodeFailed}
	}
	if explain.Type != graph.ExplainNone {
		return Projected{Status: StatusWaiting, Code: CodeSignal, Detail: explain.Detail}
	}
	return Projected{Status: StatusUp}
}

// AdminUp derives the admin_up signal for a node directly from its admin_up
// signal value, rather than clamping it true as a placeholder: a node with
// no admin_up signal declared is treated as administratively up, since
// nothing ever gates it down.
func AdminUp(n *graph.Node) bool {
	v, ok := n.SignalValue("admin_up")
	if !ok {
		return true
	}
	return v
}
