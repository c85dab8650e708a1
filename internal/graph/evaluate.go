package graph

import "context"

// Evaluate runs one full fixpoint pass over the graph: reset transient
// runtime state, apply auto-up intent, then iterate the state machine until
// it stops making progress. It returns whether any node's State changed.
// Evaluate must be called after Prepare and every time a signal, an
// enable/disable, or a node's presence changes.
func (g *Graph) Evaluate(ctx context.Context) bool {
	g.runtimeReset()

	changed := g.applyAutoUp()
	changed = g.detectRequireCycles() || changed
	changed = g.stateMachine(ctx) || changed

	return changed
}

type dfsColor int

const (
	dfsWhite dfsColor = iota
	dfsGray
	dfsBlack
)

// detectRequireCycles runs a three-color DFS over the requires edges of
// enabled nodes. Every node on a detected cycle is marked Failed(Cycle); the
// pass stops at the first cycle found, matching the guarantee that a new
// requires cycle surfaces on the very next evaluate and not before.
func (g *Graph) detectRequireCycles() bool {
	color := make(map[string]dfsColor, len(g.order))
	var stack []*Node
	found := false

	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		color[n.id] = dfsGray
		stack = append(stack, n)

		for _, reqID := range n.requires {
			r, ok := g.nodes[reqID]
			if !ok || !r.Enabled {
				continue
			}
			switch color[r.id] {
			case dfsWhite:
				if visit(r) {
					return true
				}
			case dfsGray:
				markCycle(stack, r.id)
				return true
			}
		}

		stack = stack[:len(stack)-1]
		color[n.id] = dfsBlack
		return false
	}

	for _, n := range g.Nodes() {
		if !n.Enabled || found {
			continue
		}
		if color[n.id] == dfsWhite {
			if visit(n) {
				found = true
			}
		}
	}

	return found
}

// markCycle marks every node from backEdgeTarget to the top of stack
// Failed(Cycle) — the set of nodes actually on the detected cycle.
func markCycle(stack []*Node, backEdgeTarget string) {
	start := 0
	for i, n := range stack {
		if n.id == backEdgeTarget {
			start = i
			break
		}
	}
	for _, n := range stack[start:] {
		n.State = StateFailed
		n.FailReason = FailCycle
	}
}

// runtimeReset clears the per-cycle "activated" latch on every node and
// forces any disabled node back to Inactive.
func (g *Graph) runtimeReset() {
	for _, n := range g.Nodes() {
		n.Activated = false
		if !n.Enabled {
			n.State = StateInactive
		}
	}
}

// applyAutoUp gives every enabled, present, auto-up node that is still
// Inactive one attempt at activation per presence cycle: no retries, no
// admin override once latched. AutoLatched is cleared only by loss of
// presence (see SetPresent); disabling the node does not clear it.
func (g *Graph) applyAutoUp() bool {
	changed := false
	for _, n := range g.Nodes() {
		if !n.Enabled || !n.AutoUp || !n.Present || n.AutoLatched {
			continue
		}
		if n.State != StateInactive {
			continue
		}
		n.State = StateWaiting
		n.AutoLatched = true
		changed = true
	}
	return changed
}

// stateMachine applies demotion, activation and readiness transitions
// repeatedly until a full pass makes no further progress.
func (g *Graph) stateMachine(ctx context.Context) bool {
	changed := false
	progress := true

	for progress {
		progress = false

		for _, n := range g.Nodes() {
			if !n.Enabled {
				continue
			}

			// 1. Demotion on signal loss.
			if n.State == StateActive && !n.signalsMet() {
				n.State = StateWaiting
				changed = true
				progress = true
				continue
			}

			// 2. Activation side effects, once per enable cycle.
			if n.State == StateWaiting && n.requiresMet(g) && !n.Activated {
				if !g.activateNode(ctx, n) {
					n.State = StateFailed
					n.FailReason = FailAction
					changed = true
					continue
				}
				n.Activated = true
				progress = true
			}

			// 3. Readiness: requires and signals both met.
			if n.State == StateWaiting && n.requiresMet(g) && n.signalsMet() {
				n.State = StateActive
				changed = true
				progress = true
			}
		}
	}

	return changed
}

func (g *Graph) activateNode(ctx context.Context, n *Node) bool {
	if n.Actions == nil {
		return true
	}
	if err := n.Actions.Activate(ctx, n); err != nil {
		return false
	}
	return true
}

// SetPresent updates a node's Present flag (kernel object existence) and
// clears its auto-up latch when presence is lost, so the next time the
// object reappears it gets a fresh one-shot auto-activation attempt.
func (g *Graph) SetPresent(id string, present bool) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	changed := n.Present != present
	n.Present = present
	if !present {
		n.AutoLatched = false
	}
	return changed
}
