// Package action defines the handler contract between the sync engine and the
// per-kind action implementations.
package action

import (
	"context"

	"chorus/internal/planner"
)

// Handler describes the contract the executor needs from each action kind.
// Execute mutates the action's record to its advanced state; the executor
// persists the result in a single atomic write.
type Handler interface {
	Prepare(context.Context, *planner.Action) error
	Execute(context.Context, *planner.Action) error
	HealthCheck(context.Context) Health
}
