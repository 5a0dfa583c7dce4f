// Package flow declares the two order-intake conversations as ordered step
// tables. Steps are typed per flow so a session can never hold a machining
// step while filling an engine-repair order.
package flow

import (
	"fmt"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
)

// Step is a position inside a flow: a MachiningStep, an EngineStep or Idle.
type Step interface {
	Flow() orders.FlowKind
	Name() string
	isStep()
}

type MachiningStep int

const (
	MachiningPhoto MachiningStep = iota + 1
	MachiningWorkType
	MachiningDimensions
	MachiningConditions
	MachiningUrgency
	MachiningExtra
	MachiningComment
)

var machiningNames = map[MachiningStep]string{
	MachiningPhoto:      "photo",
	MachiningWorkType:   "work_type",
	MachiningDimensions: "dimensions",
	MachiningConditions: "conditions",
	MachiningUrgency:    "urgency",
	MachiningExtra:      "extra",
	MachiningComment:    "comment",
}

func (MachiningStep) Flow() orders.FlowKind { return orders.FlowMachining }
func (s MachiningStep) Name() string        { return machiningNames[s] }
func (MachiningStep) isStep()               {}

type EngineStep int

const (
	EngineBrand EngineStep = iota + 1
	EngineYear
	EngineIssue
	EngineUrgency
	EngineComment
)

var engineNames = map[EngineStep]string{
	EngineBrand:   "brand",
	EngineYear:    "year",
	EngineIssue:   "issue",
	EngineUrgency: "urgency",
	EngineComment: "comment",
}

func (EngineStep) Flow() orders.FlowKind { return orders.FlowEngineRepair }
func (s EngineStep) Name() string        { return engineNames[s] }
func (EngineStep) isStep()               {}

// Idle is the position of a customer without an active conversation.
type Idle struct{}

func (Idle) Flow() orders.FlowKind { return "" }
func (Idle) Name() string          { return "idle" }
func (Idle) isStep()               {}

// ParseStep is the inverse of (Step.Flow, Step.Name).
func ParseStep(kind orders.FlowKind, name string) (Step, error) {
	switch kind {
	case "":
		if name == "" || name == (Idle{}).Name() {
			return Idle{}, nil
		}
	case orders.FlowMachining:
		for s, n := range machiningNames {
			if n == name {
				return s, nil
			}
		}
	case orders.FlowEngineRepair:
		for s, n := range engineNames {
			if n == name {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("flow: unknown step %q in flow %q", name, kind)
}
