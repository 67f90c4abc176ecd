package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc defines the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller defines the abstract controlling logic executed
// once per loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext provides the context of the current iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is the start time of this iteration.
	Time() time.Time
	// Take removes and returns the latest value posted to a slot.
	Take(slot string) (interface{}, bool)
	// Peek returns the latest value posted to a slot without removing it.
	Peek(slot string) (interface{}, bool)

	LoopControl
}

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// Post stores a value in a latest-value slot, replacing any
	// previous value not yet consumed.
	Post(slot string, value interface{})
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current one.
	TriggerNext()
}

// Stages of one loop iteration. Controllers are executed stage
// by stage so acquisition always observes fresh inputs and
// actuation always observes the outputs of this iteration.
const (
	StageSense int = iota
	StageControl
	StageActuate
	StageCount
)
