package stage

import "context"

// Handler describes the contract the workflow needs from each stage. S is the
// run state the stages share.
type Handler[S any] interface {
	Name() string
	Execute(context.Context, S) error
}

// Checker is implemented by stages that can report readiness before a run.
type Checker interface {
	HealthCheck(context.Context) Health
}

// Func adapts a function to the Handler interface. Check, when set, makes
// the stage a Checker.
type Func[S any] struct {
	Label string
	Run   func(context.Context, S) error
	Check func(context.Context) Health
}

// Name returns the stage label.
func (f Func[S]) Name() string { return f.Label }

// Execute invokes the wrapped function.
func (f Func[S]) Execute(ctx context.Context, state S) error {
	if f.Run == nil {
		return nil
	}
	return f.Run(ctx, state)
}

// Checked is a Func that also reports readiness.
type Checked[S any] struct {
	Func[S]
}

// HealthCheck runs the Check hook; a stage without one is always ready.
func (c Checked[S]) HealthCheck(ctx context.Context) Health {
	if c.Check == nil {
		return Healthy(c.Label)
	}
	h := c.Check(ctx)
	h.Stage = c.Label
	return h
}
