package dispatcher

import (
	"github.com/hashworks/buildfarm/model"
)

// Behavior is what a builder does during a tick. It is derived from the jobs
// table every time and never cached on the builder.
type Behavior interface {
	behavior()
}

// IdleBehavior builders have no bound job and may be dispatched to.
type IdleBehavior struct {
	Builder *model.Builder
}

// BuildingBehavior builders hold a job until the result handler releases it.
type BuildingBehavior struct {
	Builder *model.Builder
	Job     *model.BuildQueueEntry
	Build   *model.Build
}

func (*IdleBehavior) behavior()     {}
func (*BuildingBehavior) behavior() {}

// BehaviorOf looks up the job bound to the builder.
func (d *Dispatcher) BehaviorOf(builder *model.Builder) (Behavior, error) {
	job, build, err := d.Store.CurrentJob(builder.Id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &IdleBehavior{Builder: builder}, nil
	}
	return &BuildingBehavior{Builder: builder, Job: job, Build: build}, nil
}
