package arbiter

import (
	"log"
	"time"

	ga "github.com/Meander-Cloud/go-arbiter/arbiter"
	"github.com/Meander-Cloud/go-schedule/scheduler"

	"github.com/Meander-Cloud/go-holdem/config"
	g "github.com/Meander-Cloud/go-holdem/group"
)

// Arbiter owns the single goroutine on which every protocol state transition
// of a node runs. Timers are grouped so that rescheduling or releasing a group
// cancels whatever is pending in it.
type Arbiter struct {
	*ga.Arbiter[g.Group]
	c *config.Config
}

func NewArbiter(c *config.Config) *Arbiter {
	return &Arbiter{
		Arbiter: ga.New(
			&ga.Options[g.Group]{
				LogPrefix: c.LogPrefix + "-Arbiter",
				LogDebug:  c.LogDebug,
				LogEvent:  false,
			},
		),
		c: c,
	}
}

// caller must be on arbiter goroutine
func (a *Arbiter) ScheduleTimer(group g.Group, d time.Duration, f func()) {
	if a.c.LogDebug {
		log.Printf("%s: scheduling %s in %s", a.c.LogPrefix, group, d)
	}

	a.Scheduler().ProcessSync(
		&scheduler.ScheduleAsyncEvent[g.Group]{
			AsyncVariant: scheduler.TimerAsync(
				true,
				[]g.Group{group},
				d,
				func() {
					// invoked on arbiter goroutine
					f()
				},
				nil,
			),
		},
	)
}

// caller must be on arbiter goroutine
func (a *Arbiter) ReleaseTimer(group g.Group) {
	if a.c.LogDebug {
		log.Printf("%s: releasing %s", a.c.LogPrefix, group)
	}

	a.Scheduler().ProcessSync(
		&scheduler.ReleaseGroupEvent[g.Group]{
			Group: group,
		},
	)
}
