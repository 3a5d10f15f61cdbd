package replica

import "time"

// TickResult summarizes one Tick invocation for a Run hook, mirroring the
// teacher's LoopStepResult (internal/sim/loop.go).
type TickResult struct {
	Now      time.Time
	Duration time.Duration
	Budget   time.Duration
}

// RunHooks lets a host observe each tick without the manager depending on
// any particular logging or metrics implementation, mirroring the
// teacher's LoopHooks.
type RunHooks struct {
	AfterTick func(TickResult)
}

// Run drives Tick on a fixed-rate ticker until stop is closed, mirroring
// the teacher's Loop.Run (internal/sim/loop.go). Most hosts that already
// have their own tick source should call Tick directly instead.
func (m *Manager) Run(stop <-chan struct{}, hooks RunHooks) {
	tickRate := m.cfg.TickRate
	if tickRate <= 0 {
		tickRate = 20
	}
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := m.clock.Now()
			m.Tick()
			if hooks.AfterTick != nil {
				hooks.AfterTick(TickResult{
					Now:      start,
					Duration: m.clock.Now().Sub(start),
					Budget:   budget,
				})
			}
		}
	}
}
