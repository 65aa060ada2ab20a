// Package proc probes process liveness.
package proc

// Prober answers whether a PID refers to a live process. A zombie is
// reported dead: it no longer executes anything and only awaits reaping, so
// treating it as alive would keep activations around for as long as a parent
// neglects to call wait(2).
type Prober struct{}

func New() *Prober {
	return &Prober{}
}

func (p *Prober) IsRunning(pid int) bool {
	return pidIsRunning(pid)
}
