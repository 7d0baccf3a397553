// Package registry tracks the PID of each managed service.
//
// A record is only trusted after the liveness probe confirms the process;
// file presence alone never means the service is running.
package registry

// Prober answers whether a PID refers to a live process
type Prober interface {
	IsAlive(pid int) bool
}

type Registry struct {
	store  Store
	prober Prober
}

func New(store Store, prober Prober) *Registry {
	return &Registry{store: store, prober: prober}
}

func (r *Registry) Write(service string, pid int) error {
	return r.store.Save(service, pid)
}

// Read returns the recorded PID; found is false when no record exists
func (r *Registry) Read(service string) (pid int, found bool, err error) {
	return r.store.Load(service)
}

func (r *Registry) Remove(service string) error {
	return r.store.Delete(service)
}

func (r *Registry) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return r.prober.IsAlive(pid)
}
