package infrastructure

import "sync"

// ProcessSet tracks the processes of the running session so a stop
// request can reach all of them
type ProcessSet struct {
	mu    sync.Mutex
	procs map[*ManagedProcess]struct{}
}

// NewProcessSet creates an empty set
func NewProcessSet() *ProcessSet {
	return &ProcessSet{procs: make(map[*ManagedProcess]struct{})}
}

// Add registers p
func (s *ProcessSet) Add(p *ManagedProcess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[p] = struct{}{}
}

// Remove unregisters p
func (s *ProcessSet) Remove(p *ManagedProcess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, p)
}

// Len returns the number of registered processes
func (s *ProcessSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// Snapshot returns the registered processes at this instant
func (s *ProcessSet) Snapshot() []*ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ManagedProcess, 0, len(s.procs))
	for p := range s.procs {
		out = append(out, p)
	}
	return out
}

// TerminateAll terminates every registered process in parallel and
// returns once each has exited or been killed
func (s *ProcessSet) TerminateAll() {
	var wg sync.WaitGroup
	for _, p := range s.Snapshot() {
		wg.Add(1)
		go func(p *ManagedProcess) {
			defer wg.Done()
			p.Terminate()
		}(p)
	}
	wg.Wait()
}
