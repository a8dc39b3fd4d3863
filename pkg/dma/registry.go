package dma

import "sync"

// held tracks, per board, the open leases of this process and whether
// the board is being reprogrammed. The two exclude each other; it does
// not serialise transfers.
var held = struct {
	sync.Mutex
	leases      map[string]int
	programming map[string]bool
}{
	leases:      make(map[string]int),
	programming: make(map[string]bool),
}

// InUse reports whether this process holds an open lease on the board
func InUse(id string) bool {
	held.Lock()
	defer held.Unlock()
	return held.leases[id] > 0
}

// Reserve marks the board as being reprogrammed until the returned
// function is called. Acquire fails with ErrBoardProgramming meanwhile.
// Reserve reports false, and reserves nothing, while this process holds
// a lease on the board or the board is already reserved.
func Reserve(id string) (func(), bool) {
	held.Lock()
	defer held.Unlock()
	if held.leases[id] > 0 || held.programming[id] {
		return nil, false
	}
	held.programming[id] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			held.Lock()
			defer held.Unlock()
			delete(held.programming, id)
		})
	}, true
}

func markHeld(id string) error {
	held.Lock()
	defer held.Unlock()
	if held.programming[id] {
		return ErrBoardProgramming
	}
	held.leases[id]++
	return nil
}

func markReleased(id string) {
	held.Lock()
	defer held.Unlock()
	if held.leases[id] <= 1 {
		delete(held.leases, id)
		return
	}
	held.leases[id]--
}
