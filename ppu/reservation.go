package ppu

import "sync"

// Reservation is the load-linked/store-conditional token recorded on a
// guest thread (§3). RAddr == 0 means no outstanding reservation.
type Reservation struct {
	RAddr uint32
	RTime uint64
	RData uint32
}

// ReservationClock is the process-wide reservation clock (§3, §5): one
// counter per guest-memory granule (here, per aligned word address),
// all reachable through a single writer lock so a store-conditional can
// check "has the clock advanced for this address" and perform its
// compare-exchange as one atomic step (§5 Ordering guarantees).
type ReservationClock struct {
	mu    sync.Mutex
	ticks map[uint32]uint64
}

// NewReservationClock creates an empty reservation clock. It is one of
// the process-wide singletons named in §5/§9, owned by the Runtime that
// constructs it rather than a package-level global.
func NewReservationClock() *ReservationClock {
	return &ReservationClock{ticks: make(map[uint32]uint64)}
}

func (c *ReservationClock) tickLocked(addr uint32) { c.ticks[addr]++ }

// sample reads the current tick count for addr under the writer lock.
// Taking the lock here is this implementation's stand-in for the
// native lfence §5 calls for: it establishes a happens-before edge
// between the timestamp read and every prior tick, which is all the
// native fence buys on the target ISA.
func (c *ReservationClock) sample(addr uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks[addr]
}

// StoreWord performs a plain (non-reservation) guest store and ticks
// the reservation clock for addr, invalidating any outstanding
// reservation on that granule held by another thread (§3, Testable
// Property 5 / Scenario S5). Guest code should always go through
// Runtime.StoreWord rather than Mem.Store32 directly so ordinary writes
// participate in the reservation protocol.
func (rt *Runtime) StoreWord(addr, val uint32) {
	rt.ReservationClock.mu.Lock()
	rt.Mem.Store32(addr, val)
	rt.ReservationClock.tickLocked(addr)
	rt.ReservationClock.mu.Unlock()
}

// LoadWord performs a plain guest load.
func (rt *Runtime) LoadWord(addr uint32) uint32 {
	return rt.Mem.Load32(addr)
}

// Lwarx implements load-linked: it samples the reservation clock, loads
// the value, and pins both on the thread's reservation record (§3,
// §4.4 lle-call/opcode payload reaching lwarx via the decoder).
func (rt *Runtime) Lwarx(th *Thread, addr uint32) uint32 {
	ts := rt.ReservationClock.sample(addr)
	val := rt.Mem.Load32(addr)
	th.Reservation = Reservation{RAddr: addr, RTime: ts, RData: val}
	return val
}

// Stwcx implements store-conditional: it succeeds only if the pinned
// address is unchanged, the reservation clock has not advanced for it,
// and the observed value still matches memory, all checked under the
// clock's writer lock so the check-then-store is one atomic step
// (§3, §5, Testable Property 5).
func (rt *Runtime) Stwcx(th *Thread, addr, val uint32) bool {
	if th.Reservation.RAddr != addr {
		return false
	}

	rt.ReservationClock.mu.Lock()
	defer rt.ReservationClock.mu.Unlock()

	ok := rt.ReservationClock.ticks[addr] == th.Reservation.RTime &&
		rt.Mem.CompareAndSwap32(addr, th.Reservation.RData, val)
	if ok {
		rt.ReservationClock.tickLocked(addr)
	}
	th.Reservation.RAddr = 0
	return ok
}
