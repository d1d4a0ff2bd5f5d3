package fee

import (
	"fmt"
	"sync"
)

// scheduleCache keeps generated schedules per input tuple. Any change to the fee structure,
// plan, discount or start date yields a different key. Each student points at the key of
// their last schedule; an entry no student points at anymore is evicted.
type scheduleCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	owners  map[string]string // student ID -> key
}

type cacheEntry struct {
	schedule *Schedule
	refs     int
}

func newScheduleCache() *scheduleCache {
	return &scheduleCache{
		entries: make(map[string]*cacheEntry),
		owners:  make(map[string]string),
	}
}

func scheduleKey(plan Plan, fs FeeStructure, sch Scholarship, startDate string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%s|%t|%s|%s|%s",
		plan,
		fs.TotalProgramFee.String(),
		fs.AdmissionFee.String(),
		fs.NumberOfSemesters,
		fs.InstallmentsPerSemester,
		fs.OneShotDiscountPercentage.String(),
		fs.GSTInclusive,
		sch.Percentage.String(),
		sch.AdditionalDiscountPercentage.String(),
		startDate,
	)
}

// get returns the schedule cached under key and makes it the current one of studentID.
func (c *scheduleCache) get(studentID, key string) (*Schedule, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	owned := ok && c.owners[studentID] == key
	var s *Schedule
	if ok {
		s = e.schedule.clone()
	}
	c.mu.RUnlock()

	if ok && !owned {
		c.mu.Lock()
		c.own(studentID, key)
		c.mu.Unlock()
	}
	return s, ok
}

func (c *scheduleCache) set(studentID, key string, s *Schedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.schedule = s.clone()
	} else {
		c.entries[key] = &cacheEntry{schedule: s.clone()}
	}
	c.own(studentID, key)
}

// own moves studentID onto key, evicting its previous entry when unused. c.mu must be held.
func (c *scheduleCache) own(studentID, key string) {
	e, ok := c.entries[key]
	if !ok {
		return // evicted meanwhile
	}
	prev, had := c.owners[studentID]
	if had && prev == key {
		return
	}
	e.refs++
	c.owners[studentID] = key
	if had {
		if pe, ok := c.entries[prev]; ok {
			pe.refs--
			if pe.refs <= 0 {
				delete(c.entries, prev)
			}
		}
	}
}

func (c *scheduleCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (s *Schedule) clone() *Schedule {
	cp := *s
	cp.Installments = append([]Installment(nil), s.Installments...)
	return &cp
}

// keyedMutex serialises work per key (one student's ledger at a time).
// A key's mutex lives only while someone holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (km *keyedMutex) lock(key string) (unlock func()) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = new(refMutex)
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

func (km *keyedMutex) len() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
