package fee

import "time"

// SetNow freezes the service clock and returns a func restoring it.
func SetNow(t time.Time) (reset func()) {
	nowFunc = func() time.Time { return t }
	return func() { nowFunc = time.Now }
}

func (svc *Service) CachedSchedules() int { return svc.cache.len() }

func (svc *Service) HeldLocks() int { return svc.locks.len() }

const ConsistencyWorkers = consistencyWorkers
