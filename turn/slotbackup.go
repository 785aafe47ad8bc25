package turn

import "sync"

// SlotSnapshot is an opaque value owned entirely by the dialogue-policy
// collaborator; the core only stores and restores it. Which fields it
// holds is outside this core's scope.
type SlotSnapshot any

// slotBackup implements the confirmation-safe rollback policy: a snapshot
// armed for an epoch is rolled back only if that epoch's handler never
// emitted a single segment before the session moved on to a new epoch.
// Once a segment is out, the conversational commitment is considered made.
type slotBackup struct {
	mu        sync.Mutex
	epoch     int
	snapshot  SlotSnapshot
	armed     bool
	committed bool
}

func newSlotBackup() *slotBackup {
	return &slotBackup{}
}

// arm records a tentative snapshot for the given epoch, replacing any
// previous armed-but-uncommitted snapshot.
func (s *slotBackup) arm(epoch int, snapshot SlotSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = epoch
	s.snapshot = snapshot
	s.armed = true
	s.committed = false
}

// commit marks the armed snapshot for epoch as no longer eligible for
// rollback. Called the moment that epoch emits its first segment.
func (s *slotBackup) commit(epoch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed && s.epoch == epoch {
		s.committed = true
	}
}

// rollbackIfNeeded reports the snapshot to restore when leaving epoch,
// provided it was armed for that epoch and never committed.
func (s *slotBackup) rollbackIfNeeded(epoch int) (SlotSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed && s.epoch == epoch && !s.committed {
		s.armed = false
		return s.snapshot, true
	}
	return nil, false
}
