// Package mailbox holds at most one pending command per room until a device polls it.
package mailbox

import "sync"

// Mailbox is a per-room single-slot command buffer. A later write replaces an undelivered
// command for the same room. It is safe for concurrent use.
type Mailbox struct {
	mu    sync.Mutex
	slots map[string]string
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{slots: make(map[string]string)}
}

// Enqueue stores cmd as the pending command for roomID.
func (m *Mailbox) Enqueue(roomID, cmd string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[roomID] = cmd
}

// Broadcast writes cmd into the slot of every room in roomIDs. Each write is independent,
// so a later Enqueue for one room only replaces that room's copy.
func (m *Mailbox) Broadcast(roomIDs []string, cmd string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range roomIDs {
		m.slots[id] = cmd
	}
	return len(roomIDs)
}

// Poll returns and removes the pending command for roomID. ok is false when there is none.
func (m *Mailbox) Poll(roomID string) (cmd string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd, ok = m.slots[roomID]
	if ok {
		delete(m.slots, roomID)
	}
	return cmd, ok
}

// Pending returns the pending command for roomID without consuming it.
func (m *Mailbox) Pending(roomID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd, ok := m.slots[roomID]
	return cmd, ok
}
