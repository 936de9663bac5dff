package mailbox

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_LastWriterWins(t *testing.T) {
	m := New()
	m.Enqueue("1", "ALARM_ON")
	m.Enqueue("1", "ALARM_OFF")

	cmd, ok := m.Poll("1")
	require.True(t, ok)
	assert.Equal(t, "ALARM_OFF", cmd)
}

func TestMailbox_PollConsumesOnce(t *testing.T) {
	m := New()
	m.Enqueue("3", "RESET")

	pending, ok := m.Pending("3")
	require.True(t, ok)
	assert.Equal(t, "RESET", pending)

	cmd, ok := m.Poll("3")
	require.True(t, ok)
	assert.Equal(t, "RESET", cmd)

	_, ok = m.Poll("3")
	assert.False(t, ok)
	_, ok = m.Pending("3")
	assert.False(t, ok)
}

func TestMailbox_PollEmptyRoom(t *testing.T) {
	m := New()
	cmd, ok := m.Poll("42")
	assert.False(t, ok)
	assert.Empty(t, cmd)
}

func TestMailbox_BroadcastThenOverride(t *testing.T) {
	m := New()
	n := m.Broadcast([]string{"1", "2", "3"}, "SILENCE")
	assert.Equal(t, 3, n)

	m.Enqueue("2", "ALARM_ON")

	got := map[string]string{}
	for _, id := range []string{"1", "2", "3"} {
		cmd, ok := m.Poll(id)
		require.True(t, ok, "room %s", id)
		got[id] = cmd
	}
	assert.Equal(t, map[string]string{"1": "SILENCE", "2": "ALARM_ON", "3": "SILENCE"}, got)
}

func TestMailbox_ConcurrentPollDeliversOnce(t *testing.T) {
	m := New()
	m.Enqueue("1", "RESET")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Poll("1"); ok {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, delivered)
}

func TestMailbox_ConcurrentRooms(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Enqueue(id, "CMD_"+id)
		}(strconv.Itoa(i))
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		id := strconv.Itoa(i)
		cmd, ok := m.Poll(id)
		require.True(t, ok)
		assert.Equal(t, "CMD_"+id, cmd)
	}
}
