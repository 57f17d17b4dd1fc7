package presence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsOnlineWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTrackerWithClock(55*time.Second, func() time.Time { return base })

	user := uuid.New()
	tracker.Heartbeat(user)

	t.Run("online a 54s do heartbeat", func(t *testing.T) {
		assert.True(t, tracker.IsOnline(user, base.Add(54*time.Second)))
	})

	t.Run("offline a 56s do heartbeat", func(t *testing.T) {
		assert.False(t, tracker.IsOnline(user, base.Add(56*time.Second)))
	})

	t.Run("offline exatamente na janela", func(t *testing.T) {
		// A regra é estrita: now - last < janela
		assert.False(t, tracker.IsOnline(user, base.Add(55*time.Second)))
	})

	t.Run("sem registro significa offline", func(t *testing.T) {
		assert.False(t, tracker.IsOnline(uuid.New(), base))
	})
}

func TestHeartbeatOverwrites(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTrackerWithClock(55*time.Second, func() time.Time { return now })

	user := uuid.New()
	tracker.Heartbeat(user)

	// Avança o relógio e bate de novo: o registro antigo é sobrescrito
	now = now.Add(2 * time.Minute)
	tracker.Heartbeat(user)

	assert.True(t, tracker.IsOnline(user, now.Add(54*time.Second)))
}

func TestOnlineList(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tracker := NewTrackerWithClock(55*time.Second, func() time.Time { return clock })

	alive := uuid.New()
	stale := uuid.New()

	tracker.Heartbeat(stale)
	clock = base.Add(2 * time.Minute)
	tracker.Heartbeat(alive)

	online := tracker.Online(clock)
	assert.Equal(t, []uuid.UUID{alive}, online)
}

func TestSweep(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tracker := NewTrackerWithClock(55*time.Second, func() time.Time { return clock })

	stale := uuid.New()
	alive := uuid.New()

	tracker.Heartbeat(stale)
	clock = base.Add(2 * time.Minute)
	tracker.Heartbeat(alive)

	removed := tracker.Sweep(clock)
	assert.Equal(t, 1, removed)

	// O vivo continua lá; varrer o vencido não muda a resposta
	assert.True(t, tracker.IsOnline(alive, clock))
	assert.False(t, tracker.IsOnline(stale, clock))
}
