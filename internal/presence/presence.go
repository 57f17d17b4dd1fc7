package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OnlineWindow é o limite de vivacidade: com heartbeats a cada ~12s,
// 55s tolera pelo menos 4 batimentos perdidos antes de marcar offline,
// absorvendo jitter transitório de rede.
const OnlineWindow = 55 * time.Second

// Tracker mantém o último heartbeat de cada identidade, só em memória
// volátil do processo (nada sobrevive a um restart). É uma dependência
// injetada, não um singleton de pacote.
type Tracker struct {
	mu       sync.RWMutex
	lastSeen map[uuid.UUID]time.Time
	window   time.Duration
	now      func() time.Time // injetável para testes
}

// NewTracker cria um tracker com a janela padrão
func NewTracker() *Tracker {
	return &Tracker{
		lastSeen: make(map[uuid.UUID]time.Time),
		window:   OnlineWindow,
		now:      time.Now,
	}
}

// NewTrackerWithClock permite injetar o relógio (testes)
func NewTrackerWithClock(window time.Duration, now func() time.Time) *Tracker {
	return &Tracker{
		lastSeen: make(map[uuid.UUID]time.Time),
		window:   window,
		now:      now,
	}
}

// Heartbeat registra o instante atual para a identidade, sobrescrevendo
// qualquer registro anterior. O(1), sem histórico.
func (t *Tracker) Heartbeat(id uuid.UUID) {
	now := t.now()
	t.mu.Lock()
	t.lastSeen[id] = now
	t.mu.Unlock()
}

// IsOnline é verdadeiro sse now - últimoHeartbeat < janela.
// Ausência de registro significa offline.
func (t *Tracker) IsOnline(id uuid.UUID, now time.Time) bool {
	t.mu.RLock()
	last, ok := t.lastSeen[id]
	t.mu.RUnlock()
	return ok && now.Sub(last) < t.window
}

// Online devolve as identidades vivas no instante dado
func (t *Tracker) Online(now time.Time) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	online := make([]uuid.UUID, 0, len(t.lastSeen))
	for id, last := range t.lastSeen {
		if now.Sub(last) < t.window {
			online = append(online, id)
		}
	}
	return online
}

// Sweep remove registros vencidos. Não é necessário para a correção
// (ausência já significa offline), só limita a memória em processos
// de vida longa.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, last := range t.lastSeen {
		if now.Sub(last) >= t.window {
			delete(t.lastSeen, id)
			removed++
		}
	}
	return removed
}

// Run varre periodicamente até o contexto ser cancelado
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(t.now())
		}
	}
}
