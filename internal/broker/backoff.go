package broker

import (
	"context"
	"errors"
	"time"
)

// ErrBrokerClosed indica operação num broker já encerrado
var ErrBrokerClosed = errors.New("broker encerrado")

// Backoff implementa a política de retry limitada exigida para
// operações do broker: o transporte é inerentemente não confiável,
// então nada pode bloquear indefinidamente.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Retries int
}

// DefaultBackoff cobre reconexões e publicações: 3 tentativas extras,
// começando em 250ms e dobrando até 2s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 250 * time.Millisecond, Max: 2 * time.Second, Retries: 3}
}

// Retry executa fn até suceder, esgotar as tentativas ou o contexto
// ser cancelado. Devolve o último erro observado.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	wait := b.Initial
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= b.Retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > b.Max {
			wait = b.Max
		}
	}
}
