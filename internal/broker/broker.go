package broker

import (
	"context"
	"sync"
)

// Handler recebe cada mensagem entregue num tópico assinado.
// O transporte é at-least-once e sem garantia de ordem: o mesmo payload
// pode chegar mais de uma vez e fora de ordem.
type Handler func(topic string, payload []byte)

// Subscription representa uma assinatura ativa num tópico
type Subscription interface {
	// Cancel encerra a assinatura. Após retornar, nenhuma entrega
	// tardia chega mais ao handler.
	Cancel()
}

// Broker é o colaborador externo de pub/sub: publicação sem
// confirmação de entrega, assinatura como fluxo de mensagens.
// Nenhuma lógica de domínio mora aqui.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error)
	Close() error
}

// InMemoryBroker é uma implementação em-memória da interface Broker,
// usada em desenvolvimento e testes (mesmo papel do InMemoryStore no
// repositório). Entrega é síncrona na goroutine do Publish.
type InMemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	broker  *InMemoryBroker
	topic   string
	handler Handler

	mu       sync.Mutex
	canceled bool
}

func (s *memorySub) deliver(topic string, payload []byte) {
	// Guarda contra callback tardio depois do Cancel
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canceled {
		return
	}
	s.handler(topic, payload)
}

func (s *memorySub) Cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()

	s.broker.mu.Lock()
	if set, ok := s.broker.subs[s.topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.broker.subs, s.topic)
		}
	}
	s.broker.mu.Unlock()
}

// NewInMemoryBroker cria uma nova instância do broker em memória
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subs: make(map[string]map[*memorySub]struct{}),
	}
}

func (b *InMemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	var targets []*memorySub
	for s := range b.subs[topic] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(topic, payload)
	}
	return nil
}

func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	s := &memorySub{broker: b, topic: topic, handler: h}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][s] = struct{}{}
	return s, nil
}

func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string]map[*memorySub]struct{})
	return nil
}
