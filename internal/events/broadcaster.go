// Package events рассылает события пульта розыгрыша подписчикам потока.
package events

import (
	"sync"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

const subscriberBuffer = 16

// Broadcaster публикует события всем подписчикам. Отстающий подписчик теряет события,
// следующий снимок состояния его догонит.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan model.Event]struct{}
	closed bool
}

// NewBroadcaster создаёт рассыльщик без подписчиков.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan model.Event]struct{}),
	}
}

// Subscribe регистрирует подписчика и возвращает его канал событий.
// После Close возвращается уже закрытый канал.
func (b *Broadcaster) Subscribe() chan model.Event {
	ch := make(chan model.Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe удаляет подписчика и закрывает его канал.
func (b *Broadcaster) Unsubscribe(ch chan model.Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish доставляет событие всем подписчикам без блокировки.
func (b *Broadcaster) Publish(e model.Event) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribers возвращает число активных подписчиков.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close закрывает каналы всех подписчиков. Последующие публикации игнорируются.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}
