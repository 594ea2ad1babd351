package guard

import (
	"context"
	"sync"

	"github.com/magabrotheeeer/openconnect-gateway/internal/metrics"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// StateSource — источник состояния сессии с подпиской на изменения.
type StateSource interface {
	Snapshot() session.State
	Subscribe() (<-chan struct{}, func())
}

// Navigator следит за текущим представлением одного клиента и заново
// проверяет его при каждом изменении сессии. Перенаправления выполняются
// сразу: текущим становится целевое представление.
type Navigator struct {
	guard *Guard
	src   StateSource

	mu      sync.Mutex
	path    string
	last    Decision
	hasLast bool
}

// NewNavigator создаёт навигатор для источника состояния.
func NewNavigator(g *Guard, src StateSource) *Navigator {
	return &Navigator{guard: g, src: src}
}

// Navigate переходит на path и возвращает итоговое решение.
func (n *Navigator) Navigate(path string) Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	return n.settle()
}

// Current возвращает путь текущего представления.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// settle вызывается под n.mu. Следует за перенаправлениями, пока не
// получит Render или Loading. Цепочка ограничена числом представлений.
func (n *Navigator) settle() Decision {
	st := n.src.Snapshot()
	d := n.guard.Resolve(st, n.path)
	for hops := 0; d.Action == Redirect && hops <= len(n.guard.views); hops++ {
		metrics.GuardDecision(string(d.Action))
		n.path = d.Target
		d = n.guard.Resolve(st, n.path)
	}
	metrics.GuardDecision(string(d.Action))
	// Target — итоговый путь, на который попал клиент
	d.Target = n.path
	n.last, n.hasLast = d, true
	return d
}

// Run отправляет в emit новое решение после каждого изменения сессии,
// если оно отличается от предыдущего. Работает до отмены ctx.
func (n *Navigator) Run(ctx context.Context, emit func(Decision)) {
	ch, cancel := n.src.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			n.mu.Lock()
			if n.path == "" {
				n.mu.Unlock()
				continue
			}
			prev, had := n.last, n.hasLast
			d := n.settle()
			n.mu.Unlock()
			if !had || d != prev {
				emit(d)
			}
		}
	}
}
