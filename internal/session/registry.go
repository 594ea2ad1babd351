package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/openconnect-gateway/internal/backend"
	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/expiry"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/metrics"
)

// CredentialFactory выдаёт хранилище токена для сессии браузера.
// Release вызывается при выгрузке сессии.
type CredentialFactory interface {
	For(scope string) cache.CredentialStore
	Release(scope string)
}

// Scope — всё, что относится к одному браузеру: состояние сессии,
// клиент backend с токеном этой сессии и фоновый наблюдатель за сроком.
type Scope struct {
	ID string
	*Store
	API *API

	cancel context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
	returnTo string
}

// SetReturnTo запоминает путь, на который нужно вернуться после входа через Google.
func (s *Scope) SetReturnTo(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnTo = path
}

// TakeReturnTo возвращает сохранённый путь возврата и сбрасывает его.
func (s *Scope) TakeReturnTo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.returnTo
	s.returnTo = ""
	return p
}

func (s *Scope) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Scope) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// RegistryOptions — настройки реестра сессий.
type RegistryOptions struct {
	ExpiryCheckInterval time.Duration
	IdleTTL             time.Duration
	// AnonymousIdleTTL — срок простоя сессии без входа.
	AnonymousIdleTTL time.Duration
	// MaxScopes ограничивает число сессий в памяти.
	MaxScopes       int
	DefaultTokenTTL time.Duration
	Loading         LoadingReporter
	Events          EventPublisher
}

// Registry держит в памяти сессии браузеров. Токены живут в хранилище
// и переживают выгрузку сессии: при следующем обращении сессия
// восстанавливается через Initialize.
type Registry struct {
	mu     sync.Mutex
	scopes map[string]*Scope

	ctx    context.Context
	cancel context.CancelFunc

	api   *backend.Client
	creds CredentialFactory
	opts  RegistryOptions
	log   *slog.Logger
	now   func() time.Time
}

// NewRegistry создаёт реестр. Фоновые задачи сессий живут до Close.
func NewRegistry(api *backend.Client, creds CredentialFactory, log *slog.Logger, opts RegistryOptions) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 24 * time.Hour
	}
	if opts.AnonymousIdleTTL <= 0 || opts.AnonymousIdleTTL > opts.IdleTTL {
		opts.AnonymousIdleTTL = min(15*time.Minute, opts.IdleTTL)
	}
	if opts.MaxScopes <= 0 {
		opts.MaxScopes = 10000
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		scopes: make(map[string]*Scope),
		ctx:    ctx,
		cancel: cancel,
		api:    api,
		creds:  creds,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// Acquire возвращает сессию браузера, создавая её при первом обращении.
// Новая сессия сразу начинает восстановление из сохранённого токена.
func (r *Registry) Acquire(id string) *Scope {
	const op = "session.Registry.Acquire"
	now := r.now()

	r.mu.Lock()
	if sc, ok := r.scopes[id]; ok {
		r.mu.Unlock()
		sc.touch(now)
		return sc
	}

	creds := r.creds.For(id)
	api := r.api.WithTokenSource(creds)
	store := New(api, creds, r.log, Options{
		Scope:           id,
		Loading:         r.opts.Loading,
		Events:          r.opts.Events,
		DefaultTokenTTL: r.opts.DefaultTokenTTL,
	})
	ctx, cancel := context.WithCancel(r.ctx)
	sc := &Scope{ID: id, Store: store, API: NewAPI(api, store), cancel: cancel, lastSeen: now}
	var evicted *Scope
	if len(r.scopes) >= r.opts.MaxScopes {
		evicted = r.evictLocked()
	}
	r.scopes[id] = sc
	r.mu.Unlock()

	if evicted != nil {
		r.unload(evicted)
		r.log.Warn("session limit reached, oldest session unloaded", sl.Op(op), sl.Scope(evicted.ID))
	}
	metrics.ScopeOpened()
	watcher := expiry.New(creds, store, r.opts.ExpiryCheckInterval, r.log.With(sl.Scope(id)))
	go watcher.Run(ctx)
	go func() {
		if err := store.Initialize(ctx); err != nil {
			r.log.Info("session not restored", sl.Op(op), sl.Scope(id), sl.Err(err))
		}
	}()
	return sc
}

// Len возвращает число сессий в памяти.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}

// Sweep выгружает сессии, к которым не обращались дольше IdleTTL,
// и сессии без входа, простаивающие дольше AnonymousIdleTTL.
// Возвращает число выгруженных сессий.
func (r *Registry) Sweep() int {
	now := r.now()
	deadline := now.Add(-r.opts.IdleTTL)
	anonDeadline := now.Add(-r.opts.AnonymousIdleTTL)
	r.mu.Lock()
	var idle []*Scope
	for id, sc := range r.scopes {
		seen := sc.idleSince()
		if seen.Before(deadline) || (seen.Before(anonDeadline) && !sc.Store.Snapshot().IsAuthenticated) {
			idle = append(idle, sc)
			delete(r.scopes, id)
		}
	}
	r.mu.Unlock()

	for _, sc := range idle {
		r.unload(sc)
	}
	return len(idle)
}

// evictLocked убирает из реестра самую давнюю сессию, предпочитая сессии без входа.
func (r *Registry) evictLocked() *Scope {
	var oldest, oldestAnon *Scope
	for _, sc := range r.scopes {
		seen := sc.idleSince()
		if oldest == nil || seen.Before(oldest.idleSince()) {
			oldest = sc
		}
		if !sc.Store.Snapshot().IsAuthenticated && (oldestAnon == nil || seen.Before(oldestAnon.idleSince())) {
			oldestAnon = sc
		}
	}
	victim := oldest
	if oldestAnon != nil {
		victim = oldestAnon
	}
	if victim != nil {
		delete(r.scopes, victim.ID)
	}
	return victim
}

func (r *Registry) unload(sc *Scope) {
	sc.cancel()
	r.creds.Release(sc.ID)
	metrics.ScopeClosed()
}

// Run периодически выгружает простаивающие сессии до отмены ctx или Close.
func (r *Registry) Run(ctx context.Context) {
	const op = "session.Registry.Run"
	interval := r.opts.AnonymousIdleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("idle sessions unloaded", sl.Op(op), slog.Int("count", n))
			}
		}
	}
}

// Close останавливает фоновые задачи всех сессий.
func (r *Registry) Close() {
	r.mu.Lock()
	n := len(r.scopes)
	r.scopes = make(map[string]*Scope)
	r.mu.Unlock()
	r.cancel()
	for range n {
		metrics.ScopeClosed()
	}
}
