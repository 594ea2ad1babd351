package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// Ключи сохранённых учётных данных. Пишутся и удаляются только вместе.
const (
	TokenKey       = "token"
	TokenExpiryKey = "token_expiry"
)

var (
	// ErrNoCredential — токена нет.
	ErrNoCredential = errors.New("no stored credential")
	// ErrInvalidCredential — токен есть, но срок отсутствует или не разбирается.
	ErrInvalidCredential = errors.New("stored credential is invalid")
)

// CredentialStore — долговременное хранилище bearer-токена одной сессии.
type CredentialStore interface {
	// Load возвращает сохранённые данные, ErrNoCredential или ErrInvalidCredential.
	Load(ctx context.Context) (models.Credential, error)
	// Save атомарно записывает токен и срок.
	Save(ctx context.Context, cred models.Credential) error
	// Purge удаляет токен и срок.
	Purge(ctx context.Context) error
}

// decodeCredential проверяет пару сохранённых строк.
func decodeCredential(token, expiry string) (models.Credential, error) {
	if token == "" {
		return models.Credential{}, ErrNoCredential
	}
	if expiry == "" {
		return models.Credential{}, ErrInvalidCredential
	}
	at, err := time.Parse(time.RFC3339Nano, expiry)
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return models.Credential{Token: token, Expiry: at}, nil
}

func encodeExpiry(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RedisCredentialStore хранит токен сессии в redis под ключами
// "<prefix>:<scope>:token" и "<prefix>:<scope>:token_expiry".
type RedisCredentialStore struct {
	db    *redis.Client
	scope string
	// prefix пространства ключей, по умолчанию "openconnect:session"
	prefix string
	now    func() time.Time
}

// NewRedisCredentialStore создаёт хранилище для одной сессии.
func NewRedisCredentialStore(c *Cache, scope string) *RedisCredentialStore {
	return &RedisCredentialStore{
		db:     c.Db,
		scope:  scope,
		prefix: "openconnect:session",
		now:    time.Now,
	}
}

func (s *RedisCredentialStore) key(name string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.scope, name)
}

// Load читает токен и срок одной командой MGET.
func (s *RedisCredentialStore) Load(ctx context.Context) (models.Credential, error) {
	const op = "cache.RedisCredentialStore.Load"
	vals, err := s.db.MGet(ctx, s.key(TokenKey), s.key(TokenExpiryKey)).Result()
	if err != nil {
		return models.Credential{}, fmt.Errorf("%s: %w", op, err)
	}
	token, _ := vals[0].(string)
	expiry, _ := vals[1].(string)
	return decodeCredential(token, expiry)
}

// Save записывает обе записи в одной транзакции. Записи живут чуть дольше
// самого токена, чтобы истёкший токен можно было обнаружить и удалить явно.
func (s *RedisCredentialStore) Save(ctx context.Context, cred models.Credential) error {
	const op = "cache.RedisCredentialStore.Save"
	if cred.Token == "" {
		return fmt.Errorf("%s: empty token", op)
	}
	ttl := cred.Expiry.Sub(s.now()) + time.Hour
	if ttl < time.Hour {
		ttl = time.Hour
	}
	_, err := s.db.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(TokenKey), cred.Token, ttl)
		p.Set(ctx, s.key(TokenExpiryKey), encodeExpiry(cred.Expiry), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Purge удаляет обе записи.
func (s *RedisCredentialStore) Purge(ctx context.Context) error {
	const op = "cache.RedisCredentialStore.Purge"
	if err := s.db.Del(ctx, s.key(TokenKey), s.key(TokenExpiryKey)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MemoryCredentialStore хранит токен в памяти процесса.
// Используется, когда redis не настроен, и в тестах.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryCredentialStore создаёт пустое хранилище.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{values: make(map[string]string)}
}

// Load возвращает сохранённые данные.
func (s *MemoryCredentialStore) Load(_ context.Context) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeCredential(s.values[TokenKey], s.values[TokenExpiryKey])
}

// Save записывает токен и срок.
func (s *MemoryCredentialStore) Save(_ context.Context, cred models.Credential) error {
	if cred.Token == "" {
		return errors.New("cache.MemoryCredentialStore.Save: empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[TokenKey] = cred.Token
	s.values[TokenExpiryKey] = encodeExpiry(cred.Expiry)
	return nil
}

// SetRaw записывает произвольные строки, минуя проверку. Нужен для
// воспроизведения повреждённых данных.
func (s *MemoryCredentialStore) SetRaw(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryCredentialStore) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values) == 0
}

// Purge удаляет токен и срок.
func (s *MemoryCredentialStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, TokenKey)
	delete(s.values, TokenExpiryKey)
	return nil
}

// RedisCredentials выдаёт redis-хранилища для сессий.
type RedisCredentials struct {
	cache *Cache
}

// NewRedisCredentials создаёт фабрику поверх подключения к redis.
func NewRedisCredentials(c *Cache) *RedisCredentials {
	return &RedisCredentials{cache: c}
}

// For возвращает хранилище сессии scope.
func (f *RedisCredentials) For(scope string) CredentialStore {
	return NewRedisCredentialStore(f.cache, scope)
}

// Release ничего не делает: записи в redis истекают сами.
func (f *RedisCredentials) Release(string) {}

// MemoryCredentials выдаёт хранилища в памяти. Хранилище с токеном живёт,
// пока жив процесс, даже если сама сессия выгружена из реестра.
type MemoryCredentials struct {
	mu     sync.Mutex
	stores map[string]*MemoryCredentialStore
}

// NewMemoryCredentials создаёт пустую фабрику.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{stores: make(map[string]*MemoryCredentialStore)}
}

// For возвращает хранилище сессии scope, создавая его при первом обращении.
func (f *MemoryCredentials) For(scope string) CredentialStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[scope]
	if !ok {
		s = NewMemoryCredentialStore()
		f.stores[scope] = s
	}
	return s
}

// Release удаляет хранилище сессии scope, если в нём нет токена.
func (f *MemoryCredentials) Release(scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stores[scope]; ok && s.empty() {
		delete(f.stores, scope)
	}
}

// Len возвращает число хранилищ.
func (f *MemoryCredentials) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stores)
}
