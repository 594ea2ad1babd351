// Package session хранит состояние аутентификации одного браузера:
// текущего пользователя, флаги загрузки и онбординга, сохранённый токен.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/jwt"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/metrics"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// Причины завершения сессии.
const (
	ReasonUser     = "user"
	ReasonExpired  = "expired"
	ReasonInvalid  = "invalid_credential"
	ReasonRejected = "rejected_by_backend"
	ReasonReauth   = "reauth"
)

// ErrSessionEnded возвращается операцией, которую обогнал выход из сессии.
// Результат такой операции отбрасывается.
var ErrSessionEnded = apperr.Session("you were signed out, please sign in again")

var errNotSignedIn = apperr.Session("you are not signed in")

// Gateway — вызовы backend, которыми пользуется сессия.
type Gateway interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error)
	SignIn(ctx context.Context, creds models.Credentials) (*models.SignInResult, error)
	CurrentProfile(ctx context.Context) (*models.User, error)
	CreateProfile(ctx context.Context, patch models.UserPatch) (models.UserPatch, error)
	UpdateProfile(ctx context.Context, patch models.UserPatch) (models.UserPatch, error)
}

// LoadingReporter получает сигналы начала и конца операций аутентификации.
type LoadingReporter interface {
	StartLoading(message string)
	StopLoading()
}

// EventPublisher отправляет события сессии внешним подписчикам.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.SessionEvent) error
}

// State — снимок состояния сессии.
type State struct {
	User                   *models.User `json:"user"`
	IsLoading              bool         `json:"is_loading"`
	IsAuthenticated        bool         `json:"is_authenticated"`
	HasCompletedOnboarding bool         `json:"has_completed_onboarding"`
	IsAdmin                bool         `json:"is_admin"`
}

// Options — необязательные зависимости Store.
type Options struct {
	Scope           string
	Loading         LoadingReporter
	Events          EventPublisher
	DefaultTokenTTL time.Duration
	Now             func() time.Time
}

// Store — состояние сессии одного браузера.
// Пользователь выставляется только вместе с сохранённым токеном,
// флаги онбординга и администратора вычисляются из пользователя.
type Store struct {
	mu      sync.Mutex
	user    *models.User
	ready   bool
	pending int
	// epoch растёт при каждом выходе; операция, начатая в другой эпохе,
	// не может выставить пользователя
	epoch   uint64
	subs    map[int]chan struct{}
	nextSub int

	init singleflight.Group

	gw    Gateway
	creds cache.CredentialStore
	log   *slog.Logger

	scope   string
	loading LoadingReporter
	events  EventPublisher
	ttl     time.Duration
	now     func() time.Time
}

// New создаёт Store. До завершения Initialize сессия считается загружающейся.
func New(gw Gateway, creds cache.CredentialStore, log *slog.Logger, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultTokenTTL <= 0 {
		opts.DefaultTokenTTL = 24 * time.Hour
	}
	return &Store{
		subs:    make(map[int]chan struct{}),
		gw:      gw,
		creds:   creds,
		log:     log.With(sl.Scope(opts.Scope)),
		scope:   opts.Scope,
		loading: opts.Loading,
		events:  opts.Events,
		ttl:     opts.DefaultTokenTTL,
		now:     opts.Now,
	}
}

// Snapshot возвращает текущее состояние. Пользователь копируется.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{IsLoading: !s.ready || s.pending > 0}
	if s.user != nil {
		st.User = s.user.Clone()
		st.IsAuthenticated = true
		st.HasCompletedOnboarding = s.user.HasCompletedProfile
		st.IsAdmin = s.user.IsAdmin()
	}
	return st
}

// Subscribe возвращает канал, в который приходит сигнал после каждого
// изменения состояния. Несколько изменений подряд могут слиться в один сигнал.
// Возвращённая функция отменяет подписку.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify вызывается под s.mu.
func (s *Store) notify() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) begin(message string) uint64 {
	s.mu.Lock()
	s.pending++
	epoch := s.epoch
	s.notify()
	s.mu.Unlock()
	if s.loading != nil {
		s.loading.StartLoading(message)
	}
	return epoch
}

func (s *Store) end() {
	s.mu.Lock()
	s.pending--
	s.notify()
	s.mu.Unlock()
	if s.loading != nil {
		s.loading.StopLoading()
	}
}

// Initialize восстанавливает сессию из сохранённого токена. Одновременные
// вызовы сливаются в один. Ошибки не меняют видимого поведения: сессия
// остаётся анонимной, а ошибка возвращается только для журнала.
func (s *Store) Initialize(ctx context.Context) error {
	_, err, _ := s.init.Do("initialize", func() (any, error) {
		return nil, s.initialize(ctx)
	})
	return err
}

func (s *Store) initialize(ctx context.Context) error {
	const op = "session.Store.Initialize"
	epoch := s.begin("Checking authentication...")
	defer s.end()

	cred, err := s.creds.Load(ctx)
	switch {
	case errors.Is(err, cache.ErrNoCredential):
		s.settle(epoch, nil)
		return nil
	case errors.Is(err, cache.ErrInvalidCredential):
		s.log.Info("stored credential is invalid, purging", sl.Op(op), sl.Err(err))
		s.purge(ctx)
		s.settle(epoch, nil)
		return nil
	case err != nil:
		s.log.Error("failed to load credential", sl.Op(op), sl.Err(err))
		s.settle(epoch, nil)
		return apperr.Network("could not restore session", err)
	}

	if cred.Expired(s.now()) {
		s.log.Info("stored credential expired, purging", sl.Op(op))
		s.purge(ctx)
		s.settle(epoch, nil)
		return nil
	}

	user, err := s.gw.CurrentProfile(ctx)
	if err != nil {
		s.log.Info("stored credential rejected, purging", sl.Op(op), sl.Err(err))
		s.purgeIfOwned(ctx, cred.Token)
		s.settle(epoch, nil)
		return apperr.From(err)
	}
	if !s.settle(epoch, user) {
		return ErrSessionEnded
	}
	metrics.SessionTransition("restored")
	return nil
}

// settle завершает восстановление сессии. Возвращает false, если за время
// операции произошёл выход.
func (s *Store) settle(epoch uint64, user *models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	if s.epoch != epoch {
		s.notify()
		return false
	}
	if user != nil {
		s.user = user.Clone()
	}
	s.notify()
	return true
}

// establish выставляет пользователя после успешного входа.
func (s *Store) establish(epoch uint64, user *models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.user = user.Clone()
	s.ready = true
	s.notify()
	return true
}

// Login обменивает логин и пароль на токен, сохраняет его и загружает профиль.
// Если профиль получить не удалось, токен удаляется и сессия не меняется.
func (s *Store) Login(ctx context.Context, email, password string) (*models.User, error) {
	const op = "session.Store.Login"
	epoch := s.begin("Signing in...")
	defer s.end()

	res, err := s.gw.SignIn(ctx, models.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, apperr.From(err)
	}
	user, err := s.adopt(ctx, op, epoch, res.Credential, res.User)
	if err != nil {
		return nil, err
	}
	if !s.establish(epoch, user) {
		s.log.Info("sign in overtaken by sign out", sl.Op(op))
		s.purgeIfOwned(ctx, res.Credential.Token)
		return nil, ErrSessionEnded
	}
	s.log.Info("signed in", sl.Op(op), slog.String("user_id", user.ID))
	s.publish(ctx, models.EventLogin, user.ID, "")
	metrics.SessionTransition(models.EventLogin)
	return user.Clone(), nil
}

// HandleOAuthCallback принимает токен, выданный после входа через Google.
// Срок берётся из claim exp, а при его отсутствии отсчитывается DefaultTokenTTL.
func (s *Store) HandleOAuthCallback(ctx context.Context, token string) (*models.User, error) {
	const op = "session.Store.HandleOAuthCallback"
	if token == "" {
		return nil, apperr.Auth("authentication failed: no token received")
	}
	epoch := s.begin("Completing Google sign in...")
	defer s.end()

	cred := models.Credential{Token: token, Expiry: jwt.ExpiryOr(token, s.now(), s.ttl)}
	user, err := s.adopt(ctx, op, epoch, cred, nil)
	if err != nil {
		return nil, err
	}
	if !s.establish(epoch, user) {
		s.log.Info("oauth callback overtaken by sign out", sl.Op(op))
		s.purgeIfOwned(ctx, token)
		return nil, ErrSessionEnded
	}
	s.log.Info("signed in with google", sl.Op(op), slog.String("user_id", user.ID))
	s.publish(ctx, models.EventOAuthLogin, user.ID, "")
	metrics.SessionTransition(models.EventOAuthLogin)
	return user.Clone(), nil
}

// adopt сохраняет токен и, если профиль не пришёл вместе с токеном,
// запрашивает его. При ошибке запроса токен удаляется, а прежний
// пользователь сбрасывается: его токен уже перезаписан.
func (s *Store) adopt(ctx context.Context, op string, epoch uint64, cred models.Credential, user *models.User) (*models.User, error) {
	if err := s.creds.Save(ctx, cred); err != nil {
		s.log.Error("failed to save credential", sl.Op(op), sl.Err(err))
		return nil, apperr.Network("could not save session", err)
	}
	if user != nil {
		return user, nil
	}
	user, err := s.gw.CurrentProfile(ctx)
	if err != nil {
		s.log.Warn("profile fetch after sign in failed", sl.Op(op), sl.Err(err))
		if s.purgeIfOwned(ctx, cred.Token) {
			s.drop(ctx, op, epoch)
		}
		return nil, apperr.From(err)
	}
	return user, nil
}

// drop сбрасывает пользователя, чей токен был заменён неудачным входом.
// Если с начала входа сессия уже менялась, ничего не делает.
func (s *Store) drop(ctx context.Context, op string, epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.user == nil {
		s.mu.Unlock()
		return
	}
	s.epoch++
	userID := s.user.ID
	s.user = nil
	s.notify()
	s.mu.Unlock()

	s.log.Info("signed out after failed re-authentication", sl.Op(op), slog.String("user_id", userID))
	s.publish(ctx, models.EventLogout, userID, ReasonReauth)
	metrics.SessionTransition(models.EventLogout + "_" + ReasonReauth)
}

// Signup регистрирует учётную запись. Сессия не меняется: учётную
// запись ещё нужно активировать по ссылке из письма.
func (s *Store) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	const op = "session.Store.Signup"
	s.begin("Creating account...")
	defer s.end()

	user, err := s.gw.SignUp(ctx, models.SignUpRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, apperr.From(err)
	}
	s.log.Info("account created", sl.Op(op))
	if user != nil {
		s.publish(ctx, models.EventSignup, user.ID, "")
	}
	return user, nil
}

// UpdateProfile отправляет изменения профиля и вливает ответ backend в текущего
// пользователя. Поля, которых нет в ответе, не меняются.
func (s *Store) UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error) {
	return s.writeProfile(ctx, "session.Store.UpdateProfile", patch, s.gw.UpdateProfile)
}

// CreateProfile заполняет профиль при онбординге. Флаг завершения онбординга
// из запроса учитывается, даже если backend не вернул его в ответе.
func (s *Store) CreateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error) {
	return s.writeProfile(ctx, "session.Store.CreateProfile", patch,
		func(ctx context.Context, patch models.UserPatch) (models.UserPatch, error) {
			res, err := s.gw.CreateProfile(ctx, patch)
			if err == nil && res.HasCompletedProfile == nil {
				res.HasCompletedProfile = patch.HasCompletedProfile
			}
			return res, err
		})
}

func (s *Store) writeProfile(
	ctx context.Context,
	op string,
	patch models.UserPatch,
	call func(context.Context, models.UserPatch) (models.UserPatch, error),
) (*models.User, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, errNotSignedIn
	}
	epoch := s.epoch
	s.mu.Unlock()

	res, err := call(ctx, patch)
	if err != nil {
		s.ObserveError(ctx, err)
		return nil, apperr.From(err)
	}

	s.mu.Lock()
	if s.epoch != epoch || s.user == nil {
		s.mu.Unlock()
		s.log.Info("profile update overtaken by sign out", sl.Op(op))
		return nil, ErrSessionEnded
	}
	s.user = models.Merge(s.user, res)
	user := s.user.Clone()
	s.notify()
	s.mu.Unlock()

	s.log.Info("profile updated", sl.Op(op), slog.String("user_id", user.ID))
	s.publish(ctx, models.EventProfileUpdated, user.ID, "")
	metrics.SessionTransition(models.EventProfileUpdated)
	return user, nil
}

// Logout завершает сессию: сбрасывает пользователя и удаляет токен.
// Повторный вызов безопасен.
func (s *Store) Logout(ctx context.Context, reason string) {
	const op = "session.Store.Logout"
	s.mu.Lock()
	s.epoch++
	var userID string
	if s.user != nil {
		userID = s.user.ID
	}
	s.user = nil
	s.ready = true
	s.notify()
	s.mu.Unlock()

	s.purge(ctx)
	if userID == "" {
		return
	}
	s.log.Info("signed out", sl.Op(op), slog.String("user_id", userID), slog.String("reason", reason))
	s.publish(ctx, models.EventLogout, userID, reason)
	metrics.SessionTransition(models.EventLogout + "_" + reason)
}

// ObserveError завершает сессию, если backend отверг токен.
// Остальные ошибки игнорируются.
func (s *Store) ObserveError(ctx context.Context, err error) {
	if apperr.IsSession(err) && !errors.Is(err, ErrSessionEnded) {
		s.Logout(ctx, ReasonRejected)
	}
}

func (s *Store) purge(ctx context.Context) {
	if err := s.creds.Purge(ctx); err != nil {
		s.log.Error("failed to purge credential", sl.Op("session.Store.purge"), sl.Err(err))
	}
}

// purgeIfOwned удаляет токен, только если в хранилище лежит именно он.
// Токен более позднего входа не трогается. Возвращает true, если токен удалён.
func (s *Store) purgeIfOwned(ctx context.Context, token string) bool {
	cred, err := s.creds.Load(ctx)
	if err == nil && cred.Token != token {
		return false
	}
	if errors.Is(err, cache.ErrNoCredential) {
		return false
	}
	s.purge(ctx)
	return true
}

func (s *Store) publish(ctx context.Context, typ, userID, reason string) {
	if s.events == nil {
		return
	}
	ev := models.SessionEvent{Type: typ, Scope: s.scope, UserID: userID, Reason: reason, At: s.now()}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish session event", slog.String("type", typ), sl.Err(err))
	}
}
