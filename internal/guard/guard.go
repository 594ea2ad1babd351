// Package guard решает, можно ли показать запрошенное представление
// при текущем состоянии сессии, или куда нужно перенаправить пользователя.
package guard

import (
	"strings"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// State — классификация состояния сессии для проверки доступа.
type State int

const (
	Checking State = iota
	Anonymous
	AuthenticatedIncomplete
	AuthenticatedComplete
	AuthenticatedAdmin
)

var stateNames = [...]string{
	Checking:                "checking",
	Anonymous:               "anonymous",
	AuthenticatedIncomplete: "authenticated_incomplete",
	AuthenticatedComplete:   "authenticated_complete",
	AuthenticatedAdmin:      "authenticated_admin",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Classify относит снимок сессии к одному из состояний.
// Пока идёт загрузка, состояние всегда Checking.
func Classify(st session.State) State {
	switch {
	case st.IsLoading:
		return Checking
	case !st.IsAuthenticated:
		return Anonymous
	case !st.HasCompletedOnboarding:
		return AuthenticatedIncomplete
	case st.IsAdmin:
		return AuthenticatedAdmin
	default:
		return AuthenticatedComplete
	}
}

// View — представление и требования к сессии для его показа.
type View struct {
	Name string
	// Path — шаблон пути; сегмент вида {id} совпадает с любым значением.
	Path               string
	RequiresAuth       bool
	IsOnboarding       bool
	RequiresOnboarding bool
	RequiresAdmin      bool
}

// Public создаёт представление без требований.
func Public(name, path string) View {
	return View{Name: name, Path: path}
}

// Onboarding создаёт представление заполнения профиля.
func Onboarding(name, path string) View {
	return View{Name: name, Path: path, RequiresAuth: true, IsOnboarding: true}
}

// Member требует входа и заполненного профиля.
func Member(name, path string) View {
	return View{Name: name, Path: path, RequiresAuth: true, RequiresOnboarding: true}
}

// Admin дополнительно требует роль администратора.
func Admin(name, path string) View {
	return View{Name: name, Path: path, RequiresAuth: true, RequiresOnboarding: true, RequiresAdmin: true}
}

// Action — итог проверки.
type Action string

const (
	Render   Action = "render"
	Redirect Action = "redirect"
	Loading  Action = "loading"
)

// Decision — результат проверки представления.
type Decision struct {
	Action Action `json:"action"`
	View   string `json:"view,omitempty"`
	Target string `json:"target,omitempty"`
	State  string `json:"state"`
}

// Guard проверяет доступ к представлениям по таблице маршрутов.
type Guard struct {
	routes   config.Routes
	views    []View
	catchAll string
}

// New создаёт Guard. Пути перенаправлений берутся из routes.
func New(routes config.Routes, views []View) *Guard {
	return &Guard{routes: routes, views: views, catchAll: "/"}
}

// DefaultViews возвращает таблицу представлений клиента OpenConnect.
func DefaultViews(routes config.Routes) []View {
	return []View{
		Public("home", "/"),
		Public("login", "/auth/login"),
		Public("signup", "/auth/signup"),
		Public("activation", "/auth/activation"),
		Public("forgot_password", "/auth/forgot-password"),
		Public("reset_password", "/auth/reset-password"),
		Public("oauth_callback", "/auth/google/callback"),
		Onboarding("onboarding", routes.Onboarding),
		Member("profile", "/profile"),
		Member("user_profile", "/profile/{id}"),
		Member("community", "/community"),
		Member("my_submissions", "/my-submissions"),
		Member("view_ideas", "/view-ideas"),
		Member("feed", "/feed"),
		Admin("admin", "/admin"),
		Admin("admin_ideas", "/admin/ideas"),
	}
}

// Lookup находит представление по пути.
func (g *Guard) Lookup(path string) (View, bool) {
	for _, v := range g.views {
		if matchPath(v.Path, path) {
			return v, true
		}
	}
	return View{}, false
}

// Evaluate применяет правила по порядку: первое сработавшее определяет итог.
func (g *Guard) Evaluate(st session.State, v View) Decision {
	state := Classify(st)
	d := Decision{State: state.String(), View: v.Name}

	switch {
	case state == Checking && v.RequiresAuth:
		d.Action = Loading
	case v.RequiresAuth && state == Anonymous:
		d.Action, d.Target = Redirect, g.routes.Login
	case v.IsOnboarding && state == AuthenticatedAdmin:
		d.Action, d.Target = Redirect, g.routes.AdminLanding
	case v.IsOnboarding && state == AuthenticatedComplete:
		d.Action, d.Target = Redirect, g.routes.Landing
	case v.RequiresOnboarding && state == AuthenticatedIncomplete:
		d.Action, d.Target = Redirect, g.routes.Onboarding
	case v.RequiresAdmin && state != AuthenticatedAdmin:
		d.Action, d.Target = Redirect, g.routes.Landing
	default:
		d.Action = Render
	}
	if d.Action != Render {
		d.View = ""
	}
	return d
}

// Resolve проверяет представление по пути. Неизвестный путь
// перенаправляется на корень.
func (g *Guard) Resolve(st session.State, path string) Decision {
	v, ok := g.Lookup(path)
	if !ok {
		return Decision{Action: Redirect, Target: g.catchAll, State: Classify(st).String()}
	}
	return g.Evaluate(st, v)
}

func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	pp := strings.Split(strings.Trim(pattern, "/"), "/")
	sp := strings.Split(strings.Trim(path, "/"), "/")
	if len(pp) != len(sp) {
		return false
	}
	for i := range pp {
		if strings.HasPrefix(pp[i], "{") && strings.HasSuffix(pp[i], "}") {
			if sp[i] == "" {
				return false
			}
			continue
		}
		if pp[i] != sp[i] {
			return false
		}
	}
	return true
}

// LandingFor возвращает представление, на которое нужно попасть после входа.
func LandingFor(routes config.Routes, st session.State) string {
	switch Classify(st) {
	case Anonymous, Checking:
		return routes.Login
	case AuthenticatedIncomplete:
		return routes.Onboarding
	case AuthenticatedAdmin:
		return routes.AdminLanding
	default:
		return routes.Landing
	}
}
