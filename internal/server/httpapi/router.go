// Package httpapi exposes the authentication protocol over HTTP. Handlers
// decode and validate requests, call the services and map their sentinel
// errors to the protocol's error codes.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/captcha"
	"github.com/dmitrijs2005/yggkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/profiles"
	"github.com/dmitrijs2005/yggkeeper/internal/server/services"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/dmitrijs2005/yggkeeper/internal/server/upstream"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Authenticator interface {
	Authenticate(ctx context.Context, username, password, clientToken string) (*tokens.Token, error)
	Refresh(ctx context.Context, accessToken, clientToken string, selected *services.ProfileRef) (*tokens.Token, error)
	Validate(ctx context.Context, accessToken, clientToken string) error
	Invalidate(ctx context.Context, accessToken string)
	Signout(ctx context.Context, username, password string) error
}

type Sessions interface {
	Join(ctx context.Context, accessToken, selectedProfile, serverID, ip string) error
	HasJoined(ctx context.Context, username, serverID, ip string) (*profiles.Profile, error)
	Forward(ctx context.Context, query url.Values) (*upstream.Response, error)
}

type Textures interface {
	Upload(ctx context.Context, accessToken, characterID, slot string, r io.Reader, model string) (*models.Texture, error)
	Delete(ctx context.Context, accessToken, characterID, slot string) error
	Load(ctx context.Context, hash string) ([]byte, bool, error)
}

type Profiles interface {
	Lookup(ctx context.Context, id string, signed bool) (*profiles.Profile, error)
	Query(ctx context.Context, names []string) ([]*profiles.Profile, error)
	Status(ctx context.Context) (*services.Status, error)
}

type Verifier interface {
	SendCode(ctx context.Context, email string) error
}

type Starlight interface {
	VerifyImage(ctx context.Context) (*captcha.Challenge, error)
	Login(ctx context.Context, email, password, clientID string, degree int) error
}

// Deps are the collaborators of the router. Metrics may be nil.
type Deps struct {
	Auth         Authenticator
	Sessions     Sessions
	Textures     Textures
	Profiles     Profiles
	Verification Verifier
	Starlight    Starlight
	Meta         Meta
	Metrics      *metrics.Metrics
	Logger       logging.Logger
}

type handler struct {
	Deps
	validate *validator.Validate
}

// NewRouter builds the HTTP handler serving every protocol endpoint.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	h := &handler{Deps: d, validate: validator.New(validator.WithRequiredStructEnabled())}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(h.observe)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/", h.root)
	r.Get("/status", h.status)

	r.Route("/authserver", func(r chi.Router) {
		r.Post("/authenticate", h.authenticate)
		r.Post("/refresh", h.refresh)
		r.Post("/validate", h.validateToken)
		r.Post("/invalidate", h.invalidate)
		r.Post("/signout", h.signout)
	})

	r.Route("/sessionserver/session/minecraft", func(r chi.Router) {
		r.Post("/join", h.join)
		r.Get("/hasJoined", h.hasJoined)
		r.Get("/profile/{uuid:[a-f0-9]{32}}", h.profile)
	})

	r.Post("/api/profiles/minecraft", h.queryProfiles)
	r.Put("/api/user/profile/{uuid}/{textureType}", h.uploadTexture)
	r.Delete("/api/user/profile/{uuid}/{textureType}", h.deleteTexture)
	r.Get("/textures/{hash:[a-f0-9]{64}}", h.texture)

	r.Route("/starlight", func(r chi.Router) {
		r.Get("/sendVerifyCode/{email}", h.sendVerifyCode)
		r.Get("/verifyImage", h.verifyImage)
		r.Post("/login", h.starlightLogin)
	})

	return r
}

// logger returns a request-scoped logger tagged with op and the request id.
func (h *handler) logger(r *http.Request, op string) logging.Logger {
	return h.Logger.With("op", op, "request_id", middleware.GetReqID(r.Context()))
}

func (h *handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.Metrics.ObserveHTTP(r.Method, route, strconv.Itoa(status), time.Since(start).Seconds())
	})
}

// tokenPrefix keeps secrets out of logs.
func tokenPrefix(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
