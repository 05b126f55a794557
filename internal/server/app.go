// Package server wires the yggkeeper components together and runs the HTTP
// protocol server next to the ops gRPC server until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/yggkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/yggkeeper/internal/cryptox"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/auth"
	"github.com/dmitrijs2005/yggkeeper/internal/server/captcha"
	"github.com/dmitrijs2005/yggkeeper/internal/server/config"
	"github.com/dmitrijs2005/yggkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/yggkeeper/internal/server/mail"
	"github.com/dmitrijs2005/yggkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/yggkeeper/internal/server/profiles"
	"github.com/dmitrijs2005/yggkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/yggkeeper/internal/server/services"
	"github.com/dmitrijs2005/yggkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/yggkeeper/internal/server/textures"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/dmitrijs2005/yggkeeper/internal/server/upstream"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/yggkeeper/internal/server/grpc"
)

const (
	implementationName = "yggkeeper"
	shutdownTimeout    = 10 * time.Second
	readHeaderTimeout  = 5 * time.Second
)

// App owns the process-wide resources and both servers.
type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   redis.UniversalClient
	handler http.Handler
	probes  []gs.Probe
}

// NewApp opens the database, applies migrations and builds the handler
// graph. Resources opened before a failure are released.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))
	app := &App{config: c, logger: logger}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.probes = append(app.probes, gs.Probe{Name: "postgres", Check: db.PingContext})

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	if err := app.build(ctx, rm); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

// build assembles stores, services and the HTTP handler.
func (app *App) build(ctx context.Context, rm repomanager.RepositoryManager) error {
	c := app.config

	var (
		joins   sessions.Store
		codes   mail.CodeStore
		answers mail.CodeStore
	)
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("redis init error: %w", err)
		}
		app.redis = client
		app.probes = append(app.probes, gs.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		joins = sessions.NewRedisStore(client, "", c.JoinTimeout)
		codes = mail.NewRedisCodeStore(client, "", c.VerificationCodeTTL)
		answers = mail.NewRedisCodeStore(client, "ygg:captcha", c.CaptchaTTL)
	} else {
		joins = sessions.NewMemoryStore(c.JoinTimeout)
		codes = mail.NewMemoryCodeStore(c.VerificationCodeTTL, nil)
		answers = mail.NewMemoryCodeStore(c.CaptchaTTL, nil)
	}

	var pictures captcha.Source = captcha.GeneratedSource{}
	if c.VerifyImageDir != "" {
		pictures = captcha.NewDirSource(c.VerifyImageDir)
	}

	blobs, err := app.textureBackend(ctx)
	if err != nil {
		return err
	}

	key, err := cryptox.LoadSignatureKey(c.SignatureKeyFile)
	if err != nil {
		return err
	}

	minter := auth.NewMinter([]byte(c.SecretKey), implementationName, c.TokenFullyExpiredTTL)
	store := tokens.New(tokens.Config{
		Capacity:                 c.TokenCapacity,
		FullyExpiredTTL:          c.TokenFullyExpiredTTL,
		PartiallyExpiredTTL:      c.TokenPartiallyExpiredTTL,
		EnablePartialExpiry:      c.EnablePartialExpiry,
		OnlyLastSessionAvailable: c.OnlyLastSessionAvailable,
	}, tokens.WithGenerator(minter.Mint), tokens.WithVerifier(func(access string) error {
		_, err := minter.Parse(access)
		return err
	}))

	m := metrics.New(func() float64 { return float64(store.Count()) })

	cache := textures.NewCache(blobs, c.RootURL,
		textures.WithOnStored(m.TextureStored),
		textures.WithLogger(app.logger.With("module", "textures")))
	builder := profiles.NewBuilder(key, cache.URL)

	target := ""
	if c.UpstreamEnabled {
		target = c.UpstreamHasJoinedURL
	}

	var mailer mail.Mailer = mail.NewLogMailer(app.logger.With("module", "mail"))
	if c.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Addr:     c.SMTPAddr,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		})
	}

	authSvc := services.NewAuthService(app.db, rm, store, ratelimit.New(c.LoginCoolDown),
		services.WithLoginWithCharacterName(c.LoginWithCharacterName),
		services.WithRecorder(m),
		services.WithAuthLogger(app.logger.With("module", "auth")))

	app.handler = httpapi.NewRouter(httpapi.Deps{
		Auth: authSvc,
		Sessions: services.NewSessionService(app.db, rm, store, joins, upstream.New(target), builder,
			app.logger.With("module", "sessions")),
		Textures: services.NewTextureService(app.db, rm, store, cache, app.logger.With("module", "textures")),
		Profiles: services.NewProfileService(app.db, rm, store, joins, builder),
		Verification: services.NewVerificationService(ratelimit.New(c.EmailCoolDown),
			mail.NewVerifier(codes, mailer, c.VerificationCodeTTL), m, app.logger.With("module", "verification")),
		Starlight: services.NewStarlightService(captcha.New(pictures, answers), authSvc,
			app.logger.With("module", "starlight")),
		Meta: httpapi.Meta{
			ServerName:            c.ServerName,
			ImplementationName:    implementationName,
			ImplementationVersion: buildinfo.Version(),
			NonEmailLogin:         c.LoginWithCharacterName,
			SkinDomains:           c.SkinDomains,
			PublicKeyPEM:          key.PublicKeyPEM(),
		},
		Metrics: m,
		Logger:  app.logger.With("module", "http"),
	})
	return nil
}

func (app *App) textureBackend(ctx context.Context) (textures.BlobStore, error) {
	c := app.config
	switch c.TextureBackend {
	case config.TextureBackendFS:
		return textures.NewFSStore(c.TextureDir)
	case config.TextureBackendS3:
		return textures.NewS3StoreFromConfig(ctx, textures.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case config.TextureBackendMemory:
		return textures.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown texture backend %q", c.TextureBackend)
	}
}

func (app *App) close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewOpsServer(app.config.EndpointAddrGRPC, app.logger, app.probes)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", buildinfo.Version())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(ctx, "App stopped")
}
