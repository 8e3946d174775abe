// Command authd serves the Google login flow for the chat application as a
// standalone process. All configuration comes from the environment (or a
// .env file next to the binary), credential material from the usual chain
// of sources: a secrets file, a downloaded Google client JSON, or plain
// environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	googleauth "github.com/datachat-app/google-auth"
	"github.com/datachat-app/google-auth/credentials"
	"github.com/datachat-app/google-auth/logging"
	"github.com/datachat-app/google-auth/session"
)

type serviceConfig struct {
	ListenAddress string `env:"AUTHD_LISTEN_ADDRESS" envDefault:":8080"`
	LogLevel      string `env:"AUTHD_LOG_LEVEL" envDefault:"INFO"`

	// Secret encrypts session cookies. 32 characters, keep it stable
	// across restarts or every user gets logged out.
	Secret string `env:"AUTHD_SECRET,required"`

	Scopes             []string      `env:"AUTHD_SCOPES" envSeparator:" "`
	StateTTL           time.Duration `env:"AUTHD_STATE_TTL" envDefault:"10m"`
	SessionMaxLifetime time.Duration `env:"AUTHD_SESSION_MAX_LIFETIME" envDefault:"12h"`

	CookieName   string `env:"AUTHD_COOKIE_NAME"`
	CookieSecure bool   `env:"AUTHD_COOKIE_SECURE" envDefault:"true"`

	PostLoginRedirectUri       string   `env:"AUTHD_POST_LOGIN_REDIRECT_URI" envDefault:"/"`
	ValidPostLoginRedirectUris []string `env:"AUTHD_VALID_POST_LOGIN_REDIRECT_URIS" envSeparator:","`
	PostLogoutRedirectUri      string   `env:"AUTHD_POST_LOGOUT_REDIRECT_URI" envDefault:"/"`

	FetchUserinfo bool `env:"AUTHD_FETCH_USERINFO" envDefault:"false"`

	// AssertClaims is a JSON array of claim assertions, for example
	// [{"name":"hd","anyOf":["example.com"]}]. Empty means every
	// authenticated user is authorized.
	AssertClaims string `env:"AUTHD_ASSERT_CLAIMS"`

	// SessionBackend selects where sessions live: memory, redis or bolt.
	SessionBackend string `env:"AUTHD_SESSION_BACKEND" envDefault:"memory"`
	RedisAddress   string `env:"AUTHD_REDIS_ADDRESS" envDefault:"localhost:6379"`
	RedisPassword  string `env:"AUTHD_REDIS_PASSWORD"`
	BoltPath       string `env:"AUTHD_BOLT_PATH" envDefault:"authd-sessions.db"`

	SecretsFile    string `env:"AUTHD_SECRETS_FILE"`
	ClientJSONFile string `env:"AUTHD_CLIENT_JSON_FILE"`
	RedirectURI    string `env:"GOOGLE_REDIRECT_URI"`

	ShutdownTimeout time.Duration `env:"AUTHD_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authd:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine, the environment alone is enough.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[serviceConfig]()
	if err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	logger := logging.CreateLogger(cfg.LogLevel)

	authConfig, err := buildAuthConfig(cfg)
	if err != nil {
		return err
	}

	storage, err := buildSessionStorage(cfg, logger)
	if err != nil {
		return err
	}

	auth, err := googleauth.New(authConfig, credentials.NewResolver(logger, buildSources(cfg)...), storage)
	if err != nil {
		return err
	}
	defer auth.Close()

	mux := http.NewServeMux()
	auth.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintln(rw, "ok")
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Log(logging.LevelInfo, "Listening on %s", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Log(logging.LevelInfo, "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func buildAuthConfig(cfg serviceConfig) (*googleauth.Config, error) {
	authConfig := googleauth.CreateConfig()
	authConfig.LogLevel = cfg.LogLevel
	authConfig.Secret = cfg.Secret
	authConfig.StateTTL = cfg.StateTTL
	authConfig.SessionMaxLifetime = cfg.SessionMaxLifetime
	authConfig.CookieSecure = cfg.CookieSecure
	authConfig.PostLoginRedirectUri = cfg.PostLoginRedirectUri
	authConfig.ValidPostLoginRedirectUris = cfg.ValidPostLoginRedirectUris
	authConfig.PostLogoutRedirectUri = cfg.PostLogoutRedirectUri
	authConfig.FetchUserinfo = cfg.FetchUserinfo

	if len(cfg.Scopes) > 0 {
		authConfig.Scopes = cfg.Scopes
	}
	if cfg.CookieName != "" {
		authConfig.CookieName = cfg.CookieName
	}

	if cfg.AssertClaims != "" {
		assertions := []googleauth.ClaimAssertion{}
		if err := json.Unmarshal([]byte(cfg.AssertClaims), &assertions); err != nil {
			return nil, fmt.Errorf("parsing AUTHD_ASSERT_CLAIMS: %w", err)
		}
		authConfig.Authorization = &googleauth.AuthorizationConfig{AssertClaims: assertions}
	}

	return authConfig, nil
}

// buildSources assembles the credential chain in precedence order. Only
// configured file sources participate; the environment source is always
// the fallback.
func buildSources(cfg serviceConfig) []credentials.Source {
	sources := []credentials.Source{}
	if cfg.SecretsFile != "" {
		sources = append(sources, credentials.NewSecretsFileSource(cfg.SecretsFile))
	}
	if cfg.ClientJSONFile != "" {
		sources = append(sources, credentials.NewClientJSONSource(cfg.ClientJSONFile, cfg.RedirectURI))
	}
	sources = append(sources, credentials.NewEnvSource())
	return sources
}

func buildSessionStorage(cfg serviceConfig, logger *logging.Logger) (session.Storage, error) {
	switch cfg.SessionBackend {
	case "memory":
		return session.NewMemoryStorage(), nil
	case "redis":
		logger.Log(logging.LevelInfo, "Storing sessions in redis at %s", cfg.RedisAddress)
		return session.NewRedisStorage(cfg.RedisAddress, cfg.RedisPassword)
	case "bolt":
		logger.Log(logging.LevelInfo, "Storing sessions in %s", cfg.BoltPath)
		return session.NewBoltStorage(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown session backend %q (want memory, redis or bolt)", cfg.SessionBackend)
	}
}
