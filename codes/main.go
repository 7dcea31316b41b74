package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pivotpie/piedocs-go/internal/platform/auditlog"
	"github.com/pivotpie/piedocs-go/internal/platform/auth"
	"github.com/pivotpie/piedocs-go/internal/platform/env"
	"github.com/pivotpie/piedocs-go/internal/platform/httpserver"
	platformstore "github.com/pivotpie/piedocs-go/internal/platform/objectstore"
	"github.com/pivotpie/piedocs-go/internal/platform/postgres"
	"github.com/pivotpie/piedocs-go/internal/profile"
	repopg "github.com/pivotpie/piedocs-go/internal/repo/postgres"
	svc "github.com/pivotpie/piedocs-go/internal/service/codes"
	"github.com/pivotpie/piedocs-go/internal/storage/objectstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("CODES_HTTP_ADDR", ":8086")
	shutdownTimeout, err := env.Duration("CODES_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	presignTTL, err := env.Duration("CODES_PRESIGN_TTL", 10*time.Minute)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	storeCfg, err := platformstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	minioClient, err := platformstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	if err := platformstore.EnsureBucket(ctx, minioClient, storeCfg); err != nil {
		logger.Error("bucket unavailable", "error", err, "bucket", storeCfg.BucketCodes)
		os.Exit(1)
	}
	imageStore, err := objectstore.NewMinioStoreWithClient(minioClient)
	if err != nil {
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}

	prof := profile.DefaultSpec()
	if path := env.String("PIEDOCS_SYMBOLOGY_PROFILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Error("symbology profile unreadable", "error", err, "path", path)
			os.Exit(2)
		}
		prof, err = profile.ParseSpec(raw)
		if err != nil {
			logger.Error("invalid symbology profile", "error", err, "path", path)
			os.Exit(2)
		}
	}

	codeRepo := repopg.NewCodeStore(db)
	auditStore := repopg.NewAuditStore(db)

	service, err := svc.NewService(codeRepo, imageStore, storeCfg.BucketCodes, prof, presignTTL, auditStore)
	if err != nil {
		logger.Error("invalid service config", "error", err)
		os.Exit(2)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	var authenticator auth.Authenticator
	var oidcService *auth.OIDCService
	switch authCfg.Mode {
	case auth.ModeHeaders:
		authenticator, err = auth.NewGatewayHeadersAuthenticator(authCfg.InternalSecret)
	case auth.ModeOIDC:
		oidcService, err = auth.NewOIDCService(ctx, authCfg)
		authenticator = oidcService
	case auth.ModeDev:
		authenticator = auth.NewDevAuthenticator(authCfg)
	case auth.ModeDisabled:
	default:
		err = errors.New("unsupported auth mode")
	}
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("codes"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"codes",
			httpserver.ReadinessCheck{
				Name:  "postgres",
				Check: auth.WithTimeout(750*time.Millisecond, db.PingContext),
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: auth.WithTimeout(750*time.Millisecond, func(checkCtx context.Context) error {
					return platformstore.CheckBucket(checkCtx, minioClient, storeCfg)
				}),
			},
		),
	)

	if oidcService != nil {
		mux.HandleFunc("/auth/logout", oidcService.LogoutHandler())
		mux.HandleFunc("/auth/session", oidcService.SessionHandler())
		if err := authCfg.ValidateForLogin(); err == nil {
			login, err := oidcService.LoginHandler()
			if err != nil {
				logger.Error("oidc login handler init failed", "error", err)
				os.Exit(2)
			}
			callback, err := oidcService.CallbackHandler()
			if err != nil {
				logger.Error("oidc callback handler init failed", "error", err)
				os.Exit(2)
			}
			mux.HandleFunc("/auth/login", login)
			mux.HandleFunc("/auth/callback", callback)
		} else {
			notConfigured := func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotImplemented)
				_, _ = w.Write([]byte("{\"error\":\"login_not_configured\"}\n"))
			}
			mux.HandleFunc("/auth/login", notConfigured)
			mux.HandleFunc("/auth/callback", notConfigured)
		}
	}

	api := newCodesAPI(logger, service)
	api.register(mux)

	var handler http.Handler = mux
	if authenticator != nil {
		handler = auth.Middleware{
			Logger:        logger,
			Authenticator: authenticator,
			Authorize:     auth.MethodRoleAuthorizer(),
			Audit: func(ctx context.Context, event auth.DenyEvent) error {
				auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return auditlog.InsertAuthDeny(auditCtx, db, "codes", event)
			},
			SkipPrefixes: []string{"/healthz", "/readyz", "/auth/"},
		}.Wrap(mux)
	}

	cfg := httpserver.Config{
		Service:         "codes",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "codes", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
