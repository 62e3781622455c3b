package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/chat"
	"claimdesk.org/internal/claims"
	"claimdesk.org/internal/config"
	"claimdesk.org/internal/httpapi"
	"claimdesk.org/internal/migrate"
	"claimdesk.org/internal/obs"
	"claimdesk.org/internal/store/pg"
	"claimdesk.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	help := flag.Bool("help-env", false, "print the environment variables and exit")
	flag.Parse()
	if *help {
		fmt.Println(config.Usage())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}

	var (
		accountStore accounts.Store
		claimStore   claims.Store
		ready        httpapi.ReadyProbe
		closeStore   = func() {}
	)
	if cfg.Postgres.DSN != "" {
		st, err := pg.Open(cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if cfg.Postgres.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = migrate.NewManager(st.DB(), migrate.Embedded(), nil).Up(ctx)
			cancel()
			if err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		accountStore, claimStore = st, st
		ready = httpapi.ReadyProbe{DB: st.DB()}
		closeStore = func() { _ = st.Close() }
	} else {
		mem := accounts.NewInMemory()
		accountStore, claimStore = mem, claims.NewInMemory(mem)
		obs.Info("storage_in_memory", map[string]any{"reason": "CLAIMDESK_PG_DSN not set"})
	}

	accountSvc, err := accounts.NewService(accountStore, tokens)
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}

	events := stream.New()
	workflow := claims.FlatWorkflow()
	if cfg.Claims.StrictWorkflow {
		workflow = claims.StrictWorkflow()
	}
	claimSvc, err := claims.NewService(claimStore, claims.WithWorkflow(workflow), claims.WithPublisher(events))
	if err != nil {
		log.Fatalf("claims: %v", err)
	}

	chatClient := chat.NewClient(cfg.Chat.APIKey,
		chat.WithBaseURL(cfg.Chat.BaseURL),
		chat.WithModel(cfg.Chat.Model),
		chat.WithHTTPClient(&http.Client{Timeout: cfg.Chat.Timeout}),
	)

	api, err := httpapi.New(httpapi.Deps{
		Accounts: accountSvc,
		Claims:   claimSvc,
		Guard:    auth.NewGuard(tokens),
		Chat:     chatClient,
		Stream:   events,
		Ready:    ready,
	},
		httpapi.WithVersion(version),
		httpapi.WithStaticDir(cfg.HTTP.StaticDir),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
		httpapi.WithTrustedProxies(cfg.HTTP.TrustedProxies),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithRateLimit(cfg.RateLimit.Burst, cfg.RateLimit.RPS),
	)
	if err != nil {
		log.Fatalf("http api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, httpapi.NewHealthServer(ready))
		go func() {
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	obs.Info("server_start", map[string]any{
		"version":  version,
		"addr":     srv.Addr,
		"grpc":     cfg.GRPC.Addr,
		"workflow": workflow.Name(),
		"chat":     chatClient.Configured(),
		"model":    chatClient.Model(),
		"postgres": cfg.Postgres.DSN != "",
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	obs.Info("server_stopping", nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	closeStore()
	obs.Info("server_stopped", nil)
}
