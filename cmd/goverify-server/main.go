// Command goverify-server serves the verification pipeline over HTTP.
//
// Configuration comes from an optional .env file (-env) overlaid by
// GOVERIFY_* environment variables. With GOVERIFY_REDIS_ADDR set, identity
// state is restored at startup, saved every GOVERIFY_SAVE_INTERVAL and on
// shutdown. With GOVERIFY_AUDIT_DB set, audit events are appended to SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/internal/rate"
	"github.com/MrEthical07/goVerify/internal/seed"
	"github.com/MrEthical07/goVerify/internal/settings"
	"github.com/MrEthical07/goVerify/keylayer"
	"github.com/MrEthical07/goVerify/storage/redisstore"
	"github.com/MrEthical07/goVerify/storage/sqlitestore"
	"github.com/MrEthical07/goVerify/transport/httpapi"
	"github.com/gookit/color"
	"github.com/redis/go-redis/v9"
)

func main() {
	envPath := flag.String("env", ".env", "path to an optional dotenv file")
	flag.Parse()

	if err := run(*envPath); err != nil {
		color.Red.Println("goverify-server: " + err.Error())
		os.Exit(1)
	}
}

func run(envPath string) error {
	conf, err := settings.Load(envPath)
	if err != nil {
		return err
	}
	srv, err := conf.Server()
	if err != nil {
		return err
	}
	engineCfg, err := conf.Engine()
	if err != nil {
		return err
	}
	httpCfg, err := conf.HTTP()
	if err != nil {
		return err
	}

	logger := newLogger(srv)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- storage ----------
	var (
		rdb   redis.UniversalClient
		store *redisstore.Store
	)
	if srv.RedisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{srv.RedisAddr}})
		defer rdb.Close()
		store = redisstore.NewStore(rdb, srv.RedisPrefix)
		rtt, err := store.Ping(ctx)
		if err != nil {
			return err
		}
		logger.Info("redis connected", "addr", srv.RedisAddr, "rtt", rtt)
	}

	builder := goVerify.New().WithConfig(engineCfg).WithLogger(logger)
	if srv.AuditDB != "" {
		sink, err := sqlitestore.Open(srv.AuditDB, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		builder.WithAuditSink(sink)
	}
	if srv.AdmissionRedis {
		builder.WithAdmissionLimiter(rate.NewRedis(rdb, rate.RedisConfig{
			MaxPerIdentity: engineCfg.Admission.Burst,
			MaxPerIP:       engineCfg.Admission.Burst * 4,
			Window:         time.Minute,
		}))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if store != nil {
		if err := engine.Restore(ctx, store); err != nil {
			return err
		}
	}
	if srv.SeedFile != "" {
		f, err := seed.Load(srv.SeedFile)
		if err != nil {
			return err
		}
		res, err := seed.Apply(ctx, engine, f)
		if err != nil {
			return err
		}
		logger.Info("enrollment seed applied", "identities", len(res.Enrolled))
		for id, codes := range res.BackupCodes {
			color.Yellow.Printf("backup codes for %s: %v\n", id, codes)
		}
	}

	// ---------- background ----------
	go func() {
		_ = engine.RunRotationSweep(ctx, srv.RotationSweep, rotateLayers(engine, logger))
	}()
	if store != nil {
		go saveLoop(ctx, engine, store, srv.SaveInterval, logger)
	}

	// ---------- http ----------
	api, err := httpapi.NewServer(engine, httpCfg, logger)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              srv.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	color.Green.Printf("goverify-server listening on %s\n", srv.ListenAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if store != nil {
		if err := engine.Save(shutdownCtx, store); err != nil {
			return fmt.Errorf("final save: %w", err)
		}
	}
	logger.Info("stopped")
	return nil
}

func newLogger(srv settings.Server) *slog.Logger {
	opts := &slog.HandlerOptions{Level: srv.LogLevel}
	if srv.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// rotateLayers reprovisions the layer set of every identity with a due
// rotation. Rotations for one identity are collapsed into one provisioning.
func rotateLayers(engine *goVerify.Engine, logger *slog.Logger) goVerify.RotationHandler {
	return func(ctx context.Context, due []keylayer.Rotation) {
		seen := make(map[string]struct{}, len(due))
		for _, r := range due {
			if _, ok := seen[r.Identity]; ok {
				continue
			}
			seen[r.Identity] = struct{}{}
			if _, err := engine.ProvisionKeyLayers(ctx, r.Identity); err != nil {
				logger.Warn("key layer rotation failed", "identity", r.Identity, "error", err)
				continue
			}
			logger.Info("key layers rotated", "identity", r.Identity, "kind", r.Kind.String())
		}
	}
}

func saveLoop(ctx context.Context, engine *goVerify.Engine, store goVerify.Persister, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.Save(ctx, store); err != nil {
				logger.Warn("periodic save failed", "error", err)
			}
		}
	}
}
