package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/heysubinoy/dollarkv/internal/api"
	"github.com/heysubinoy/dollarkv/internal/logger"
	"github.com/heysubinoy/dollarkv/internal/server"
	"github.com/heysubinoy/dollarkv/internal/store"
	"github.com/heysubinoy/dollarkv/pkg/config"
)

var version = "dev"

var (
	configPath  string
	addr        string
	backend     string
	dataDir     string
	debug       bool
	showVersion bool
)

const helpText = `
kv-server is a key-value store speaking the dollar-delimited protocol:

  STORE$<key>$<value>$  ->  DONE$
  LOAD$<key>$           ->  FOUND$<value>$ | NOTFOUND$

Valid options:
`

func init() {
	baseProg := filepath.Base(os.Args[0])
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", baseProg)
		fmt.Fprint(os.Stderr, helpText)
		flag.PrintDefaults()
	}

	flag.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flag.StringVarP(&addr, "addr", "a", "", "[interface]:port to bind to (default :5555)")
	flag.StringVarP(&backend, "backend", "b", "", "store backend: memory, bolt or badger")
	flag.StringVarP(&dataDir, "data-dir", "d", "", "directory for disk backends")
	flag.BoolVarP(&debug, "debug", "D", false, "enable debug logging")
	flag.BoolVarP(&showVersion, "version", "V", false, "display version information and exit")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("kv-server version %s\n", version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

// loadConfig applies flags on top of file and environment configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}
	if dataDir != "" {
		cfg.Store.DataDir = dataDir
	}
	if cfg.Store.DataDir == "" && cfg.Store.Backend != store.BackendMemory {
		cfg.Store.DataDir = "./data"
	}
	if debug {
		cfg.Log.Level = "DEBUG"
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backing, err := store.Open(cfg.Store.Backend, cfg.Store.DataDir, log.Named("store"))
	if err != nil {
		return err
	}
	defer func() {
		if err := backing.Close(); err != nil {
			log.Error("failed to close store", zap.Error(err))
		}
	}()

	st := store.NewInstrumentedStore(backing)
	log.Info("store opened", zap.String("store", fmt.Sprint(st.Unwrap())))
	srv := server.New(st, log.Named("server"), server.Options{
		MaxConns:       cfg.Limits.MaxConns,
		MaxRequestSize: cfg.Limits.MaxRequestSize,
		IdleTimeout:    cfg.Limits.IdleTimeout,
		ConnRate:       cfg.Limits.ConnRate,
		ConnBurst:      cfg.Limits.ConnBurst,
	})
	if err := srv.Listen(cfg.Addr); err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		httpSrv := startHTTP(cfg.HTTPAddr, api.NewServer(st, st, srv), log.Named("http"))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.GRPCAddr != "" {
		health, err := startHealth(cfg.GRPCAddr, log.Named("grpc"))
		if err != nil {
			return err
		}
		health.SetServing(true)
		defer health.Stop()
	}

	log.Info("kv-server starting", zap.String("version", version), zap.String("addr", cfg.Addr))
	if err := srv.Serve(ctx); err != nil {
		return err
	}
	log.Info("kv-server stopped", zap.Any("connections", srv.Stats()))
	return nil
}

func startHTTP(addr string, admin *api.Server, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	admin.RegisterRoutes(mux)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("admin HTTP listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin HTTP failed", zap.Error(err))
		}
	}()
	return httpSrv
}

func startHealth(addr string, log *zap.Logger) (*api.HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	health := api.NewHealthServer()
	go func() {
		log.Info("gRPC health listening", zap.String("addr", addr))
		if err := health.Serve(lis); err != nil {
			log.Error("gRPC health failed", zap.Error(err))
		}
	}()
	return health, nil
}
