package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lmig/csserver/pkg/alarm"
	"github.com/lmig/csserver/pkg/bus"
	"github.com/lmig/csserver/pkg/config"
	"github.com/lmig/csserver/pkg/database"
	"github.com/lmig/csserver/pkg/ingestor"
	"github.com/lmig/csserver/pkg/logger"
	"github.com/lmig/csserver/pkg/mediarouter"
	"github.com/lmig/csserver/pkg/metrics"
	"github.com/lmig/csserver/pkg/persister"
	"github.com/lmig/csserver/pkg/tracer"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file (defaults to $CALLSTREAMSERVER_CONF_FILE or ./config.yaml)")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("csserver %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})
	log.Info("starting csserver", logger.String("version", version), logger.String("build_time", buildTime))

	confFile := *configFile
	if confFile == "" {
		confFile = os.Getenv("CALLSTREAMSERVER_CONF_FILE")
	}
	workPath := os.Getenv("CALLSTREAMSERVER_WORK_PATH")
	if workPath == "" {
		workPath = "."
	}

	cfg, err := config.Load(confFile)
	if err != nil {
		log.Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validate {
		log.Info("configuration is valid")
		os.Exit(0)
	}

	log.Info("configuration loaded", logger.String("config_file", confFile), logger.String("work_path", workPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	metricsCollector := metrics.NewCollector()

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := metrics.NewPrometheusServer(metrics.PrometheusConfig{
				Enabled: cfg.Metrics.Prometheus.Enabled,
				Port:    cfg.Metrics.Prometheus.Port,
				Path:    cfg.Metrics.Prometheus.Path,
			}, metricsCollector, log.WithComponent("metrics"))
			if err := srv.Start(ctx); err != nil && err != context.Canceled {
				log.Error("prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port), logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	alarmCollaborator := alarm.New(alarm.FromEnv(), log)

	db, err := database.NewDB(database.Config{ConnInfo: cfg.PersistenceManager.PgConnInfo}, log.WithComponent("database"))
	if err != nil {
		log.Error("failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	repo := database.NewRepository(db.GetDB())

	internalBus := bus.New(log.WithComponent("bus"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		internalBus.Run(ctx)
	}()

	ing := ingestor.New(ingestor.Config{
		IP:   cfg.Collector.LogServerEndpoint.IP,
		Port: cfg.Collector.LogServerEndpoint.Port,
	}, internalBus, metricsCollector, log.WithComponent("ingestor"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ing.Run(ctx); err != nil && err != context.Canceled {
			log.Error("ingestor stopped with error", logger.Error(err))
		}
	}()

	pst := persister.New(persister.Config{
		CallInactivityPeriod:        time.Duration(cfg.PersistenceManager.CallInactivityPeriod) * time.Second,
		MaintenanceFrequency:        time.Duration(cfg.PersistenceManager.MaintenanceFrequency) * time.Second,
		Mp3Mode:                     cfg.Basic.Mp3Mode == 1,
		Mp3ConverterCommandTemplate: cfg.PersistenceManager.Mp3ConverterCommandTemplate,
		GenerateWavFiles:            cfg.Collector.GenerateWavFiles,
		WorkPath:                    workPath,
	}, internalBus, repo, metricsCollector, alarmCollaborator, log.WithComponent("persister"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pst.Run(ctx); err != nil && err != context.Canceled {
			log.Error("persister stopped with error", logger.Error(err))
		}
	}()

	feederPool, err := mediarouter.NewPool(cfg.MediaManager.Feeders)
	if err != nil {
		log.Error("failed to build feeder pool", logger.Error(err))
		os.Exit(1)
	}
	playerPool := mediarouter.NewPlayerPool(cfg.MediaManager.Player.Instances)
	dashboard := mediarouter.NewDashboardHub(log.WithComponent("mediarouter.dashboard"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		dashboard.Run(ctx)
	}()

	router := mediarouter.New(mediarouter.Config{
		MediaServerEndpoint:  fmt.Sprintf("http://%s:%d", cfg.MediaManager.MediaServerEndpoint.IP, cfg.MediaManager.MediaServerEndpoint.Port),
		CommandTemplate:      cfg.MediaManager.Player.CommandTemplate,
		VoicerecRepo:         cfg.MediaManager.Player.VoicerecRepo,
		VoicerecURL:          cfg.MediaManager.Player.VoicerecURL,
		CallInactivityPeriod: time.Duration(cfg.MediaManager.Player.CallInactivityPeriod) * time.Second,
		MaintenanceFrequency: time.Duration(cfg.MediaManager.Player.MaintenanceFrequency) * time.Second,
		Subscriptions:        cfg.MediaManager.Subscriptions,
	}, internalBus, repo, feederPool, playerPool, dashboard, metricsCollector, alarmCollaborator, log.WithComponent("mediarouter"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := router.Run(ctx); err != nil && err != context.Canceled {
			log.Error("media router stopped with error", logger.Error(err))
		}
	}()

	routerAPI := mediarouter.NewAPI(router, log.WithComponent("mediarouter.api"))
	httpMux := chi.NewRouter()
	httpMux.Mount("/", routerAPI.Routes())
	httpMux.Handle("/ws/dashboard", dashboard.Handler())
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.MediaManager.MediaServerEndpoint.IP, cfg.MediaManager.MediaServerEndpoint.Port),
		Handler: httpMux,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("media router http server error", logger.Error(err))
		}
	}()
	log.Info("media router http server started", logger.String("addr", httpServer.Addr))

	var redisClient interface{ Close() error }
	if cfg.TracerManager.JSONPublisher != "" {
		client, err := tracer.OpenRedis(ctx, cfg.TracerManager.JSONPublisher)
		if err != nil {
			log.Error("failed to open redis for tracer, tracing stays local-only", logger.Error(err))
			tr := tracer.New(tracer.Config{Subscriptions: cfg.TracerManager.Subscriptions}, internalBus, nil, log.WithComponent("tracer"))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := tr.Run(ctx); err != nil && err != context.Canceled {
					log.Error("tracer stopped with error", logger.Error(err))
				}
			}()
		} else {
			redisClient = client
			tr := tracer.New(tracer.Config{
				RedisAddr:                   cfg.TracerManager.JSONPublisher,
				PublishOneJSONVoiceMsgEvery: cfg.TracerManager.PublishOneJSONVoiceMsgEvery,
				Subscriptions:               cfg.TracerManager.Subscriptions,
			}, internalBus, tracer.NewRedisPublisher(client), log.WithComponent("tracer"))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := tr.Run(ctx); err != nil && err != context.Canceled {
					log.Error("tracer stopped with error", logger.Error(err))
				}
			}()
		}
	} else {
		tr := tracer.New(tracer.Config{Subscriptions: cfg.TracerManager.Subscriptions}, internalBus, nil, log.WithComponent("tracer"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.Run(ctx); err != nil && err != context.Canceled {
				log.Error("tracer stopped with error", logger.Error(err))
			}
		}()
	}

	log.Info("csserver initialized")

	sig := <-sigChan
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpServer.Shutdown(shutdownCtx)
	shutdownCancel()

	cancel()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	wg.Wait()
	log.Info("csserver stopped")
}
