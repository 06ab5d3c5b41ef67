package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/api"
	"github.com/synheart/synheart-guard/internal/config"
	"github.com/synheart/synheart-guard/internal/encoding"
	"github.com/synheart/synheart-guard/internal/engine"
	"github.com/synheart/synheart-guard/internal/flux"
	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/network"
	"github.com/synheart/synheart-guard/internal/notify"
	"github.com/synheart/synheart-guard/internal/regulation"
	"github.com/synheart/synheart-guard/internal/sink"
	"github.com/synheart/synheart-guard/internal/storage"
	"github.com/synheart/synheart-guard/internal/transport"
	"github.com/synheart/synheart-guard/internal/warning"
)

// app is a fully wired engine with its notification consumers.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	engine     *engine.Engine
	dispatcher *notify.Dispatcher
	metrics    *metrics.Metrics
	monitor    *network.Monitor
	ws         *notify.WebSocketServer
	sse        *notify.SSEServer
	kafka      *notify.KafkaPublisher
	closers    []func() error
}

// newApp builds every component described by cfg. dev replaces the
// configured transport when non-nil.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, dev transport.Device) (*app, error) {
	a := &app{
		cfg:        cfg,
		logger:     logger,
		dispatcher: notify.NewDispatcher(cfg.Notify.BufferSize, logger.Named("notify")),
		metrics:    metrics.New(),
		ws:         notify.NewWebSocketServer(logger.Named("ws")),
		sse:        notify.NewSSEServer(logger.Named("sse")),
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	remote, permanent, err := a.openSink(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if dev == nil {
		if dev, err = openDevice(cfg, logger); err != nil {
			a.Close()
			return nil, err
		}
	}
	scorer, err := a.openScorer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = engine.New(ctx, engine.Options{
		Store:             store,
		Sink:              remote,
		Device:            dev,
		Scorer:            scorer,
		Baseline:          &cfg.Regulation.Baseline,
		Thresholds:        cfg.Warning,
		WindowSize:        cfg.Ingest.WindowSize,
		Validation:        cfg.Policy(),
		HandshakeTimeout:  cfg.Device.HandshakeTimeout,
		VerifyOnRestore:   cfg.Device.VerifyOnRestore,
		SyncTimeout:       cfg.Sync.Timeout,
		SyncRetryInterval: cfg.Sync.RetryInterval,
		Journal:           warning.JournalOptions{Permanent: permanent},
		Network:           cfg.InitialNetwork(),
		Publisher:         a.dispatcher,
		Metrics:           a.metrics,
		Logger:            logger.Named("engine"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	a.monitor = network.NewMonitor(cfg.Network.ProbeURL, cfg.Network.ProbeInterval, cfg.InitialNetwork(), func(s models.NetworkState) {
		if err := a.engine.SetNetwork(ctx, s); err != nil && !errors.Is(err, engine.ErrStopped) {
			logger.Warn("failed to apply network state", zap.Error(err))
		}
	}, logger.Named("network"))

	if len(cfg.Notify.KafkaBrokers) > 0 {
		a.kafka = notify.NewKafkaPublisher(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, func() string {
			return cfg.Device.ID
		}, logger.Named("kafka"))
		a.closers = append(a.closers, a.kafka.Close)
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Storage.Backend {
	case "redis":
		client, err := storage.DialRedis(ctx, a.cfg.Storage.Redis.Addr, a.cfg.Storage.Redis.Password, a.cfg.Storage.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisStore(client, a.cfg.Storage.Redis.Prefix), nil
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewFileStore(a.cfg.Storage.Dir)
	}
}

// openSink also returns the classifier for errors the journal must not retry.
func (a *app) openSink(ctx context.Context) (sink.Sink, func(error) bool, error) {
	switch a.cfg.Sink.Backend {
	case "postgres":
		pg := a.cfg.Sink.Postgres
		db, err := sink.OpenPostgres(ctx, pg.DSN, pg.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		ps := sink.NewPostgresSink(db, pg.Source, a.logger.Named("postgres"))
		a.closers = append(a.closers, ps.Close)
		if pg.Migrate {
			if err := ps.Migrate(ctx); err != nil {
				return nil, nil, err
			}
		}
		return ps, sink.IsPermanent, nil
	case "http":
		h := a.cfg.Sink.HTTP
		format, _ := encoding.ParseFormat(h.Format)
		headers := map[string]string{}
		if h.Token != "" {
			headers["Authorization"] = "Bearer " + h.Token
		}
		deviceID := a.cfg.Device.ID
		return sink.NewHTTPSink(sink.HTTPOptions{
			BaseURL:  h.BaseURL,
			Timeout:  h.Timeout,
			Format:   format,
			Headers:  headers,
			DeviceID: func() string { return deviceID },
		}, a.logger.Named("http-sink")), sink.IsPermanent, nil
	default:
		a.logger.Warn("using in-memory sink, synced data is not persisted")
		return sink.NewMemorySink(), nil, nil
	}
}

func (a *app) openScorer(ctx context.Context) (regulation.Scorer, error) {
	switch a.cfg.Regulation.Scorer {
	case "weighted":
		return a.cfg.Weights(), nil
	case "wasm":
		ws, err := flux.LoadWasmScorer(ctx, a.cfg.Regulation.WasmPath, a.logger.Named("flux"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return ws.Close(context.Background()) })
		return ws, nil
	default:
		return regulation.StressScorer{}, nil
	}
}

// openDevice builds the configured wearable transport.
func openDevice(cfg *config.Config, logger *zap.Logger) (transport.Device, error) {
	d := cfg.Device
	switch d.Transport {
	case "websocket":
		return transport.NewWebSocketDevice(d.WebSocketURL, logger.Named("websocket")), nil
	case "mqtt":
		return transport.NewMQTTDevice(transport.MQTTOptions{
			Broker:      d.MQTT.Broker,
			ClientID:    d.MQTT.ClientID,
			Username:    d.MQTT.Username,
			Password:    d.MQTT.Password,
			SampleTopic: d.MQTT.SampleTopic,
			StatusTopic: d.MQTT.StatusTopic,
		}, logger.Named("mqtt")), nil
	case "udp":
		return transport.NewUDPDevice(d.UDPAddr, logger.Named("udp")), nil
	default:
		registry, err := loadScenarios(getScenarioDir())
		if err != nil {
			return nil, err
		}
		scen, err := registry.Get(d.Scenario)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario '%s': %w", d.Scenario, err)
		}
		sim := transport.NewSimulator(scen, d.Seed, logger.Named("simulator"))
		if d.Interval > 0 {
			sim.Interval = d.Interval
		}
		return sim, nil
	}
}

// start runs the engine and its consumers. The returned channel yields the
// engine's exit error once ctx is done.
func (a *app) start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.engine.Run(ctx) }()

	go a.monitor.Run(ctx)
	go a.ws.Run(ctx, a.dispatcher.Subscribe())
	go a.sse.Run(ctx, a.dispatcher.Subscribe())
	if a.kafka != nil {
		go a.kafka.Run(ctx, a.dispatcher.Subscribe())
	}

	if n, err := a.engine.Catalog().Refresh(ctx); err != nil {
		a.logger.Warn("strategy catalog not refreshed", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("strategy catalog refreshed", zap.Int("strategies", n))
	}
	return done
}

// connectConfigured pairs with the configured device, if any.
func (a *app) connectConfigured(ctx context.Context) error {
	info, ok := a.cfg.DeviceInfo()
	if !ok {
		return nil
	}
	st, err := a.engine.Status(ctx)
	if err != nil {
		return err
	}
	if st.Device != nil && st.Device.ID == info.ID {
		return nil
	}
	return a.engine.Connect(ctx, info)
}

// apiServer builds the control API on top of the engine.
func (a *app) apiServer() *api.Server {
	return api.NewServer(
		api.Config{Addr: a.cfg.API.Addr, AcceptGzip: true},
		networkControl{Engine: a.engine, monitor: a.monitor},
		a.engine.Catalog(),
		a.engine.Log(),
		a.logger.Named("api"),
		api.WithMetrics(a.metrics.Handler()),
		api.WithWebSocket(a.ws),
		api.WithSSE(a.sse),
	)
}

// Close releases every opened resource.
func (a *app) Close() {
	a.ws.Shutdown()
	a.sse.Shutdown()
	a.dispatcher.Close()
	a.closeResources()
}

// closeResources closes stores, sinks and scorers in reverse open order.
func (a *app) closeResources() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
}

// networkControl routes manual network changes through the monitor so the
// probe does not immediately undo them.
type networkControl struct {
	*engine.Engine
	monitor *network.Monitor
}

func (n networkControl) SetNetwork(ctx context.Context, s models.NetworkState) error {
	n.monitor.Override(s)
	return n.Engine.SetNetwork(ctx, s)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// waitEngine waits for the engine to drain after cancellation.
func waitEngine(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(timeout):
		return fmt.Errorf("engine did not stop within %s", timeout)
	}
}
