package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/api/handlers"
	"github.com/acme/predictive-dialer/internal/broadcast"
	"github.com/acme/predictive-dialer/internal/config"
	"github.com/acme/predictive-dialer/internal/dialer"
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/events"
	"github.com/acme/predictive-dialer/internal/infra/db"
	"github.com/acme/predictive-dialer/internal/infra/redis"
	"github.com/acme/predictive-dialer/internal/queue"
	"github.com/acme/predictive-dialer/internal/repository"
	pgrepo "github.com/acme/predictive-dialer/internal/repository/postgres"
	scyllarepo "github.com/acme/predictive-dialer/internal/repository/scylla"
	"github.com/acme/predictive-dialer/internal/service/history"
	"github.com/acme/predictive-dialer/internal/service/leads"
	"github.com/acme/predictive-dialer/internal/service/outcome"
	"github.com/acme/predictive-dialer/internal/telephony"
	"github.com/acme/predictive-dialer/internal/telephony/mock"
	"github.com/acme/predictive-dialer/internal/telephony/onlinepbx"
	"github.com/acme/predictive-dialer/internal/worker/ingress"
	"github.com/acme/predictive-dialer/pkg/logger"
)

// Container wires together shared infrastructure dependencies. Backends
// disabled in config stay nil.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	components struct {
		once       sync.Once
		err        error
		engine     *dialer.Engine
		provider   telephony.Provider
		leadRepo   repository.LeadRepository
		callLog    repository.CallLog
		publisher  *queue.EventPublisher
		forwarders []*events.Forwarder
		history    *history.Service
		leadStore  *leads.Store
	}
}

// Build loads config and connects the enabled backends.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: lg}
	if err := c.connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) connect(ctx context.Context) error {
	cfg := c.Config

	if cfg.Postgres.Enabled {
		pg, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("bootstrap postgres: %w", err)
		}
		c.Postgres = pg
		if !cfg.Postgres.DisableInitSchema {
			if err := pgrepo.EnsureSchema(ctx, pg.DB()); err != nil {
				return fmt.Errorf("bootstrap postgres: %w", err)
			}
		}
	}

	if cfg.Scylla.Enabled {
		scylla, err := db.NewScylla(cfg.Scylla)
		if err != nil {
			return fmt.Errorf("bootstrap scylla: %w", err)
		}
		c.Scylla = scylla
		if !cfg.Scylla.DisableInitSchema {
			if err := scyllarepo.NewCallLog(scylla.Session()).EnsureSchema(ctx); err != nil {
				return fmt.Errorf("bootstrap scylla: %w", err)
			}
		}
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		c.Redis = client
	}

	if cfg.Kafka.Enabled {
		k, err := queue.NewKafka(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("bootstrap kafka: %w", err)
		}
		c.Kafka = k
		if err := k.EnsureTopics(ctx, []string{cfg.Kafka.EventTopic, cfg.Kafka.ProviderEventTopic}); err != nil {
			return fmt.Errorf("bootstrap kafka: %w", err)
		}
	}

	return nil
}

func (c *Container) initComponents() error {
	c.components.once.Do(func() {
		c.components.err = c.buildComponents()
	})
	return c.components.err
}

func (c *Container) buildComponents() error {
	cfg := c.Config
	lg := c.Logger

	if c.Postgres != nil {
		repo := pgrepo.NewLeadRepository(c.Postgres.DB())
		c.components.leadRepo = repo
		c.components.leadStore = leads.NewStore(repo)
	}
	if c.Scylla != nil {
		log := scyllarepo.NewCallLog(c.Scylla.Session())
		c.components.callLog = log
		c.components.history = history.NewService(log)
	}

	provider, err := c.buildProvider()
	if err != nil {
		return err
	}
	c.components.provider = provider

	var source dialer.LeadSource
	switch cfg.LeadSource.Kind {
	case "postgres":
		source = leads.NewPostgresSource(c.components.leadRepo, cfg.LeadSource.BatchSize, lg)
	default:
		source = leads.NewStaticSource(cfg.LeadSource.Static)
	}

	engineCfg, err := dialer.ConfigFrom(cfg.Dialer)
	if err != nil {
		return err
	}
	bus := events.NewBus(lg)
	engine := dialer.New(engineCfg, provider, source, bus, lg)
	c.components.engine = engine

	if sim, ok := provider.(*mock.Provider); ok {
		sim.SetSink(c.providerSink(engine))
	}

	c.buildForwarders(bus, engine)
	return nil
}

func (c *Container) buildProvider() (telephony.Provider, error) {
	cfg := c.Config.Telephony
	switch cfg.Provider {
	case "onlinepbx":
		client, err := onlinepbx.NewClient(cfg.OnlinePBX, &http.Client{Timeout: cfg.RequestTimeout}, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap onlinepbx: %w", err)
		}
		return client, nil
	default:
		return mock.NewProvider(cfg.Mock, cfg.Mock.Seed), nil
	}
}

func (c *Container) providerSink(engine *dialer.Engine) telephony.EventSink {
	lg := c.Logger.Named("provider_sink")
	return func(ctx context.Context, ev domain.ProviderEvent) {
		if _, err := engine.HandleProviderEvent(ctx, ev); err != nil {
			lg.Warn("deliver simulated event", zap.String("call_id", ev.CallID), zap.Error(err))
		}
	}
}

func (c *Container) buildForwarders(bus *events.Bus, engine *dialer.Engine) {
	cfg := c.Config
	buffer := cfg.Dialer.EventBuffer
	var fwd []*events.Forwarder

	if c.components.leadRepo != nil || c.components.callLog != nil {
		rec := outcome.NewRecorder(c.components.leadRepo, c.components.callLog, c.Logger)
		if c.components.leadRepo != nil {
			fwd = append(fwd, events.NewForwarder("lead_outcomes", buffer, rec.RecordOutcome, c.Logger, outcome.OutcomeEvents...))
		}
		if c.components.callLog != nil {
			fwd = append(fwd, events.NewForwarder("call_log", buffer, rec.AppendCallEvent, c.Logger, outcome.CallEvents...))
		}
	}

	if c.Kafka != nil && cfg.Kafka.EventTopic != "" {
		pub := queue.NewEventPublisher(c.Kafka, cfg.Kafka.EventTopic)
		c.components.publisher = pub
		fwd = append(fwd, events.NewForwarder("kafka_events", buffer, pub.Publish, c.Logger))
	}

	if c.Redis != nil {
		b := broadcast.NewRedis(c.Redis.Inner(), engine, broadcast.Options{
			Channel:  cfg.Redis.EventChannel,
			StateKey: cfg.Redis.StateKey,
			StateTTL: cfg.Redis.StateTTL,
		})
		fwd = append(fwd, events.NewForwarder("redis_broadcast", buffer, b.Deliver, c.Logger))
	}

	for _, f := range fwd {
		bus.OnAll(f.Handle)
	}
	c.components.forwarders = fwd
}

// Engine exposes the dialer engine.
func (c *Container) Engine() (*dialer.Engine, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.engine, nil
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() (*handlers.HandlerSet, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}

	deps := handlers.Dependencies{
		Dialer: c.components.engine,
		Logger: c.Logger,
	}
	if c.components.history != nil {
		deps.History = c.components.history
	}
	if c.components.leadStore != nil {
		deps.Leads = c.components.leadStore
	}
	if c.Postgres != nil {
		deps.Checks = append(deps.Checks, c.Postgres)
	}
	if c.Scylla != nil {
		deps.Checks = append(deps.Checks, c.Scylla)
	}
	if c.Redis != nil {
		deps.Checks = append(deps.Checks, c.Redis)
	}
	if c.Kafka != nil {
		deps.Checks = append(deps.Checks, c.Kafka)
	}
	return handlers.NewHandlerSet(deps), nil
}

// Run drives the engine, the event forwarders and the Kafka ingress worker
// until ctx is cancelled or one of them fails.
func (c *Container) Run(ctx context.Context) error {
	if err := c.initComponents(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		once sync.Once
		fail error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.Logger.Error("component stopped", zap.String("component", name), zap.Error(err))
				once.Do(func() { fail = fmt.Errorf("%s: %w", name, err) })
			}
			cancel()
		}()
	}

	run("engine", c.components.engine.Run)
	for _, f := range c.components.forwarders {
		run("forwarder", f.Run)
	}
	if c.Kafka != nil && c.Config.Kafka.ProviderEventTopic != "" {
		reader := c.Kafka.NewReader(c.Config.Kafka.ProviderEventTopic, c.Config.Kafka.ConsumerGroupID)
		w := ingress.New(reader, c.components.engine, c.Logger)
		run("ingress", w.Run)
	}

	wg.Wait()
	return fail
}

// Close releases all held resources.
func (c *Container) Close() error {
	var errs []error
	if p := c.components.publisher; p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	return errors.Join(errs...)
}
