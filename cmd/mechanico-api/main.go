// README: Entry point; loads config, wires stores and services, serves HTTP until signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mechanico/internal/config"
	httptransport "mechanico/internal/http"
	"mechanico/internal/infra"
	"mechanico/internal/logging"
	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/matching"
	"mechanico/internal/modules/provider"
	"mechanico/internal/modules/tracking"
	"mechanico/internal/notify"
	"mechanico/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.Log.Level)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("mechanico-api stopped")
	}
}

type stores struct {
	bookings  booking.Repository
	catalog   catalog.Repository
	providers provider.Repository
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	ready := map[string]httptransport.Check{}

	var st stores
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.DB.Migrate {
			if err := infra.Migrate(cfg.DB.DSN); err != nil {
				return err
			}
			log.Info("migrations applied")
		}
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		ready["postgres"] = pool.Ping
		st = stores{
			bookings:  booking.NewStore(pool),
			catalog:   catalog.NewStore(pool),
			providers: provider.NewStore(pool),
		}
	case "memory":
		cat := catalog.NewMemoryStore()
		prov := provider.NewMemoryStore(cat)
		seed.Memory(cat, prov)
		st = stores{bookings: booking.NewMemoryStore(), catalog: cat, providers: prov}
		log.Warn("using in-memory stores with demo data")
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var samples tracking.SampleStore = tracking.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		samples = tracking.NewRedisStore(rdb, cfg.Tracking.SampleTTL)
	}

	var sinks []notify.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sink := notify.NewKafkaSink(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer sink.Close()
		sinks = append(sinks, sink)
		log.WithField("topic", cfg.Kafka.Topic).Info("kafka sink enabled")
	}
	hub := notify.NewHub(log, sinks...)
	defer hub.Close()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	catalogSvc := catalog.NewService(st.catalog)
	providerSvc := provider.NewService(st.providers)
	bookingSvc := booking.NewService(st.bookings, catalogSvc, hub, log)
	tracker := tracking.NewTracker(samples, providerSvc, bookingSvc, hub, cfg.Tracking, log)
	matchingSvc := matching.NewService(providerSvc, cfg.Matching, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Bookings:  bookingSvc,
		Catalog:   catalogSvc,
		Providers: providerSvc,
		Matching:  matchingSvc,
		Tracker:   tracker,
		Hub:       hub,
		Verifier:  verifier,
		Log:       log,
		Ready:     ready,
	})

	// Closing the hub ends open event streams, which http.Server.Shutdown
	// does not wait for.
	go func() {
		<-ctx.Done()
		hub.Close()
	}()

	server := httptransport.NewServer(cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, log)
	return server.Run(ctx)
}

func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case "firebase":
		return infra.NewFirebaseVerifier(ctx, cfg.Auth.ProjectID, cfg.Auth.CredentialsFile)
	case "static":
		return infra.NewStaticVerifier(), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
