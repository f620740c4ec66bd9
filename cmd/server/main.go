package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	segmentio "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/adapters/cache"
	"github.com/reybrally/fulfillment-service/internal/adapters/cms"
	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	httpHandlers "github.com/reybrally/fulfillment-service/internal/adapters/http/handlers"
	kaf "github.com/reybrally/fulfillment-service/internal/adapters/kafka"
	"github.com/reybrally/fulfillment-service/internal/adapters/mail"
	"github.com/reybrally/fulfillment-service/internal/adapters/ncm"
	repoPkg "github.com/reybrally/fulfillment-service/internal/adapters/repo"
	analyticsSvc "github.com/reybrally/fulfillment-service/internal/app/analytics"
	notifySvc "github.com/reybrally/fulfillment-service/internal/app/notify"
	"github.com/reybrally/fulfillment-service/internal/app/orders"
	"github.com/reybrally/fulfillment-service/internal/config"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(cfg.App.LogLevel)
	if err := cfg.Validate(); err != nil {
		logging.LogError("invalid configuration", err, logrus.Fields{})
		os.Exit(1)
	}
	metrics.Register()
	logging.LogInfo("starting "+cfg.App.Name, logrus.Fields{
		"pid":   os.Getpid(),
		"port":  cfg.HTTP.Port,
		"env":   cfg.App.Env,
		"store": cfg.App.StoreBackend,
		"cache": cfg.App.CacheBackend,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := map[string]httpHandlers.Check{}

	var store orders.UserBagStore
	if cfg.App.StoreBackend == config.StoreCMS {
		store = cms.NewClient(cms.Config{
			BaseURL:  cfg.CMS.BaseURL,
			Token:    cfg.CMS.Token,
			Timeout:  cfg.CMS.Timeout,
			PageSize: cfg.CMS.PageSize,
		})
		logging.LogInfo("cms store enabled", logrus.Fields{"base_url": cfg.CMS.BaseURL})
	} else {
		pool := mustPG(ctx, cfg)
		defer pool.Close()
		store = repoPkg.NewUserBagRepo(pool)
		ready["db"] = pool.Ping
	}

	var (
		reports analyticsSvc.Cache
		codes   notifySvc.CodeStore
	)
	if cfg.App.CacheBackend == config.CacheRedis {
		rdb := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		defer rdb.Close()
		reports = cache.NewRedisReportCacheWithClient(rdb, cfg.Redis.Prefix)
		codes = cache.NewRedisCodeStoreWithClient(rdb, cfg.Redis.Prefix)
		ready["redis"] = redisPing(rdb)
		logging.LogInfo("redis cache enabled", logrus.Fields{"addr": cfg.Redis.Addr, "prefix": cfg.Redis.Prefix})
	} else {
		reports = cache.NewReportCache(time.Now)
		codes = cache.NewCodeStore(time.Now)
		logging.LogInfo("in-memory cache enabled", logrus.Fields{})
	}

	carrier := dhl.NewClient(dhl.Config{
		BaseURL:       cfg.DHL.BaseURL,
		APIKey:        cfg.DHL.APIKey,
		APISecret:     cfg.DHL.APISecret,
		AccountNumber: cfg.DHL.AccountNumber,
		Timeout:       cfg.DHL.Timeout,
	})
	courier := ncm.NewClient(ncm.Config{
		BaseURL: cfg.NCM.BaseURL,
		Token:   cfg.NCM.Token,
		Timeout: cfg.NCM.Timeout,
	})

	var (
		events   orders.EventPublisher
		consumer kaf.Consumer
	)
	if cfg.Kafka.Enabled {
		prod := mustKafkaProducer(cfg)
		defer prod.Close()
		events = kaf.NewPublisher(prod, cfg.Kafka.Topic, cfg.App.Name)
	}

	fulfillment := orders.NewService(store, carrier, courier, events, orders.Options{
		Shipper: dhl.Shipper{
			AccountNumber: cfg.DHL.AccountNumber,
			CompanyName:   cfg.Shipper.CompanyName,
			FullName:      cfg.Shipper.FullName,
			Phone:         cfg.Shipper.Phone,
			Email:         cfg.Shipper.Email,
			AddressLine1:  cfg.Shipper.AddressLine1,
			AddressLine2:  cfg.Shipper.AddressLine2,
			CityName:      cfg.Shipper.CityName,
			PostalCode:    cfg.Shipper.PostalCode,
			CountryCode:   cfg.Shipper.CountryCode,
		},
		DefaultProductCode: cfg.DHL.DefaultProductCode,
		DefaultCurrency:    cfg.DHL.DefaultCurrency,
		CustomsDeclarable:  cfg.DHL.CustomsDeclarable,
		NCMFromBranch:      cfg.NCM.FromBranch,
	})
	analytics := analyticsSvc.NewService(reports, store, analyticsSvc.WithTTL(cfg.Analytics.TTL))
	mailer := mail.NewMailer(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	notifier := notifySvc.NewService(mailer, codes, cfg.App.ShopName)

	if cfg.Kafka.Enabled {
		consumer = kaf.NewConsumer(kaf.ConsumerConfig{
			Brokers:           cfg.Kafka.Brokers,
			ClientID:          cfg.App.Name,
			MinBytes:          1 << 10,
			MaxBytes:          10 << 20,
			MaxWait:           100 * time.Millisecond,
			SessionTimeout:    10 * time.Second,
			RebalanceTimeout:  10 * time.Second,
			HeartbeatInterval: 3 * time.Second,
			StartOffset:       segmentio.LastOffset,
			MaxRetries:        5,
			Backoff:           200 * time.Millisecond,
		})
		group := cfg.ConsumerGroup(instanceID())
		go func() {
			fields := logrus.Fields{"topic": cfg.Kafka.Topic, "group": group, "brokers": cfg.Kafka.Brokers}
			logging.LogInfo("kafka consumer subscribing", fields)
			if err := consumer.Subscribe(ctx, cfg.Kafka.Topic, group, kaf.InvalidateAnalytics(analytics)); err != nil {
				logging.LogError("kafka consumer stopped", err, fields)
				return
			}
			logging.LogInfo("kafka consumer exited gracefully", fields)
		}()
	}

	h := httpHandlers.New(fulfillment, analytics, notifier)
	srv := &http.Server{
		Addr: ":" + cfg.HTTP.Port,
		Handler: httpHandlers.NewRouter(h, httpHandlers.RouterConfig{
			RequestTimeout: cfg.HTTP.RequestTimeout,
			Ready:          ready,
		}),
		ReadTimeout: 15 * time.Second,
		// Carrier calls are bounded by the request timeout, plus headroom to write.
		WriteTimeout: cfg.HTTP.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.LogInfo("http server listening", logrus.Fields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError("http server ListenAndServe failed", err, logrus.Fields{"addr": srv.Addr})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logging.LogInfo("shutdown signal received", logrus.Fields{"signal": sig.String()})

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logging.LogError("kafka consumer close failed", err, logrus.Fields{})
		} else {
			logging.LogInfo("kafka consumer closed", logrus.Fields{})
		}
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logging.LogError("http server shutdown failed", err, logrus.Fields{})
	} else {
		logging.LogInfo("http server shutdown complete", logrus.Fields{})
	}
	logging.LogInfo("bye", logrus.Fields{})
}

func mustPG(ctx context.Context, cfg config.Config) *pgxpool.Pool {
	fields := logrus.Fields{"source": "DATABASE_URL"}
	if cfg.DB.URL == "" {
		fields = logrus.Fields{
			"source":  "env/defaults",
			"host":    cfg.DB.Host,
			"port":    cfg.DB.Port,
			"db_name": cfg.DB.Name,
			"user":    cfg.DB.User,
			"sslmode": cfg.DB.SSLMode,
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		logging.LogError("pgxpool.New failed", err, fields)
		os.Exit(1)
	}
	logging.LogInfo("pgx pool created", fields)
	return pool
}

func mustKafkaProducer(cfg config.Config) kaf.Producer {
	p, err := kaf.NewProducer(kaf.ProducerConfig{
		Brokers:                cfg.Kafka.Brokers,
		ClientID:               cfg.App.Name,
		RequiredAcks:           segmentio.RequireAll,
		BatchBytes:             1 << 20,
		BatchTimeout:           50 * time.Millisecond,
		Compression:            segmentio.Snappy,
		Async:                  false,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	})
	if err != nil {
		logging.LogError("kafka producer", err, logrus.Fields{"brokers": cfg.Kafka.Brokers})
		os.Exit(1)
	}
	logging.LogInfo("kafka producer created", logrus.Fields{"brokers": cfg.Kafka.Brokers, "client_id": cfg.App.Name})
	return p
}

// instanceID names this replica: the hostname, or a random id without one.
func instanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

func redisPing(rdb *redis.Client) httpHandlers.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
