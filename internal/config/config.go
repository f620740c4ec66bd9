package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CacheMemory    = "memory"
	CacheRedis     = "redis"
	StorePostgres  = "postgres"
	StoreCMS       = "cms"
	defaultService = "fulfillment-service"
)

type App struct {
	Env          string
	Name         string
	ShopName     string
	LogLevel     string
	CacheBackend string
	StoreBackend string
}

type HTTP struct {
	Port           string
	RequestTimeout time.Duration
}

type DB struct {
	URL      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN prefers DATABASE_URL and otherwise assembles one from the parts.
func (d DB) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

type Kafka struct {
	Enabled bool
	Brokers []string
	Topic   string
	Group   string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type CMS struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	PageSize int
}

type DHL struct {
	BaseURL            string
	APIKey             string
	APISecret          string
	AccountNumber      string
	Timeout            time.Duration
	DefaultProductCode string
	DefaultCurrency    string
	CustomsDeclarable  bool
}

// Shipper is the merchant's pickup address printed on every waybill.
type Shipper struct {
	CompanyName  string
	FullName     string
	Phone        string
	Email        string
	AddressLine1 string
	AddressLine2 string
	CityName     string
	PostalCode   string
	CountryCode  string
}

type NCM struct {
	BaseURL    string
	Token      string
	FromBranch string
	Timeout    time.Duration
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Analytics struct {
	TTL time.Duration
}

type Config struct {
	App       App
	HTTP      HTTP
	DB        DB
	Kafka     Kafka
	Redis     Redis
	CMS       CMS
	DHL       DHL
	Shipper   Shipper
	NCM       NCM
	SMTP      SMTP
	Analytics Analytics
}

func Load() Config {
	return Config{
		App: App{
			Env:          getenv("APP_ENV", "dev"),
			Name:         getenv("APP_NAME", defaultService),
			ShopName:     getenv("SHOP_NAME", "Store"),
			LogLevel:     getenv("LOG_LEVEL", "info"),
			CacheBackend: strings.ToLower(getenv("CACHE_BACKEND", CacheMemory)),
			StoreBackend: strings.ToLower(getenv("STORE_BACKEND", StorePostgres)),
		},
		HTTP: HTTP{
			Port:           getenv("PORT", "8080"),
			RequestTimeout: parseDuration(getenv("HTTP_REQUEST_TIMEOUT", "45s")),
		},
		DB: DB{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getenv("DB_HOST", "127.0.0.1"),
			Port:     getenv("DB_PORT", "55432"),
			Name:     getenv("DB_NAME", "fulfillment_db"),
			User:     getenv("DB_USER", "postgres"),
			Password: getenv("DB_PASSWORD", "postgres"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Kafka: Kafka{
			Enabled: parseBool(getenv("KAFKA_ENABLED", "false")),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:19092")),
			Topic:   getenv("FULFILLMENT_EVENTS_TOPIC", "fulfillment-events"),
			Group:   getenv("FULFILLMENT_CONSUMER_GROUP", "fulfillment-analytics-invalidator"),
		},
		Redis: Redis{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       atoi(getenv("REDIS_DB", "0")),
			Prefix:   getenv("REDIS_PREFIX", "fulfillment:"),
		},
		CMS: CMS{
			BaseURL:  getenv("CMS_BASE_URL", "http://localhost:1337"),
			Token:    getenv("CMS_API_TOKEN", ""),
			Timeout:  parseDuration(getenv("CMS_TIMEOUT", "15s")),
			PageSize: atoi(getenv("CMS_PAGE_SIZE", "100")),
		},
		DHL: DHL{
			BaseURL:            getenv("DHL_BASE_URL", "https://express.api.dhl.com/mydhlapi/test"),
			APIKey:             getenv("DHL_API_KEY", ""),
			APISecret:          getenv("DHL_API_SECRET", ""),
			AccountNumber:      getenv("DHL_ACCOUNT_NUMBER", ""),
			Timeout:            parseDuration(getenv("DHL_TIMEOUT", "30s")),
			DefaultProductCode: getenv("DHL_PRODUCT_CODE", "P"),
			DefaultCurrency:    strings.ToUpper(getenv("DHL_CURRENCY", "USD")),
			CustomsDeclarable:  parseBool(getenv("DHL_CUSTOMS_DECLARABLE", "true")),
		},
		Shipper: Shipper{
			CompanyName:  getenv("SHIPPER_COMPANY", ""),
			FullName:     getenv("SHIPPER_NAME", ""),
			Phone:        getenv("SHIPPER_PHONE", ""),
			Email:        getenv("SHIPPER_EMAIL", ""),
			AddressLine1: getenv("SHIPPER_ADDRESS", ""),
			AddressLine2: getenv("SHIPPER_ADDRESS2", ""),
			CityName:     getenv("SHIPPER_CITY", "Kathmandu"),
			PostalCode:   getenv("SHIPPER_POSTAL_CODE", "44600"),
			CountryCode:  strings.ToUpper(getenv("SHIPPER_COUNTRY", "NP")),
		},
		NCM: NCM{
			BaseURL:    getenv("NCM_BASE_URL", "https://portal.nepalcanmove.com/api/v1"),
			Token:      getenv("NCM_API_TOKEN", ""),
			FromBranch: getenv("NCM_FROM_BRANCH", "TINKUNE"),
			Timeout:    parseDuration(getenv("NCM_TIMEOUT", "20s")),
		},
		SMTP: SMTP{
			Host:     getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:     atoi(getenv("SMTP_PORT", "587")),
			Username: getenv("SMTP_USER", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
		},
		Analytics: Analytics{
			TTL: parseDuration(getenv("ANALYTICS_CACHE_TTL", "5m")),
		},
	}
}

// Validate rejects backend selections the server cannot wire.
func (c Config) Validate() error {
	switch c.App.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("config: CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.App.CacheBackend)
	}
	switch c.App.StoreBackend {
	case StorePostgres, StoreCMS:
	default:
		return fmt.Errorf("config: STORE_BACKEND must be %q or %q, got %q", StorePostgres, StoreCMS, c.App.StoreBackend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: KAFKA_BROKERS is empty")
	}
	return nil
}

// ConsumerGroup is the Kafka group that invalidates analytics. The in-memory
// cache lives in each replica, so every instance needs its own group to see
// every event; a shared Redis cache needs only one consumer per event.
func (c Config) ConsumerGroup(instance string) string {
	if c.App.CacheBackend == CacheMemory && instance != "" {
		return c.Kafka.Group + "-" + instance
	}
	return c.Kafka.Group
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
