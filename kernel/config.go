package kernel

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/appleboy/gin-jwt/v2"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/maptrack/bank-api/banks"
)

var (
	once       sync.Once
	appRuntime *AppRuntime
)

type AppRuntime struct {
	Host string

	ServiceName           string
	ServiceVersion        string
	DeploymentEnvironment string

	DatabaseDSN    string
	DatabaseClient *gorm.DB

	JaegerEndpoint     string
	PrometheusEndpoint string
	Insecure           bool

	// Bank-side identity of this system and the provider registry.
	ClientID        string
	ClientSecret    string
	AppName         string
	BankRegistry    banks.Registry
	BankTLSInsecure bool

	BankService *banks.Service

	Diagnostic *AppDiagnostic

	Context context.Context

	// User JWT
	Realm       string
	IdentityKey string
	SecretKey   []byte
	JWT         *jwt.GinJWTMiddleware
}

func LoadConfig() *AppRuntime {
	once.Do(func() {
		appEnv := os.Getenv("API_ENV")
		if appEnv == "" {
			appEnv = "development"
		}

		var env map[string]string
		env, err := godotenv.Read(".env." + appEnv)
		if err != nil {
			log.Fatal(err)
		}

		appRuntime = &AppRuntime{
			Host:        env["HOST"],
			DatabaseDSN: env["DATABASE_DSN"],

			ServiceName:           env["SERVICE_NAME"],
			ServiceVersion:        env["SERVICE_VERSION"],
			DeploymentEnvironment: env["DEPLOY_ENV"],

			JaegerEndpoint:     env["JAEGER_ENDPOINT"],
			PrometheusEndpoint: env["PROMETHEUS_ENDPOINT"],
			Insecure:           env["INSECURE"] == "true",

			ClientID:        env["BANK_CLIENT_ID"],
			ClientSecret:    env["BANK_CLIENT_SECRET"],
			AppName:         env["BANK_APP_NAME"],
			BankRegistry:    ParseBankURLs(env["BANK_URLS"]),
			BankTLSInsecure: env["BANK_TLS_INSECURE"] == "true",

			Diagnostic: &AppDiagnostic{
				Tracer: otel.Tracer(env["SERVICE_NAME"] + "-tracer"),
				Meter:  otel.Meter(env["SERVICE_NAME"] + "-meter"),
			},

			Realm:       env["SEC_JWT_REALM"],
			IdentityKey: env["SEC_JWT_IDENTITY_KEY"],
			SecretKey:   []byte(env["SEC_JWT_SECRET_KEY"]),
		}

		appRuntime.JWT, err = jwt.New(&jwt.GinJWTMiddleware{
			Realm:       appRuntime.Realm,
			Key:         appRuntime.SecretKey,
			IdentityKey: appRuntime.IdentityKey,
			Timeout:     time.Minute * 30,
		})
		if err != nil {
			log.Fatal(err)
		}
	})
	return appRuntime
}

// DefaultBankURLs is the fixed provider set this deployment talks to.
func DefaultBankURLs() banks.Registry {
	return banks.Registry{
		"vbank": "https://vbank.open.bankingapi.ru",
		"abank": "https://abank.open.bankingapi.ru",
		"sbank": "https://sbank.open.bankingapi.ru",
	}
}

// ParseBankURLs parses BANK_URLS ("vbank=https://...,abank=https://...")
// and falls back to the default registry when unset.
func ParseBankURLs(raw string) banks.Registry {
	if strings.TrimSpace(raw) == "" {
		return DefaultBankURLs()
	}

	registry := banks.Registry{}
	for _, pair := range strings.Split(raw, ",") {
		name, endpoint, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || endpoint == "" {
			continue
		}
		registry[name] = endpoint
	}
	return registry
}
