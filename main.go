package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/maptrack/bank-api/banks"
	"github.com/maptrack/bank-api/endpoints"
	"github.com/maptrack/bank-api/kernel"
	"github.com/maptrack/bank-api/middleware"
)

func main() {
	art := kernel.LoadConfig()
	art.Context = context.Background()

	if art.DeploymentEnvironment == "production" {
		log.Printf(" === RUNNING IN PRODUCTION MODE ===")
		gin.SetMode(gin.ReleaseMode)
	}

	cleanupFunc, err := art.SetupOtel()
	if err != nil {
		log.Fatal(err)
	}
	defer cleanupFunc()

	span, _ := art.Diagnostic.BeginTracing(art.Context, "main")
	defer span.End()

	err = art.PrepareDatabase()
	if err != nil {
		span.RecordError(err)
	}

	if art.DeploymentEnvironment != "production" {
		art.Seed()
	}

	art.BankService = banks.NewService(banks.Config{
		DB:           art.DatabaseClient,
		Registry:     art.BankRegistry,
		ClientID:     art.ClientID,
		ClientSecret: art.ClientSecret,
		AppName:      art.AppName,
		Timeout:      banks.RequestTimeout,
		InsecureTLS:  art.BankTLSInsecure,
	})

	r := gin.Default()
	err = r.SetTrustedProxies([]string{})
	if err != nil {
		span.RecordError(err)
		log.Fatal(err)
	}

	if art.DeploymentEnvironment == "production" {
		r.Use(gin.Logger())
		r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "a panic occurred, request aborted",
			})
		}))
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"https://app.maptrack.space"},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Access-Control-Allow-Origin", "Access-Control-Allow-Headers", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           7 * time.Hour * 24,
			AllowAllOrigins:  false,
		}))
	}

	r.Use(otelgin.Middleware(art.ServiceName))
	r.Use(middleware.TracerMiddleware(art))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, &gin.Error{
			Err: errors.New("route not found"),
		})
	})

	r.Use(func() gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Next()

			if len(c.Errors) > 0 {
				c.JSON(500, &gin.Error{
					Err: errors.New(c.Errors.Last().Error()),
				})
				return
			}
		}
	}())

	authorized := r.Group("/banks")
	authorized.Use(art.JWT.MiddlewareFunc())
	authorized.Use(middleware.UserMiddleware())
	{
		authorized.POST("/:bank/token", endpoints.BankToken)
		authorized.GET("/:bank/accounts", endpoints.Accounts)
		authorized.GET("/:bank/consent/:consent_id", endpoints.ConsentStatus)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	err = r.Run(art.Host)
	if err != nil {
		span.RecordError(err)
		log.Fatal(err)
	}
}
