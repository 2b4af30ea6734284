package kernel

import (
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maptrack/bank-api/models"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel"
)

func (art *AppRuntime) PrepareDatabase() error {
	dbLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Info,
			Colorful:      true,
		},
	)

	db, err := gorm.Open(mysql.Open(art.DatabaseDSN), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return err
	}

	if err = db.Use(otelgorm.NewPlugin(
		otelgorm.WithAttributes(),
		otelgorm.WithTracerProvider(otel.GetTracerProvider()),
	)); err != nil {
		return err
	}

	_ = db.AutoMigrate(&models.User{})
	_ = db.AutoMigrate(&models.BankToken{})
	_ = db.AutoMigrate(&models.BankConsent{})

	art.DatabaseClient = db

	return nil
}

// First loads the first row matching where into obj. A missing row is
// reported as (false, nil); real database errors are recorded on the
// current span before being returned.
func (rt *RequestRuntime) First(obj interface{}, where string, args ...interface{}) (bool, error) {
	db := rt.DB.WithContext(rt.RequestContext.Request.Context())
	if err := db.Where(where, args...).First(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, rt.MakeError(err)
	}
	return true, nil
}
