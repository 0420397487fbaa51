// Package db opens the relational store shared by the user and task
// repositories.
package db

import (
	"errors"
	stdlog "log"
	"time"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	// DatabaseURL selects postgres when set.
	DatabaseURL string
	// SQLitePath is used when DatabaseURL is empty.
	SQLitePath string
}

// Open connects to postgres or sqlite. Unique violations are reported as
// gorm.ErrDuplicatedKey.
func Open(c Config, logger log.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case c.DatabaseURL != "":
		dialector = postgres.Open(c.DatabaseURL)
	case c.SQLitePath != "":
		dialector = sqlite.Open(c.SQLitePath + "?_foreign_keys=on")
	default:
		return nil, errors.New("no database configured")
	}

	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(
			stdlog.New(log.NewStdlibAdapter(log.With(logger, "component", "gorm")), "", 0),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
}

// Migrate creates or extends the users and tasks tables. Users come first:
// tasks reference them.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&usersvc.User{}, &tasksvc.Task{})
}
