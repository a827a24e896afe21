package storage

import (
	"fmt"
	"strings"
	"time"

	appconfig "github.com/kindred-labs/genealogy-enrich/internal/config"
)

const (
	TypeEmbedded  = appconfig.DatabaseTypeEmbedded
	TypeNetworked = appconfig.DatabaseTypeNetworked

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// Config holds the resolved settings needed to open either backend.
type Config struct {
	Type       string
	SQLitePath string

	Host     string
	Port     int
	Name     string
	User     string
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// FromAppConfig builds a storage Config from the loaded application config
// document (internal/config.Config), applying the production-ready pool
// defaults the teacher's internal/storage/config.go also used.
func FromAppConfig(db appconfig.Database) Config {
	return Config{
		Type:            db.Type,
		SQLitePath:      db.SQLitePath,
		Host:            db.Host,
		Port:            db.Port,
		Name:            db.Name,
		User:            db.User,
		Password:        db.Password,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
	}
}

// databaseURL builds a postgres:// DSN from the discrete connection fields.
func (c Config) databaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MaskDatabaseURL returns the postgres DSN with the password redacted, safe for logging.
func (c Config) MaskDatabaseURL() string {
	url := c.databaseURL()

	schemeEnd := strings.Index(url, "://")
	if schemeEnd == -1 {
		return url
	}

	afterScheme := url[schemeEnd+3:]

	lastAt := strings.LastIndex(afterScheme, "@")
	if lastAt == -1 {
		return url
	}

	userInfo := afterScheme[:lastAt]

	colon := strings.Index(userInfo, ":")
	if colon == -1 {
		return url
	}

	if userInfo[colon+1:] == "" {
		return url
	}

	scheme := url[:schemeEnd]
	username := userInfo[:colon]

	return scheme + "://" + username + ":***" + afterScheme[lastAt:]
}
