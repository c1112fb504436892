package database

import (
	"fmt"
	"net/url"

	"budgetoffice/internal/config"
)

// Supported values for Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// NewConfig derives the database configuration from the application config.
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		DBName:     cfg.DBName,
		SSLMode:    cfg.DBSSLMode,
		SQLitePath: cfg.SQLitePath,
	}
}

// DSN returns the connection string understood by the GORM driver.
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrationURL returns the postgres:// URL used by golang-migrate.
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
