package config

import (
	"fmt"
	"net/url"
)

// DatabaseConfig describes a database connection and renders it as a URL.
type DatabaseConfig struct {
	Engine   string
	Username string
	Password string
	Host     string
	Port     int
	Database string
}

// Postgres returns a config using the postgresql engine. A zero port means 5432.
func Postgres(database, username, password, host string, port int) DatabaseConfig {
	if port == 0 {
		port = 5432
	}
	return DatabaseConfig{
		Engine:   "postgresql",
		Username: username,
		Password: password,
		Host:     host,
		Port:     port,
		Database: database,
	}
}

// PostgresPsycopg2 is Postgres with the psycopg2 driver engine.
func PostgresPsycopg2(database, username, password, host string, port int) DatabaseConfig {
	c := Postgres(database, username, password, host, port)
	c.Engine = "postgresql+psycopg2"
	return c
}

// SQLite returns a config for a file-backed sqlite database.
func SQLite(database string) DatabaseConfig {
	return DatabaseConfig{Engine: "sqlite", Database: database}
}

// URL renders the connection URL. Credentials are percent-encoded and are
// left out entirely when no username is set.
func (d DatabaseConfig) URL() string {
	host := d.Host
	if d.Host != "" && d.Port != 0 {
		host = fmt.Sprintf("%s:%d", d.Host, d.Port)
	}

	path := host
	if d.Username != "" {
		user := url.QueryEscape(d.Username)
		if d.Password != "" {
			path = user + ":" + url.QueryEscape(d.Password) + "@" + host
		} else {
			path = user + "@" + host
		}
	}

	return fmt.Sprintf("%s://%s/%s", d.Engine, path, d.Database)
}
