package app

import (
	"strings"

	"github.com/charlesng35/crmwarm/internal/database"
)

// ConnectionConfig converts the configuration into the database package representation,
// picking the host parameters that belong to the selected driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	dbCfg := database.Config{
		Driver:  strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:    strings.TrimSpace(c.Path),
		DSN:     strings.TrimSpace(c.DSN),
		Options: c.Options,
	}

	var auth DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = auth.Password
	return dbCfg
}
