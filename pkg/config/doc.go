// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Configuration structs declare their variables via `env` tags:
//
//	type StoreConfig struct {
//		ConnectionString string `env:"DATABASE_URL,required"`
//		QueryTimeout     time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
//	}
//
//	var cfg StoreConfig
//	config.MustLoad(&cfg)
//
// Each struct type is parsed exactly once per process and cached, so
// independent components loading the same type observe the same values.
package config
