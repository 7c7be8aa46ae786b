package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DAIS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DAIS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "store.household_path", typ: kString, env: "DAIS_STORE_HOUSEHOLD_PATH",
		apply:   func(cfg *Config, v any) { cfg.Store.HouseholdPath = v.(string) },
		extract: func(cfg Config) any { return cfg.HouseholdPath() },
	},
	{
		key: "store.contacts_path", typ: kString, env: "DAIS_STORE_CONTACTS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Store.ContactsPath = v.(string) },
		extract: func(cfg Config) any { return cfg.ContactsPath() },
	},
	{
		key: "store.serialize_writes", typ: kBool, env: "DAIS_STORE_SERIALIZE_WRITES",
		apply:   func(cfg *Config, v any) { cfg.Store.SerializeWrites = v.(bool) },
		extract: func(cfg Config) any { return cfg.Store.SerializeWrites },
	},
	{
		key: "stats.window_days", typ: kInt, env: "DAIS_STATS_WINDOW_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Stats.WindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Stats.WindowDays },
	},
	{
		key: "log.level", typ: kString, env: "DAIS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "DAIS_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					slog.Warn("could not parse bool from config, using default", "key", s.key, "value", v, "error", err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer from env, using default", "env", s.env, "value", raw, "error", err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				slog.Warn("could not parse bool from env, using default", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
