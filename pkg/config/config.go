package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App        AppConfig
	DB         DBConfig
	JWT        JWTConfig
	HTTP       HTTPConfig
	Redis      RedisConfig
	RoleChange RoleChangeConfig
	Events     EventsConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env           string // development, staging, production
	Name          string
	LogLevel      string
	StorageDriver string // postgres | memory
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración del token de sesión.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos; 1440 = 24h
	Issuer     string
}

// TTL devuelve la vigencia del token como duración.
func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.Expiration) * time.Minute
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host               string
	Port               int
	LoginRatePerMinute int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig habilita el planificador durable y el fanout de notificaciones entre instancias.
// URL vacía = todo en memoria del proceso.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// RoleChangeConfig tiempos del cierre de sesión forzado tras un cambio de rol o departamento.
type RoleChangeConfig struct {
	Grace         time.Duration
	Countdown     time.Duration
	Retention     time.Duration
	SweepSchedule string
	PurgeSchedule string
}

// EventsConfig canal de notificaciones en vivo (SSE).
type EventsConfig struct {
	Heartbeat time.Duration
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, REDIS_URL, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:           getString(v, "APP_ENV", "development"),
			Name:          getString(v, "APP_NAME", "produccion-api"),
			LogLevel:      getString(v, "LOG_LEVEL", "info"),
			StorageDriver: getString(v, "STORAGE_DRIVER", "postgres"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "produccion"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 24*60),
			Issuer:     getString(v, "JWT_ISSUER", "produccion-api"),
		},
		HTTP: HTTPConfig{
			Host:               getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:               getInt(v, "HTTP_PORT", 8080),
			LoginRatePerMinute: getInt(v, "LOGIN_RATE_PER_MINUTE", 10),
		},
		Redis: RedisConfig{
			URL:       getString(v, "REDIS_URL", ""),
			KeyPrefix: getString(v, "REDIS_KEY_PREFIX", "produccion"),
		},
		RoleChange: RoleChangeConfig{
			Grace:         time.Duration(getInt(v, "ROLE_CHANGE_GRACE_MINUTES", 24*60)) * time.Minute,
			Countdown:     time.Duration(getInt(v, "ROLE_CHANGE_COUNTDOWN_SECONDS", 10)) * time.Second,
			Retention:     time.Duration(getInt(v, "ROLE_CHANGE_RETENTION_DAYS", 30)) * 24 * time.Hour,
			SweepSchedule: getString(v, "ROLE_CHANGE_SWEEP_SCHEDULE", "@hourly"),
			PurgeSchedule: getString(v, "ROLE_CHANGE_PURGE_SCHEDULE", "@daily"),
		},
		Events: EventsConfig{
			Heartbeat: time.Duration(getInt(v, "SSE_HEARTBEAT_SECONDS", 30)) * time.Second,
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET es requerido")
	}
	switch cfg.App.StorageDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("config: STORAGE_DRIVER inválido %q (postgres|memory)", cfg.App.StorageDriver)
	}
	if cfg.RoleChange.Grace <= 0 || cfg.RoleChange.Countdown < 0 {
		return nil, fmt.Errorf("config: tiempos de cambio de rol inválidos")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
