package config

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"

	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/validation"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"wordrush"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Validation  Validation
	Ranking     Ranking
	Leaderboard Leaderboard
	Idempotency Idempotency
	CORS        CORS
}

// IsDevelopment reports whether internal error details may be exposed.
func (a *App) IsDevelopment() bool {
	return a.Env == "development"
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// ConnString renders a plain libpq-style connection string.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// DSN is ConnString plus the pgxpool sizing parameters.
func (p Postgres) DSN() string {
	return fmt.Sprintf("%s pool_max_conns=%d", p.ConnString(), p.MaxConns)
}

// LoadPostgres reads only the database settings, for tools that need
// nothing else.
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.ParseWithOptions(&pg, env.Options{RequiredIfNoDef: true}); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	return pg, nil
}

// Redis holds claim store, cache and pub/sub configuration. An empty Addr
// runs the API single-instance without Redis.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// Security stores secrets for verifying auth tokens.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"wordrush"`
}

// Validation tunes the anti-cheat validator.
type Validation struct {
	SuspiciousAction  string        `env:"SUSPICIOUS_PATTERN_ACTION" envDefault:"reject"`
	ScoreTolerance    float64       `env:"SCORE_TOLERANCE" envDefault:"10"`
	DurationTolerance time.Duration `env:"DURATION_TOLERANCE" envDefault:"5s"`
}

// Policy converts the settings into a validator policy.
func (v Validation) Policy() (validation.Policy, error) {
	action := validation.Action(v.SuspiciousAction)
	if action != validation.ActionReject && action != validation.ActionFlag {
		return validation.Policy{}, fmt.Errorf("SUSPICIOUS_PATTERN_ACTION must be reject or flag, got %q", v.SuspiciousAction)
	}
	policy := validation.DefaultPolicy()
	policy.SuspiciousAction = action
	policy.ScoreTolerance = v.ScoreTolerance
	policy.DurationTolerance = v.DurationTolerance
	return policy, nil
}

// Ranking configures percentile queries.
type Ranking struct {
	QueryTimeout time.Duration `env:"RANKING_QUERY_TIMEOUT" envDefault:"2s"`
	Timezone     string        `env:"RANKING_TIMEZONE" envDefault:"UTC"`
}

// Location resolves the timezone used for the daily window.
func (r Ranking) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load RANKING_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Leaderboard governs which boards are written and how they are cached.
type Leaderboard struct {
	Periods        []string      `env:"LEADERBOARD_PERIODS" envSeparator:"," envDefault:"daily,weekly,monthly,all_time"`
	ResponsePeriod string        `env:"LEADERBOARD_RESPONSE_PERIOD" envDefault:"daily"`
	UpdateAttempts uint64        `env:"LEADERBOARD_UPDATE_ATTEMPTS" envDefault:"3"`
	CacheTTL       time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`
	TopN           int           `env:"LEADERBOARD_TOP_N" envDefault:"50"`
	WarmInterval   time.Duration `env:"LEADERBOARD_WARM_INTERVAL" envDefault:"1m"`
}

// ParsedPeriods validates the configured periods.
func (l Leaderboard) ParsedPeriods() ([]round.Period, error) {
	periods := make([]round.Period, 0, len(l.Periods))
	for _, raw := range l.Periods {
		p, err := round.ParsePeriod(raw)
		if err != nil {
			return nil, fmt.Errorf("LEADERBOARD_PERIODS: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// Idempotency configures the round id claim store.
type Idempotency struct {
	TTL   time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	Wait  time.Duration `env:"IDEMPOTENCY_WAIT" envDefault:"2s"`
	Lease time.Duration `env:"IDEMPOTENCY_LEASE" envDefault:"30s"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,Idempotency-Key,X-Request-ID"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Validation.Policy(); err != nil {
		return nil, err
	}
	if _, err := cfg.Leaderboard.ParsedPeriods(); err != nil {
		return nil, err
	}
	if _, err := round.ParsePeriod(cfg.Leaderboard.ResponsePeriod); err != nil {
		return nil, fmt.Errorf("LEADERBOARD_RESPONSE_PERIOD: %w", err)
	}
	if _, err := cfg.Ranking.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}
