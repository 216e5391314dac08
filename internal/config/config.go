package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Env              string                  `env:"ENV,default=local"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	API              APIHTTPConfig           `env:",prefix=API_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s"`
	DB               SQLiteConfig            `env:",prefix=DB_"`
	GitHub           GitHubConfig            `env:",prefix=GITHUB_"`
	StarScan         StarScanConfig          `env:",prefix=STAR_SCAN_"`
	UpdateUser       UpdateUserConfig        `env:",prefix=UPDATE_USER_"`
}

type GitHubConfig struct {
	BaseURL                string        `env:"BASE_URL,default=https://api.github.com"`
	Timeout                time.Duration `env:"TIMEOUT,default=30s"`
	RateLimitCheckInterval time.Duration `env:"RATE_LIMIT_CHECK_INTERVAL,default=5m"`
}

// StarScanConfig drives the resumable sweep over users ordered by stars.
type StarScanConfig struct {
	Enabled      bool          `env:"ENABLED,default=true"`
	Schedule     string        `env:"SCHEDULE,default=*/30 * * * *"`
	TokenUserID  int64         `env:"TOKEN_USER_ID,default=3138447"`
	PollInterval time.Duration `env:"POLL_INTERVAL,default=5s"`
	BatchSize    int           `env:"BATCH_SIZE,default=100"`
	MaxUpdates   int           `env:"MAX_UPDATES,default=1000"`
	MaxChecks    int           `env:"MAX_CHECKS,default=2000"`
	MinRemaining int64         `env:"MIN_RATE_LIMIT_REMAINING,default=500"`
	FreshFor     time.Duration `env:"FRESH_FOR,default=168h"`
	RequestDelay time.Duration `env:"REQUEST_DELAY,default=200ms"`
	Denylist     []string      `env:"DENYLIST"`
}

// UpdateUserConfig drives the consumers of the update_user_jobs lease table.
type UpdateUserConfig struct {
	Workers      int           `env:"WORKERS,default=2"`
	PollInterval time.Duration `env:"POLL_INTERVAL,default=5s"`
	LeaseTimeout time.Duration `env:"LEASE_TIMEOUT,default=5m"`
}

type LoggerConfig struct {
	Level string `env:"LEVEL,default=debug"`
}

type ObservabilityHTTPConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         uint16        `env:"PORT,default=8383"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a ObservabilityHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type APIHTTPConfig struct {
	Enabled     bool          `env:"ENABLED,default=false"`
	Host        string        `env:"HOST,default=127.0.0.1"`
	Port        uint16        `env:"PORT,default=8080"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT,default=10s"`
}

func (a APIHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type SQLiteConfig struct {
	Path         string        `env:"PATH,default=./data/gitstar.db"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS,default=5"`
	MaxLifetime  string        `env:"MAX_LIFETIME,default=5m"`
	BusyTimeout  time.Duration `env:"BUSY_TIMEOUT,default=10s"`
	ConnTimeout  time.Duration `env:"CONN_TIMEOUT,default=10s"`
}

// DSN builds a go-sqlite3 connection string. Writers wait on each other for up
// to BusyTimeout and transactions take the write lock up front.
func (c SQLiteConfig) DSN() string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", c.BusyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")
	return fmt.Sprintf("file:%s?%s", c.Path, q.Encode())
}
