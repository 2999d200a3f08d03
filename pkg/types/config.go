package types

// DatabaseDriver selects the database/sql driver backing the store.
type DatabaseDriver string

const (
	// DriverSQLite3 is the cgo SQLite driver (github.com/mattn/go-sqlite3).
	DriverSQLite3 DatabaseDriver = "sqlite3"

	// DriverSQLite is the pure-Go SQLite driver (modernc.org/sqlite).
	DriverSQLite DatabaseDriver = "sqlite"

	// DriverPostgres is Postgres through github.com/jackc/pgx/v5/stdlib.
	DriverPostgres DatabaseDriver = "pgx"
)

// DatabaseConfig holds settings for the catalog and list store.
type DatabaseConfig struct {
	// Driver selects sqlite3, sqlite, or pgx (default sqlite3).
	Driver DatabaseDriver `json:"driver" yaml:"driver"`

	// Path is the SQLite database file (default "data/mycolist.db").
	Path string `json:"path" yaml:"path"`

	// DSN is the Postgres connection string. Ignored for SQLite drivers.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// DuplicatePolicy decides what happens when a resolved name is already on
// the target list.
type DuplicatePolicy string

const (
	// DuplicatesAppend always appends a new observation.
	DuplicatesAppend DuplicatePolicy = "append"

	// DuplicatesSkip suppresses names already present on the list or
	// repeated within the same submission.
	DuplicatesSkip DuplicatePolicy = "skip"
)

// ScoreConfig holds contribution score weights.
type ScoreConfig struct {
	// NewName is credited per catalog name created (default 10).
	NewName int `json:"new_name" yaml:"new_name"`

	// NewList is credited per species list created (default 5).
	NewList int `json:"new_list" yaml:"new_list"`

	// Observation is credited per observation materialized: list entry,
	// observation, naming, and vote count one each (default 4).
	Observation int `json:"observation" yaml:"observation"`
}

// DefaultScoreConfig returns the standard contribution weights.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{NewName: 10, NewList: 5, Observation: 4}
}

// ListsConfig holds settings for species list construction.
type ListsConfig struct {
	// Duplicates is append or skip (default append).
	Duplicates DuplicatePolicy `json:"duplicates" yaml:"duplicates"`

	// DefaultVote is the vote attached to each new naming (default VoteMaximum).
	DefaultVote int `json:"default_vote" yaml:"default_vote"`

	Score ScoreConfig `json:"score" yaml:"score"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level"`

	// Development switches zap to its console encoder.
	Development bool `json:"development" yaml:"development"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// File, when set, receives the metrics in text exposition format after
	// each command, for the node exporter textfile collector.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Config groups every setting of the application.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Lists    ListsConfig    `json:"lists" yaml:"lists"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}
