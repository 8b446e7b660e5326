package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the YAML configuration file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Config holds the whole ministry analytics configuration.
// It is loaded once at startup and passed by reference to every component.
type Config struct {
	// Spreadsheet identification
	SpreadsheetID string `yaml:"spreadsheet_id" validate:"required"`
	SheetName     string `yaml:"sheet_name" validate:"required"`

	// Column layout of the sheet
	Columns ColumnsConfig `yaml:"columns"`

	Storage    StorageConfig    `yaml:"storage"`
	Stats      StatsConfig      `yaml:"stats"`
	Auth       AuthConfig       `yaml:"auth"`
	Source     SourceConfig     `yaml:"source"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Volunteers VolunteersConfig `yaml:"volunteers"`
	Forecast   ForecastConfig   `yaml:"forecast"`
	Rank       RankConfig       `yaml:"rank"`
}

// ColumnsConfig maps spreadsheet columns to the date and the service roles
type ColumnsConfig struct {
	Date     string       `yaml:"date" validate:"required"`
	RangeEnd string       `yaml:"range_end"`
	Roles    []RoleColumn `yaml:"roles" validate:"required,min=1,dive"`
}

// RoleColumn binds one spreadsheet column to a service type label.
// ValidRows optionally restricts the 1-based sheet rows the column is read for.
type RoleColumn struct {
	Key         string    `yaml:"key" validate:"required"`
	ServiceType string    `yaml:"service_type" validate:"required"`
	ValidRows   *RowRange `yaml:"valid_rows,omitempty"`
}

// RowRange is an inclusive window of sheet rows; zero bounds are open.
type RowRange struct {
	From int `yaml:"from" validate:"gte=0"`
	To   int `yaml:"to" validate:"gte=0"`
}

// Contains reports whether the 1-based row number falls inside the window
func (r *RowRange) Contains(row int) bool {
	if r == nil {
		return true
	}
	if r.From > 0 && row < r.From {
		return false
	}
	if r.To > 0 && row > r.To {
		return false
	}
	return true
}

type StorageConfig struct {
	DuckDBPath string `yaml:"duckdb_path"`
}

// StatsConfig controls the reporting views
type StatsConfig struct {
	// Only these service types are shown in reporting views; empty means all
	IncludeServiceTypes []string `yaml:"include_service_types"`

	// Monthly service counts that separate activity levels
	ActivityThresholds struct {
		High   int `yaml:"high"`
		Medium int `yaml:"medium"`
	} `yaml:"activity_thresholds"`
}

// AuthConfig points at the credential files used by the Sheets client
type AuthConfig struct {
	ServiceAccountFile string `yaml:"service_account_file"`
	ClientSecretFile   string `yaml:"client_secret_file"`
	TokenFile          string `yaml:"token_file"`
	UseDefault         bool   `yaml:"use_default_credentials"`
	Interactive        bool   `yaml:"interactive"`
	RedirectPort       int    `yaml:"redirect_port" validate:"gte=0,lte=65535"`
}

// SourceConfig selects where raw rows come from
type SourceConfig struct {
	Kind               string `yaml:"kind" validate:"omitempty,oneof=sheets xlsx"`
	WorkbookPath       string `yaml:"workbook_path"`
	SnapshotFile       string `yaml:"snapshot_file"`
	FallbackToSnapshot bool   `yaml:"fallback_to_snapshot"`
}

type IngestConfig struct {
	// Zero disables the scheduler, refreshes are then manual only
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type VolunteersConfig struct {
	// alias -> canonical volunteer name
	Aliases map[string]string `yaml:"aliases"`
}

type ForecastConfig struct {
	AnalysisWeeks   int     `yaml:"analysis_weeks" validate:"gte=0"`
	ForecastWeeks   int     `yaml:"forecast_weeks" validate:"gte=0"`
	ConfidenceLevel float64 `yaml:"confidence_level" validate:"gte=0,lt=1"`
	MinR2Threshold  float64 `yaml:"min_r2" validate:"gte=0,lte=1"`
}

type RankConfig struct {
	DampingFactor      float64 `yaml:"damping_factor" validate:"gte=0,lt=1"`
	MaxIterations      int     `yaml:"max_iterations" validate:"gte=0"`
	ConvergenceEpsilon float64 `yaml:"convergence_epsilon" validate:"gte=0"`
	LookbackMonths     int     `yaml:"lookback_months" validate:"gte=0"`
}

// Default values
var (
	DefaultRangeEnd       = "U"
	DefaultDuckDBPath     = "data/ministry.duckdb"
	DefaultTokenFile      = "configs/token.json"
	DefaultClientSecret   = "configs/client_secret.json"
	DefaultServiceAccount = "configs/service_account.json"
	DefaultSnapshotFile   = "data/sheet_snapshot.bin"
	DefaultRedirectPort   = 8085
)

// Load reads, defaults and validates the YAML configuration at path
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document into a validated Config
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	cfg.Auth.Interactive = true
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Columns.Date = strings.ToUpper(strings.TrimSpace(c.Columns.Date))
	if c.Columns.RangeEnd == "" {
		c.Columns.RangeEnd = DefaultRangeEnd
	}
	c.Columns.RangeEnd = strings.ToUpper(strings.TrimSpace(c.Columns.RangeEnd))
	for i := range c.Columns.Roles {
		c.Columns.Roles[i].Key = strings.ToUpper(strings.TrimSpace(c.Columns.Roles[i].Key))
		c.Columns.Roles[i].ServiceType = strings.TrimSpace(c.Columns.Roles[i].ServiceType)
	}
	if c.Storage.DuckDBPath == "" {
		c.Storage.DuckDBPath = DefaultDuckDBPath
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = DefaultTokenFile
	}
	if c.Auth.ClientSecretFile == "" {
		c.Auth.ClientSecretFile = DefaultClientSecret
	}
	if c.Auth.ServiceAccountFile == "" {
		c.Auth.ServiceAccountFile = DefaultServiceAccount
	}
	if c.Auth.RedirectPort == 0 {
		c.Auth.RedirectPort = DefaultRedirectPort
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "sheets"
	}
	if c.Source.SnapshotFile == "" {
		c.Source.SnapshotFile = DefaultSnapshotFile
	}

	// 4+ services a month is "high", 2-3 "medium", 1 "low"
	if c.Stats.ActivityThresholds.High == 0 {
		c.Stats.ActivityThresholds.High = 4
	}
	if c.Stats.ActivityThresholds.Medium == 0 {
		c.Stats.ActivityThresholds.Medium = 2
	}

	if c.Forecast.AnalysisWeeks == 0 {
		c.Forecast.AnalysisWeeks = 26
	}
	if c.Forecast.ForecastWeeks == 0 {
		c.Forecast.ForecastWeeks = 8
	}
	if c.Forecast.ConfidenceLevel == 0 {
		c.Forecast.ConfidenceLevel = 0.95
	}
	if c.Forecast.MinR2Threshold == 0 {
		c.Forecast.MinR2Threshold = 0.30
	}

	if c.Rank.DampingFactor == 0 {
		c.Rank.DampingFactor = 0.85
	}
	if c.Rank.MaxIterations == 0 {
		c.Rank.MaxIterations = 100
	}
	if c.Rank.ConvergenceEpsilon == 0 {
		c.Rank.ConvergenceEpsilon = 0.0001
	}
	if c.Rank.LookbackMonths == 0 {
		c.Rank.LookbackMonths = 12
	}
}

var validate = validator.New()

// Validate checks struct tags and the column layout
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dateIdx, err := ColumnIndex(c.Columns.Date)
	if err != nil {
		return fmt.Errorf("invalid config: columns.date: %w", err)
	}
	endIdx, err := ColumnIndex(c.Columns.RangeEnd)
	if err != nil {
		return fmt.Errorf("invalid config: columns.range_end: %w", err)
	}
	if dateIdx > endIdx {
		return fmt.Errorf("invalid config: date column %s is outside range A:%s", c.Columns.Date, c.Columns.RangeEnd)
	}

	seen := make(map[string]bool, len(c.Columns.Roles))
	for _, role := range c.Columns.Roles {
		idx, err := ColumnIndex(role.Key)
		if err != nil {
			return fmt.Errorf("invalid config: role %q: %w", role.ServiceType, err)
		}
		if idx > endIdx {
			return fmt.Errorf("invalid config: role column %s is outside range A:%s", role.Key, c.Columns.RangeEnd)
		}
		if idx == dateIdx {
			return fmt.Errorf("invalid config: role column %s is the date column", role.Key)
		}
		if seen[role.Key] {
			return fmt.Errorf("invalid config: role column %s configured twice", role.Key)
		}
		seen[role.Key] = true
		if role.ValidRows != nil && role.ValidRows.To > 0 && role.ValidRows.From > role.ValidRows.To {
			return fmt.Errorf("invalid config: role %q has valid_rows.from > valid_rows.to", role.ServiceType)
		}
	}

	if c.Source.Kind == "xlsx" && c.Source.WorkbookPath == "" {
		return fmt.Errorf("invalid config: source.workbook_path is required for xlsx source")
	}
	return nil
}

// ServiceTypes returns the configured role labels in column order
func (c *Config) ServiceTypes() []string {
	types := make([]string, 0, len(c.Columns.Roles))
	seen := make(map[string]bool)
	for _, r := range c.Columns.Roles {
		if seen[r.ServiceType] {
			continue
		}
		seen[r.ServiceType] = true
		types = append(types, r.ServiceType)
	}
	return types
}

// RangeA1 returns the sheet range read from the spreadsheet, e.g. "Sheet1!A:U"
func (c *Config) RangeA1() string {
	return fmt.Sprintf("%s!A:%s", c.SheetName, c.Columns.RangeEnd)
}

// ColumnIndex converts a column letter ("A", "U", "AB") to a 0-based index
func ColumnIndex(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, fmt.Errorf("empty column letter")
	}
	idx := 0
	for _, ch := range letters {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", letters)
		}
		idx = idx*26 + int(ch-'A'+1)
	}
	return idx - 1, nil
}
