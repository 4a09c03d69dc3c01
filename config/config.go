package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Invoice    InvoiceConfig    `mapstructure:"invoice"`
	Magazine   MagazineConfig   `mapstructure:"magazine"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Duplicates DuplicatesConfig `mapstructure:"duplicates"`
	Retail     RetailConfig     `mapstructure:"retail"`
	Sales      SalesConfig      `mapstructure:"sales"`
	Store      StoreConfig      `mapstructure:"store"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CacheConfig holds lookup cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// CatalogConfig locates the master product table
type CatalogConfig struct {
	Path       string  `mapstructure:"path"`
	Sheet      string  `mapstructure:"sheet"`
	IDColumn   string  `mapstructure:"id_column"`
	NameColumn string  `mapstructure:"name_column"`
	Threshold  float64 `mapstructure:"threshold"` // API lookups
}

// NormalizerConfig holds text normalizer settings
type NormalizerConfig struct {
	// AbbreviationsPath points to a YAML abbreviation table; empty uses the built-in one
	AbbreviationsPath string `mapstructure:"abbreviations_path"`
}

// InvoiceConfig holds the invoice import pipeline settings
type InvoiceConfig struct {
	Dir               string  `mapstructure:"dir"`
	Pattern           string  `mapstructure:"pattern"`
	DescriptionColumn string  `mapstructure:"description_column"`
	Threshold         float64 `mapstructure:"threshold"`
	CodePrefix        string  `mapstructure:"code_prefix"`
	Client            string  `mapstructure:"client"`
	MovementType      string  `mapstructure:"movement_type"`
	Notes             string  `mapstructure:"notes"`
	Status            string  `mapstructure:"status"`
	PaymentMethod     string  `mapstructure:"payment_method"`
	MovementSheet     string  `mapstructure:"movement_sheet"`
	ReportPath        string  `mapstructure:"report_path"`
	OutputPath        string  `mapstructure:"output_path"`
}

// MagazineConfig holds the magazine catalog pipeline settings
type MagazineConfig struct {
	CSVPath         string  `mapstructure:"csv_path"`
	Delimiter       string  `mapstructure:"delimiter"`
	Threshold       float64 `mapstructure:"threshold"`
	ReportPath      string  `mapstructure:"report_path"`
	ReportDelimiter string  `mapstructure:"report_delimiter"`
	OutputPath      string  `mapstructure:"output_path"`
}

// MergeConfig holds the workbook merge settings
type MergeConfig struct {
	UpdatedPath  string `mapstructure:"updated_path"`
	UpdatedSheet string `mapstructure:"updated_sheet"`
	OutputPath   string `mapstructure:"output_path"`
}

// DuplicatesConfig holds the duplicate identifier pass settings
type DuplicatesConfig struct {
	OutputPath string `mapstructure:"output_path"`
}

// RetailConfig holds the retailer lookup settings
type RetailConfig struct {
	BaseURL           string             `mapstructure:"base_url"`
	SearchPath        string             `mapstructure:"search_path"`
	TitleSelector     string             `mapstructure:"title_selector"`
	CodePattern       string             `mapstructure:"code_pattern"`
	Threshold         float64            `mapstructure:"threshold"`
	RequestsPerSecond float64            `mapstructure:"requests_per_second"`
	PauseEvery        int                `mapstructure:"pause_every"`
	PreSearchPause    PauseRange         `mapstructure:"pre_search_pause"`
	BetweenPause      PauseRange         `mapstructure:"between_pause"`
	LongPause         PauseRange         `mapstructure:"long_pause"`
	ReloadPause       PauseRange         `mapstructure:"reload_pause"`
	BlockBackoff      PauseRange         `mapstructure:"block_backoff"`
	MaxBlockRetries   int                `mapstructure:"max_block_retries"`
	UserAgents        []string           `mapstructure:"user_agents"`
	OutputPath        string             `mapstructure:"output_path"`
	SearchEngine      SearchEngineConfig `mapstructure:"search_engine"`
}

// PauseRange is a randomized wait between Min and Max
type PauseRange struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// SearchEngineConfig holds the search-engine fallback settings
type SearchEngineConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Site    string `mapstructure:"site"`
}

// SalesConfig holds the sales sheet tidy-up settings
type SalesConfig struct {
	Path               string `mapstructure:"path"`
	Sheet              string `mapstructure:"sheet"`
	ObservationsColumn string `mapstructure:"observations_column"`
	SerialPrefix       string `mapstructure:"serial_prefix"`
	OutputPath         string `mapstructure:"output_path"`
}

// StoreConfig holds the run ledger settings
type StoreConfig struct {
	Path string `mapstructure:"path"` // empty disables the ledger
}

// ScheduleConfig holds the server-side scheduled jobs
type ScheduleConfig struct {
	InvoiceCron string `mapstructure:"invoice_cron"`
}

// LoggingConfig holds logging flags
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadWithFlags(nil, nil)
}

// LoadWithFlags loads configuration like Load and lets command-line flags
// override individual keys. bindings maps a config key (e.g. "catalog.path")
// to the flag name that overrides it. A "config" flag, when set, names the
// config file explicitly.
func LoadWithFlags(fs *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/codmatch/")

	// Environment variable settings
	v.SetEnvPrefix("CODMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			v.SetConfigFile(f.Value.String())
		}
		for key, name := range bindings {
			f := fs.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("unknown flag %q bound to %q", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("error binding flag %q: %w", name, err)
			}
		}
	}

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads ./.env into the process environment.
// Existing variables win; a missing file is not an error.
func loadEnvFile() error {
	if err := gotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8501"})

	v.SetDefault("cache.ttl", "24h")

	// Catalog defaults
	v.SetDefault("catalog.path", "dados/BD_Loja.xlsx")
	v.SetDefault("catalog.sheet", "Produtos")
	v.SetDefault("catalog.id_column", "COD")
	v.SetDefault("catalog.name_column", "Produto")
	v.SetDefault("catalog.threshold", 62.0)

	v.SetDefault("normalizer.abbreviations_path", "")

	// Invoice pipeline defaults
	v.SetDefault("invoice.dir", "dados/nf/excel")
	v.SetDefault("invoice.pattern", "nf*.xlsx")
	v.SetDefault("invoice.description_column", "DESCRIÇÃO")
	v.SetDefault("invoice.threshold", 62.0)
	v.SetDefault("invoice.code_prefix", "NATBRA-")
	v.SetDefault("invoice.client", "NATURA")
	v.SetDefault("invoice.movement_type", "ENTRADA")
	v.SetDefault("invoice.notes", "Importação Automática NF")
	v.SetDefault("invoice.status", "PAGO")
	v.SetDefault("invoice.payment_method", "Boleto/Pix")
	v.SetDefault("invoice.movement_sheet", "Movimento")
	v.SetDefault("invoice.report_path", "dados/nf_relacionados.xlsx")
	v.SetDefault("invoice.output_path", "dados/BD_Loja_Atualizado.xlsx")

	// Magazine pipeline defaults
	v.SetDefault("magazine.csv_path", "dados/revista_produtos_codigos_limpos_v2.csv")
	v.SetDefault("magazine.delimiter", ";")
	v.SetDefault("magazine.threshold", 75.0)
	v.SetDefault("magazine.report_path", "dados/relatorio_match_produtos_final_corrigido.csv")
	v.SetDefault("magazine.report_delimiter", ",")
	v.SetDefault("magazine.output_path", "dados/BD_Loja_Produtos_COMCOD_revista.xlsx")

	v.SetDefault("merge.updated_path", "dados/BD_Loja_Produtos_COMCOD_NF.xlsx")
	v.SetDefault("merge.updated_sheet", "Sheet1")
	v.SetDefault("merge.output_path", "dados/BD_Loja_Completado.xlsx")

	v.SetDefault("duplicates.output_path", "dados/BD_Loja_CODIGOS_REPETIDOS_ANULADOS.xlsx")

	// Retailer lookup defaults
	v.SetDefault("retail.base_url", "https://www.natura.com.br")
	v.SetDefault("retail.search_path", "/s/produtos?busca=")
	v.SetDefault("retail.title_selector", "h4.text-wrap.text-ellipsis.line-clamp-2")
	v.SetDefault("retail.code_pattern", `NATBRA-\d+`)
	v.SetDefault("retail.threshold", 54.0)
	v.SetDefault("retail.requests_per_second", 0.5)
	v.SetDefault("retail.pause_every", 60)
	v.SetDefault("retail.pre_search_pause.min", "4200ms")
	v.SetDefault("retail.pre_search_pause.max", "4800ms")
	v.SetDefault("retail.between_pause.min", "5s")
	v.SetDefault("retail.between_pause.max", "6s")
	v.SetDefault("retail.long_pause.min", "60s")
	v.SetDefault("retail.long_pause.max", "180s")
	v.SetDefault("retail.reload_pause.min", "4s")
	v.SetDefault("retail.reload_pause.max", "7s")
	v.SetDefault("retail.block_backoff.min", "180s")
	v.SetDefault("retail.block_backoff.max", "220s")
	v.SetDefault("retail.max_block_retries", 5)
	v.SetDefault("retail.user_agents", []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/122 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120 Safari/537.36",
	})
	v.SetDefault("retail.output_path", "dados/BD_Loja_com_codigos.xlsx")
	v.SetDefault("retail.search_engine.enabled", true)
	v.SetDefault("retail.search_engine.url", "https://www.google.com/search")
	v.SetDefault("retail.search_engine.site", "natura.com.br")

	// Sales sheet defaults
	v.SetDefault("sales.path", "dados/natura.xlsx")
	v.SetDefault("sales.sheet", "Vendas")
	v.SetDefault("sales.observations_column", "Observações")
	v.SetDefault("sales.serial_prefix", "NAT-")
	v.SetDefault("sales.output_path", "dados/natura_FINAL.xlsx")

	v.SetDefault("store.path", "")
	v.SetDefault("schedule.invoice_cron", "")
	v.SetDefault("logging.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	thresholds := map[string]float64{
		"catalog.threshold":  config.Catalog.Threshold,
		"invoice.threshold":  config.Invoice.Threshold,
		"magazine.threshold": config.Magazine.Threshold,
		"retail.threshold":   config.Retail.Threshold,
	}
	for key, t := range thresholds {
		if t < 0 || t > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got: %v", key, t)
		}
	}

	if config.Catalog.NameColumn == "" || config.Catalog.IDColumn == "" {
		return fmt.Errorf("catalog id_column and name_column are required")
	}

	for key, d := range map[string]string{
		"magazine.delimiter":        config.Magazine.Delimiter,
		"magazine.report_delimiter": config.Magazine.ReportDelimiter,
	} {
		if utf8.RuneCountInString(d) != 1 {
			return fmt.Errorf("%s must be a single character, got: %q", key, d)
		}
	}

	pauses := map[string]PauseRange{
		"retail.pre_search_pause": config.Retail.PreSearchPause,
		"retail.between_pause":    config.Retail.BetweenPause,
		"retail.long_pause":       config.Retail.LongPause,
		"retail.reload_pause":     config.Retail.ReloadPause,
		"retail.block_backoff":    config.Retail.BlockBackoff,
	}
	for key, p := range pauses {
		if p.Min < 0 || p.Max < p.Min {
			return fmt.Errorf("%s needs 0 <= min <= max, got: %s..%s", key, p.Min, p.Max)
		}
	}

	if config.Retail.MaxBlockRetries < 0 {
		return fmt.Errorf("retail.max_block_retries cannot be negative")
	}

	if config.Retail.RequestsPerSecond <= 0 {
		return fmt.Errorf("retail.requests_per_second must be positive")
	}

	return nil
}

// Rune returns the first rune of a single-character delimiter setting
func Rune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
