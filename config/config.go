package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"monitor-pricewatch/models"
)

// DefaultUserAgent is sent with every outbound request unless overridden
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config is the full application configuration
type Config struct {
	DataDir   string        `yaml:"data_dir"`
	UserAgent string        `yaml:"user_agent"`
	Delay     time.Duration `yaml:"delay"`
	Timeout   time.Duration `yaml:"timeout"`
	Schedule  string        `yaml:"schedule"`

	Index      IndexConfig      `yaml:"index"`
	Retailers  []RetailerConfig `yaml:"retailers"`
	Thresholds ThresholdConfig  `yaml:"thresholds"`
	Report     ReportConfig     `yaml:"report"`
	Suggest    SuggestConfig    `yaml:"suggest"`
	Database   DatabaseConfig   `yaml:"database"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Log        LogConfig        `yaml:"log"`
}

// IndexConfig describes the hand-maintained cross-retailer index file
type IndexConfig struct {
	Path               string `yaml:"path"`
	ManufacturerColumn string `yaml:"manufacturer_column"`
}

// RetailerConfig describes how to scrape and join one retailer
type RetailerConfig struct {
	Name             string      `yaml:"name"`
	Role             models.Role `yaml:"role"`
	Parser           string      `yaml:"parser"`  // dell, newegg, bestbuy
	Fetcher          string      `yaml:"fetcher"` // colly, rod, resty
	URL              string      `yaml:"url"`
	PageParam        string      `yaml:"page_param"`
	PageSize         int         `yaml:"page_size"`
	SnapshotPrefix   string      `yaml:"snapshot_prefix"`
	IndexColumn      string      `yaml:"index_column"`
	JoinOn           string      `yaml:"join_on"` // name or sku; manufacturer only
	LinkBase         string      `yaml:"link_base"`
	Denylist         []string    `yaml:"denylist"`
	CloudflareBypass bool        `yaml:"cloudflare_bypass"`
}

// ThresholdConfig holds the compliance classification bounds
type ThresholdConfig struct {
	NonCompliantBelow float64 `yaml:"non_compliant_below"`
}

// ReportConfig toggles the optional report outputs
type ReportConfig struct {
	XLSX         bool `yaml:"xlsx"`
	Console      bool `yaml:"console"`
	TopOffenders int  `yaml:"top_offenders"`
}

// SuggestConfig tunes index suggestions
type SuggestConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// DatabaseConfig enables the run history database when URL is set
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	URL    string `yaml:"url"`
}

// SheetsConfig enables publishing to Google Sheets when SpreadsheetURL is set
type SheetsConfig struct {
	SpreadsheetURL  string `yaml:"spreadsheet_url"`
	CredentialsPath string `yaml:"credentials_path"`
}

// TelegramConfig enables the summary notification when both fields are set
type TelegramConfig struct {
	ChatID int64  `yaml:"chat_id"`
	Token  string `yaml:"-"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DefaultDenylist rejects refurbished stock, accessories and non-monitor hardware
var DefaultDenylist = []string{
	"refurbished", "open box", "charger", "adapter",
	"battery", "sleeve", "case", "cable", "custom", "briefcase",
	"stand", "lock", "keyboard", "fan", "jack", "drive", "desktop", "windows", "processor",
	"laptop", "printer", "projector", "tablet", "television",
	"compatible", "module",
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetDefaultConfig returns a default configuration scraping Dell, Best Buy and Newegg Canada
func GetDefaultConfig() *Config {
	return &Config{
		DataDir:   "data",
		UserAgent: DefaultUserAgent,
		Delay:     time.Second,
		Timeout:   30 * time.Second,
		Schedule:  "0 0 * * *",
		Index: IndexConfig{
			Path:               "index.csv",
			ManufacturerColumn: "Dell_product",
		},
		Retailers: []RetailerConfig{
			{
				Name:           "dell",
				Role:           models.RoleManufacturer,
				Parser:         "dell",
				Fetcher:        "colly",
				URL:            "https://www.dell.com/en-ca/search/monitor?p=1&t=Product",
				PageParam:      "p",
				PageSize:       12,
				SnapshotPrefix: "official_dell_monitor",
				JoinOn:         "name",
				LinkBase:       "https://www.dell.com",
				Denylist:       DefaultDenylist,
			},
			{
				Name:           "bestbuy",
				Role:           models.RoleReseller,
				Parser:         "bestbuy",
				Fetcher:        "resty",
				URL:            "https://www.bestbuy.ca/api/v2/json/search?category=monitors&condition=new&query=dell+monitor",
				PageParam:      "page",
				PageSize:       24,
				SnapshotPrefix: "bestbuy_dell_monitor",
				IndexColumn:    "Bestbuy_sku",
				LinkBase:       "https://www.bestbuy.ca/en-ca/product/",
				Denylist:       DefaultDenylist,
			},
			{
				Name:           "newegg",
				Role:           models.RoleReseller,
				Parser:         "newegg",
				Fetcher:        "colly",
				URL:            "https://www.newegg.ca/p/pl?d=monitor+dell&page=1",
				PageParam:      "page",
				PageSize:       36,
				SnapshotPrefix: "newegg_dell_monitor",
				IndexColumn:    "Newegg_sku",
				LinkBase:       "https://www.newegg.ca",
			},
		},
		Thresholds: ThresholdConfig{NonCompliantBelow: -10},
		Report: ReportConfig{
			XLSX:         true,
			Console:      true,
			TopOffenders: 5,
		},
		Suggest: SuggestConfig{Threshold: 0.85},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyEnv overrides secrets and deployment settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if c.Database.URL != "" && c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PRICEWATCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// Validate checks the retailer set and enumerations
func (c *Config) Validate() error {
	var errs []error

	manufacturers := 0
	seen := make(map[string]bool)
	for _, r := range c.Retailers {
		if r.Name == "" {
			errs = append(errs, errors.New("retailer without a name"))
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("duplicate retailer %q", r.Name))
		}
		seen[r.Name] = true

		switch r.Role {
		case models.RoleManufacturer:
			manufacturers++
			if r.JoinOn != "name" && r.JoinOn != "sku" {
				errs = append(errs, fmt.Errorf("retailer %q: join_on must be name or sku, got %q", r.Name, r.JoinOn))
			}
		case models.RoleReseller:
			if r.IndexColumn == "" {
				errs = append(errs, fmt.Errorf("retailer %q: index_column is required for resellers", r.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("retailer %q: unknown role %q", r.Name, r.Role))
		}

		switch r.Parser {
		case "dell", "newegg", "bestbuy":
		default:
			errs = append(errs, fmt.Errorf("retailer %q: unknown parser %q", r.Name, r.Parser))
		}
		switch r.Fetcher {
		case "colly", "rod", "resty":
		default:
			errs = append(errs, fmt.Errorf("retailer %q: unknown fetcher %q", r.Name, r.Fetcher))
		}
		if r.PageSize <= 0 {
			errs = append(errs, fmt.Errorf("retailer %q: page_size must be positive", r.Name))
		}
		if r.SnapshotPrefix == "" {
			errs = append(errs, fmt.Errorf("retailer %q: snapshot_prefix is required", r.Name))
		}
		if r.URL == "" || r.PageParam == "" {
			errs = append(errs, fmt.Errorf("retailer %q: url and page_param are required", r.Name))
		}
	}
	if manufacturers != 1 {
		errs = append(errs, fmt.Errorf("exactly one manufacturer retailer is required, found %d", manufacturers))
	}

	if c.Index.ManufacturerColumn == "" {
		errs = append(errs, errors.New("index.manufacturer_column is required"))
	}
	if c.Delay <= 0 {
		errs = append(errs, fmt.Errorf("delay must be positive, got %s", c.Delay))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}

// Manufacturer returns the retailer acting as the price baseline
func (c *Config) Manufacturer() RetailerConfig {
	for _, r := range c.Retailers {
		if r.Role == models.RoleManufacturer {
			return r
		}
	}
	return RetailerConfig{}
}

// Resellers returns every non-manufacturer retailer in configuration order
func (c *Config) Resellers() []RetailerConfig {
	var out []RetailerConfig
	for _, r := range c.Retailers {
		if r.Role == models.RoleReseller {
			out = append(out, r)
		}
	}
	return out
}

// Retailer looks up a retailer by name
func (c *Config) Retailer(name string) (RetailerConfig, bool) {
	for _, r := range c.Retailers {
		if r.Name == name {
			return r, true
		}
	}
	return RetailerConfig{}, false
}
