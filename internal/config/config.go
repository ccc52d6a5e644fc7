// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server, logging,
// database, chat transport, scheduler, cache and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "payroll-approval-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// VKConfig holds the chat platform credentials and send limits.
type VKConfig struct {
	Token          string        // VK_TOKEN (community access token)
	GroupID        int64         // VK_GROUP_ID
	APIVersion     string        // VK_API_VERSION
	APIURL         string        // VK_API_URL
	Confirmation   string        // VK_CONFIRMATION (Callback API handshake string)
	Secret         string        // VK_SECRET (Callback API secret)
	SendRPS        float64       // VK_SEND_RPS
	MaxRetries     int           // SEND_MAX_RETRIES
	RetryDelay     time.Duration // SEND_RETRY_DELAY
	SendTimeout    time.Duration // SEND_TIMEOUT
	MaxMessageRune int           // MAX_MESSAGE_RUNES
	ListPageSize   int           // LIST_PAGE_SIZE
}

// SchedulerConfig holds the lifecycle timings.
type SchedulerConfig struct {
	RetentionWindow   time.Duration // RETENTION_WINDOW
	WarningLead       time.Duration // WARNING_LEAD
	WarningHalfWindow time.Duration // WARNING_HALF_WINDOW
	WarningSendGap    time.Duration // WARNING_SEND_GAP
	Interval          time.Duration // SCHEDULER_INTERVAL
	PollInterval      time.Duration // POLL_INTERVAL
	AnnounceGap       time.Duration // ANNOUNCE_GAP
}

// CacheConfig bounds the in-memory record cache and the CSV cache.
type CacheConfig struct {
	MaxEntries      int           // CACHE_MAX_ENTRIES
	MaxLastOpened   int           // CACHE_MAX_LAST_OPENED
	CleanupInterval time.Duration // CACHE_CLEANUP_INTERVAL
	CSVTTL          time.Duration // CSV_CACHE_TTL
	CSVExpiry       time.Duration // CSV_CACHE_EXPIRY
}

// HostingConfig locates published and archived batches on disk.
type HostingConfig struct {
	Root       string // HOSTING_ROOT
	OpenDir    string // OPEN_DIRNAME
	ArchiveDir string // ARCHIVE_DIRNAME
	RulesPath  string // RULES_PATH (optional YAML)
}

// SheetsConfig configures the Google Sheets complaint sink. The sink is off
// when CredentialsFile or SpreadsheetID is empty.
type SheetsConfig struct {
	CredentialsFile    string // SHEETS_CREDENTIALS_FILE
	SpreadsheetID      string // SHEETS_SPREADSHEET_ID
	TutorSpreadsheetID string // SHEETS_TUTOR_SPREADSHEET_ID
	Range              string // SHEETS_RANGE
}

// Enabled reports whether the sheet sink should be constructed.
func (s SheetsConfig) Enabled() bool {
	return strings.TrimSpace(s.CredentialsFile) != "" && strings.TrimSpace(s.SpreadsheetID) != ""
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for admin API routes
	AdminToken     string // ADMIN_TOKEN; admin API disabled when empty

	// App
	DBPath string // SQLite path

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Event loop
	InboxSize     int           // INBOX_SIZE
	EventTimeout  time.Duration // EVENT_TIMEOUT
	EventDedupTTL time.Duration // EVENT_DEDUP_TTL

	VK        VKConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	Hosting   HostingConfig
	Sheets    SheetsConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		AdminToken:     getenv("ADMIN_TOKEN", ""),

		// App
		DBPath: getenv("DB_PATH", "hosting.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Event loop
		InboxSize:     getint("INBOX_SIZE", 1024),
		EventTimeout:  getdur("EVENT_TIMEOUT", 30*time.Second),
		EventDedupTTL: getdur("EVENT_DEDUP_TTL", 24*time.Hour),

		VK: VKConfig{
			Token:          getenv("VK_TOKEN", ""),
			GroupID:        int64(getint("VK_GROUP_ID", 0)),
			APIVersion:     getenv("VK_API_VERSION", "5.199"),
			APIURL:         strings.TrimRight(getenv("VK_API_URL", "https://api.vk.com/method"), "/"),
			Confirmation:   getenv("VK_CONFIRMATION", ""),
			Secret:         getenv("VK_SECRET", ""),
			SendRPS:        getfloat("VK_SEND_RPS", 15),
			MaxRetries:     getint("SEND_MAX_RETRIES", 3),
			RetryDelay:     getdur("SEND_RETRY_DELAY", time.Second),
			SendTimeout:    getdur("SEND_TIMEOUT", 10*time.Second),
			MaxMessageRune: getint("MAX_MESSAGE_RUNES", 3800),
			ListPageSize:   getint("LIST_PAGE_SIZE", 5),
		},

		Scheduler: SchedulerConfig{
			RetentionWindow:   getdur("RETENTION_WINDOW", 36*time.Hour),
			WarningLead:       getdur("WARNING_LEAD", 8*time.Hour),
			WarningHalfWindow: getdur("WARNING_HALF_WINDOW", 30*time.Minute),
			WarningSendGap:    getdur("WARNING_SEND_GAP", 2*time.Second),
			Interval:          getdur("SCHEDULER_INTERVAL", 30*time.Minute),
			PollInterval:      getdur("POLL_INTERVAL", 5*time.Second),
			AnnounceGap:       getdur("ANNOUNCE_GAP", 350*time.Millisecond),
		},

		Cache: CacheConfig{
			MaxEntries:      getint("CACHE_MAX_ENTRIES", 50000),
			MaxLastOpened:   getint("CACHE_MAX_LAST_OPENED", 20000),
			CleanupInterval: getdur("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			CSVTTL:          getdur("CSV_CACHE_TTL", 5*time.Minute),
			CSVExpiry:       getdur("CSV_CACHE_EXPIRY", time.Hour),
		},

		Hosting: HostingConfig{
			Root:       getenv("HOSTING_ROOT", "hosting"),
			OpenDir:    getenv("OPEN_DIRNAME", "open"),
			ArchiveDir: getenv("ARCHIVE_DIRNAME", "archive"),
			RulesPath:  getenv("RULES_PATH", ""),
		},

		Sheets: SheetsConfig{
			CredentialsFile:    getenv("SHEETS_CREDENTIALS_FILE", ""),
			SpreadsheetID:      getenv("SHEETS_SPREADSHEET_ID", ""),
			TutorSpreadsheetID: getenv("SHEETS_TUTOR_SPREADSHEET_ID", ""),
			Range:              getenv("SHEETS_RANGE", "Sheet1!A:G"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "payroll-approval-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.VK.ListPageSize > 10 {
		cfg.VK.ListPageSize = 10 // inline keyboards hold at most 10 rows
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.InboxSize < 1 {
		return cfg, errors.New("INBOX_SIZE must be >= 1")
	}
	if cfg.EventTimeout <= 0 || cfg.EventDedupTTL <= 0 {
		return cfg, errors.New("EVENT_TIMEOUT and EVENT_DEDUP_TTL must be > 0")
	}
	if cfg.VK.SendRPS <= 0 {
		return cfg, errors.New("VK_SEND_RPS must be > 0")
	}
	if cfg.VK.MaxRetries < 0 {
		return cfg, errors.New("SEND_MAX_RETRIES must be >= 0")
	}
	if cfg.VK.RetryDelay < 0 || cfg.VK.SendTimeout <= 0 {
		return cfg, errors.New("SEND_RETRY_DELAY must be >= 0 and SEND_TIMEOUT > 0")
	}
	if cfg.VK.MaxMessageRune < 100 {
		return cfg, errors.New("MAX_MESSAGE_RUNES must be >= 100")
	}
	if cfg.VK.ListPageSize < 1 {
		return cfg, errors.New("LIST_PAGE_SIZE must be >= 1")
	}
	s := cfg.Scheduler
	if s.RetentionWindow <= 0 || s.Interval <= 0 || s.PollInterval <= 0 {
		return cfg, errors.New("RETENTION_WINDOW, SCHEDULER_INTERVAL and POLL_INTERVAL must be > 0")
	}
	if s.WarningLead <= 0 || s.WarningLead >= s.RetentionWindow {
		return cfg, errors.New("WARNING_LEAD must be > 0 and shorter than RETENTION_WINDOW")
	}
	if s.WarningHalfWindow <= 0 || s.WarningSendGap < 0 || s.AnnounceGap < 0 {
		return cfg, errors.New("WARNING_HALF_WINDOW must be > 0; send gaps must be >= 0")
	}
	if cfg.Cache.MaxEntries < 1 || cfg.Cache.MaxLastOpened < 1 {
		return cfg, errors.New("CACHE_MAX_ENTRIES and CACHE_MAX_LAST_OPENED must be >= 1")
	}
	if cfg.Cache.CleanupInterval <= 0 || cfg.Cache.CSVTTL <= 0 || cfg.Cache.CSVExpiry <= 0 {
		return cfg, errors.New("cache intervals must be positive durations")
	}
	if strings.TrimSpace(cfg.Hosting.Root) == "" || strings.TrimSpace(cfg.Hosting.OpenDir) == "" || strings.TrimSpace(cfg.Hosting.ArchiveDir) == "" {
		return cfg, errors.New("HOSTING_ROOT, OPEN_DIRNAME and ARCHIVE_DIRNAME must not be empty")
	}
	if cfg.Hosting.OpenDir == cfg.Hosting.ArchiveDir {
		return cfg, errors.New("OPEN_DIRNAME and ARCHIVE_DIRNAME must differ")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
