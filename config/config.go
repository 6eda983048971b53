package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhcgn/mail-export/filter"
)

var (
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidDate      = errors.New("invalid date, use YYYY-MM-DD")
)

const (
	CryptNone     = "none"
	CryptStartTLS = "starttls"
	CryptSSL      = "ssl"

	DateLayout = "2006-01-02"

	defaultEnvFile   = ".env"
	defaultExportDir = "./export"
	sslPort          = 993
	plainPort        = 143
)

// envKeys are the settings that may also come from the environment or the
// .env file, under the upper-case name with dashes as underscores.
var envKeys = []string{
	"mailhost", "mailport", "crypt", "username", "password",
	"sender", "recipient", "keywords", "start-date", "end-date",
}

var pdfBackends = []string{"auto", "chrome", "wkhtmltopdf", "fpdf", "none"}

// Config captures one export run.
type Config struct {
	Host               string
	Port               int
	Crypt              string
	Username           string
	Password           string
	InsecureSkipVerify bool

	Sender        string
	Recipient     string
	Keywords      string
	StartDate     time.Time
	EndDate       time.Time
	CaseSensitive bool
	AllFolders    bool

	MboxPath   string
	ExportDir  string
	PDFBackend string

	Verbose    bool
	LogLevel   string
	LogDir     string
	NoProgress bool
	EnvFile    string
}

// Criteria returns the match criteria of the run.
func (c Config) Criteria() filter.Criteria {
	return filter.Criteria{
		Sender:        c.Sender,
		Recipient:     c.Recipient,
		Keywords:      c.Keywords,
		Start:         c.StartDate,
		End:           c.EndDate,
		CaseSensitive: c.CaseSensitive,
	}
}

// Offline reports whether messages come from an mbox source.
func (c Config) Offline() bool {
	return c.MboxPath != ""
}

// RegisterFlags attaches all CLI flags to cmd. They are persistent so
// subcommands share them.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("mailhost", "", "IMAP server hostname (env MAILHOST)")
	flags.Int("mailport", 0, "IMAP server port, default 993 for ssl else 143 (env MAILPORT)")
	flags.String("crypt", "", "Connection security: none, starttls, ssl; default ssl on port 993 else starttls (env CRYPT)")
	flags.String("username", "", "IMAP username (env USERNAME)")
	flags.String("password", "", "IMAP password (env PASSWORD)")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")

	flags.String("sender", "", "Filter by sender, substring match (env SENDER)")
	flags.String("recipient", "", "Filter by To/Cc/Bcc, substring match (env RECIPIENT)")
	flags.String("keywords", "", "Search keywords in subject and body (env KEYWORDS)")
	flags.String("start-date", "", "Start date YYYY-MM-DD, inclusive (env START_DATE)")
	flags.String("end-date", "", "End date YYYY-MM-DD, inclusive (env END_DATE)")
	flags.Bool("case-sensitive", false, "Enable case-sensitive matching")
	flags.Bool("all-folders", false, "Search every folder instead of only INBOX")

	flags.String("mbox", "", "Read messages from an mbox file or a directory of .mbox files instead of IMAP")
	flags.String("export-dir", defaultExportDir, "Export directory")
	flags.String("pdf-backend", "auto", "PDF backend: "+strings.Join(pdfBackends, ", "))

	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files; empty logs to stdout only")
	flags.Bool("no-progress", false, "Disable the progress bar")
	flags.String("env", defaultEnvFile, "Path to .env file")
}

// LoadConfig merges flags, environment and the .env file into a validated
// Config. An explicitly set flag wins over the environment, which wins
// over the .env file.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	envFile := v.GetString("env")
	if err := loadEnvFile(v, envFile, cmd.Flags().Changed("env")); err != nil {
		return Config{}, err
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	port, err := parsePort(v.GetString("mailport"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Host:               strings.TrimSpace(v.GetString("mailhost")),
		Port:               port,
		Crypt:              strings.ToLower(strings.TrimSpace(v.GetString("crypt"))),
		Username:           v.GetString("username"),
		Password:           v.GetString("password"),
		InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		Sender:             v.GetString("sender"),
		Recipient:          v.GetString("recipient"),
		Keywords:           v.GetString("keywords"),
		CaseSensitive:      v.GetBool("case-sensitive"),
		AllFolders:         v.GetBool("all-folders"),
		MboxPath:           strings.TrimSpace(v.GetString("mbox")),
		ExportDir:          filepath.Clean(v.GetString("export-dir")),
		PDFBackend:         strings.ToLower(strings.TrimSpace(v.GetString("pdf-backend"))),
		Verbose:            v.GetBool("verbose"),
		LogLevel:           strings.ToLower(v.GetString("log-level")),
		LogDir:             v.GetString("log-dir"),
		NoProgress:         v.GetBool("no-progress"),
		EnvFile:            envFile,
	}

	if cfg.StartDate, err = parseDate("start-date", v.GetString("start-date")); err != nil {
		return Config{}, err
	}
	if cfg.EndDate, err = parseDate("end-date", v.GetString("end-date")); err != nil {
		return Config{}, err
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	applyConnectionDefaults(&cfg)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFile makes the dotenv file the lowest-priority source for the
// env-capable keys. A missing default file is not an error.
func loadEnvFile(v *viper.Viper, path string, explicit bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}

	for _, key := range envKeys {
		name := strings.ReplaceAll(key, "-", "_")
		if file.IsSet(name) && file.GetString(name) != "" {
			v.SetDefault(key, file.GetString(name))
		}
	}
	return nil
}

// applyConnectionDefaults infers port from security mode and security mode
// from port.
func applyConnectionDefaults(cfg *Config) {
	if cfg.Port == 0 {
		if cfg.Crypt == CryptSSL {
			cfg.Port = sslPort
		} else {
			cfg.Port = plainPort
		}
	}
	if cfg.Crypt == "" {
		if cfg.Port == sslPort {
			cfg.Crypt = CryptSSL
		} else {
			cfg.Crypt = CryptStartTLS
		}
	}
}

func validateConfig(cfg Config) error {
	if !cfg.Offline() {
		var missing []string
		if cfg.Host == "" {
			missing = append(missing, "mailhost")
		}
		if cfg.Username == "" {
			missing = append(missing, "username")
		}
		if cfg.Password == "" {
			missing = append(missing, "password")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("--mailport must be between 1 and 65535")
	}

	switch cfg.Crypt {
	case CryptNone, CryptStartTLS, CryptSSL:
	default:
		return fmt.Errorf("invalid --crypt: %s", cfg.Crypt)
	}

	if !cfg.StartDate.IsZero() && !cfg.EndDate.IsZero() && cfg.EndDate.Before(cfg.StartDate) {
		return fmt.Errorf("%w: end-date %s is before start-date %s", ErrInvalidDate,
			cfg.EndDate.Format(DateLayout), cfg.StartDate.Format(DateLayout))
	}

	valid := false
	for _, b := range pdfBackends {
		if cfg.PDFBackend == b {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid --pdf-backend: %s", cfg.PDFBackend)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	if strings.TrimSpace(cfg.ExportDir) == "" {
		return fmt.Errorf("--export-dir must not be empty")
	}

	return nil
}

func parseDate(name, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q", ErrInvalidDate, name, value)
	}
	return t, nil
}

func parsePort(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --mailport %q: %w", value, err)
	}
	return port, nil
}
