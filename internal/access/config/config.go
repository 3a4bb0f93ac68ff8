package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "WBA_"

// ConfigFileEnv names an optional YAML, JSON or TOML file loaded between
// the defaults and the environment.
const ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

// AppConfig holds configuration values for the whitelist access service.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// WhitelistFile is the SURT prefix file to load.
	WhitelistFile string `koanf:"whitelist_file" validate:"required"`

	// CheckInterval is the number of seconds between mod-time checks. 0 disables the schedule.
	CheckInterval uint `koanf:"check_interval"`

	// Canonicalizer selects the default URL canonicalizer.
	Canonicalizer string `koanf:"canonicalizer" validate:"required,oneof=aggressive surt"`

	// Watch reloads on file-system events in addition to the schedule.
	Watch bool `koanf:"watch"`

	// SnapshotDB is an optional bbolt file holding the last good whitelist.
	SnapshotDB string `koanf:"snapshot_db"`

	// BloomFPRate is the false-positive target of the snapshot pre-filter.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`

	// MetricsAddr is the host:port serving /metrics. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,listen_addr"`
}

// Interval returns CheckInterval as a duration.
func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// DEFAULT_APP_CONFIG defines the default settings: an aggressive
// canonicalizer, no schedule, no watcher, no persistence and no metrics.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:           "prod",
	LogLevel:      "info",
	WhitelistFile: "/etc/wb-access/whitelist.txt",
	CheckInterval: 0,
	Canonicalizer: "aggressive",
	Watch:         false,
	SnapshotDB:    "",
	BloomFPRate:   0.01,
	MetricsAddr:   "",
}

// validListenAddr accepts "host:port" or ":port" with a port in 1..65535.
// A non-empty host must be an IP address or a hostname without spaces.
func validListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " /") {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "WBA_", lowercased
// and without the prefix. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads the file named by WBA_CONFIG_FILE, if any. The parser
// is chosen by extension.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if path == "" {
		return nil
	}
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file type %q", path)
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers the "listen_addr" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load builds an AppConfig from defaults, the optional config file and
// environment variables, in that order, and validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = fileLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
