package cli

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/denismitr/ladder"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("ladder configuration is invalid")

type (
	Config struct {
		DatabaseURL string `env:"LADDER_DATABASE_URL"`
		Group       string `env:"LADDER_DATABASE"`
		Root        string `env:"LADDER_ROOT"`
		StateFile   string `env:"LADDER_STATE_FILE"`
		PrintSQL    bool   `env:"LADDER_PRINT_SQL"`
		Debug       bool   `env:"LADDER_DEBUG"`
		NoColor     bool   `env:"LADDER_NO_COLOR"`
	}

	migrations struct {
		DatabaseURL string `yaml:"database_url"`
		Database    string `yaml:"database"`
		Root        string `yaml:"root"`
		StateFile   string `yaml:"state_file"`
		PrintSQL    bool   `yaml:"print_sql"`
		Debug       bool   `yaml:"debug"`
	}

	configFile struct {
		Version    string     `yaml:"version"`
		Migrations migrations `yaml:"migrations"`
	}
)

const configFileStub = `version: "1"
migrations:
  database_url: "%%LADDER_DATABASE_URL%%"
  database: default
  root: ./migrations
  state_file: ./migrations/.version
  print_sql: false
  debug: false
`

// LoadConfig reads a yaml configuration file. Values wrapped in %% are
// taken from the environment variable of that name.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	b, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read ladder configuration file")
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse ladder configuration file")
	}

	cfg.DatabaseURL = fromEnv(cfgFile.Migrations.DatabaseURL)
	cfg.Group = fromEnv(cfgFile.Migrations.Database)
	cfg.Root = fromEnv(cfgFile.Migrations.Root)
	cfg.StateFile = fromEnv(cfgFile.Migrations.StateFile)
	cfg.PrintSQL = cfgFile.Migrations.PrintSQL
	cfg.Debug = cfgFile.Migrations.Debug

	return cfg, nil
}

// LoadEnv reads the LADDER_* environment variables
func LoadEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	return cfg, nil
}

// Merge overrides every non empty value of cfg with the one from other
func (cfg Config) Merge(other Config) Config {
	if other.DatabaseURL != "" {
		cfg.DatabaseURL = other.DatabaseURL
	}
	if other.Group != "" {
		cfg.Group = other.Group
	}
	if other.Root != "" {
		cfg.Root = other.Root
	}
	if other.StateFile != "" {
		cfg.StateFile = other.StateFile
	}

	cfg.PrintSQL = cfg.PrintSQL || other.PrintSQL
	cfg.Debug = cfg.Debug || other.Debug
	cfg.NoColor = cfg.NoColor || other.NoColor

	return cfg
}

// WithDefaults fills the group, root and state file
func (cfg Config) WithDefaults() Config {
	if cfg.Group == "" {
		cfg.Group = ladder.DefaultDatabaseGroup
	}
	if cfg.Root == "" {
		cfg.Root = ladder.DefaultMigrationsFolder
	}
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(cfg.Root, ".version")
	}

	return cfg
}

// Validate checks the values the given action needs
func (cfg Config) Validate(needsDB bool) error {
	if needsDB && cfg.DatabaseURL == "" {
		return errors.Wrap(ErrInvalidConfig, "database url was not defined")
	}

	if cfg.Root == "" {
		return errors.Wrap(ErrInvalidConfig, "migrations root was not defined")
	}

	return nil
}

// InitConfig writes a configuration stub, it never overwrites an existing file
func InitConfig(path string) error {
	if FileExists(path) {
		return errors.Wrapf(ErrInvalidConfig, "[%s] already exists", path)
	}

	if err := ioutil.WriteFile(path, []byte(configFileStub), 0644); err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) || err != nil {
		return false
	}
	return !info.IsDir()
}

func fromEnv(value string) string {
	if len(value) > 4 && strings.HasPrefix(value, "%%") && strings.HasSuffix(value, "%%") {
		return os.Getenv(strings.Trim(value, "%"))
	}

	return value
}
