package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/roach88/qsearch/internal/querysql"
)

// EnvPrefix prefixes the environment variables that override settings,
// e.g. QSEARCH_DB or QSEARCH_POSTGRES_DSN.
const EnvPrefix = "QSEARCH"

// Settings are the runtime settings shared by CLI commands.
type Settings struct {
	DB          string `mapstructure:"db"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Dialect     string `mapstructure:"dialect"`
	Culture     string `mapstructure:"culture"`
	Format      string `mapstructure:"format"`
	Verbose     bool   `mapstructure:"verbose"`
}

// NewViper returns a viper instance with defaults and environment
// binding for Settings. Commands bind their flags onto it.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "qsearch.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("dialect", "sqlite")
	v.SetDefault("culture", "")
	v.SetDefault("format", "text")
	v.SetDefault("verbose", false)
	return v
}

// LoadSettings reads Settings from v and checks them.
func LoadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if _, err := querysql.DialectByName(s.Dialect); err != nil {
		return Settings{}, err
	}
	if _, err := s.CultureTag(); err != nil {
		return Settings{}, err
	}
	switch s.Format {
	case "text", "json":
	default:
		return Settings{}, fmt.Errorf("invalid format %q: want text or json", s.Format)
	}
	return s, nil
}

// CultureTag parses Culture. An empty culture is language.Und.
func (s Settings) CultureTag() (language.Tag, error) {
	if s.Culture == "" {
		return language.Und, nil
	}
	tag, err := language.Parse(s.Culture)
	if err != nil {
		return language.Und, fmt.Errorf("invalid culture %q: %w", s.Culture, err)
	}
	return tag, nil
}

// SQLDialect returns the dialect named by Dialect.
func (s Settings) SQLDialect() querysql.Dialect {
	d, err := querysql.DialectByName(s.Dialect)
	if err != nil {
		return querysql.SQLite
	}
	return d
}
