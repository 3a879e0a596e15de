package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	AssetsDir string `mapstructure:"assets_dir" yaml:"assets_dir"`
	// Sources maps a dataset name to its file; relative paths resolve against DataDir.
	Sources map[string]string `mapstructure:"sources" yaml:"sources,omitempty"`

	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`

	TopN          int `mapstructure:"top_n" yaml:"top_n" validate:"gte=1,lte=1000"`
	HistogramBins int `mapstructure:"histogram_bins" yaml:"histogram_bins" validate:"gte=1,lte=200"`
	// MaxRows caps rows read from a source; 0 means unlimited.
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows" validate:"gte=0"`
}

// Keys lists the settable scalar keys in display order.
var Keys = []string{
	"data_dir",
	"assets_dir",
	"listen_addr",
	"log_level",
	"log_format",
	"top_n",
	"histogram_bins",
	"max_rows",
}

// Default returns the built-in settings.
func Default() *Global {
	return &Global{
		DataDir:       ".",
		AssetsDir:     ".",
		Sources:       map[string]string{},
		ListenAddr:    ":8080",
		LogLevel:      "info",
		LogFormat:     "text",
		TopN:          10,
		HistogramBins: 20,
	}
}

var validate = validator.New()

// Validate checks field constraints and reports every failing key.
func (c *Global) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", keyFor(fe.StructField()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func keyFor(field string) string {
	switch field {
	case "ListenAddr":
		return "listen_addr"
	case "LogLevel":
		return "log_level"
	case "LogFormat":
		return "log_format"
	case "TopN":
		return "top_n"
	case "HistogramBins":
		return "histogram_bins"
	case "MaxRows":
		return "max_rows"
	}
	return field
}

// SourcePath returns the configured file for a dataset, resolved against
// DataDir. The second return is false when no source is configured.
func (c *Global) SourcePath(name string) (string, bool) {
	p, ok := c.Sources[strings.ToLower(name)]
	if !ok || strings.TrimSpace(p) == "" {
		return "", false
	}
	return c.Resolve(p), true
}

// Resolve joins a relative path onto DataDir.
func (c *Global) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.DataDir == "" {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// Dir returns ~/.dashloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dashloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dashloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DASHLOOM")
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("assets_dir", d.AssetsDir)
	v.SetDefault("sources", d.Sources)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("top_n", d.TopN)
	v.SetDefault("histogram_bins", d.HistogramBins)
	v.SetDefault("max_rows", d.MaxRows)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		// a missing file is fine: config set creates it
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Sources == nil {
		c.Sources = map[string]string{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
