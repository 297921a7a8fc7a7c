package config

import (
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config describes all configuration options
type Config struct {
	Jobs         int           `default:"0" toml:"jobs" yaml:"jobs" yml:"jobs" usage:"Maximum number of commands running in parallel (0 = number of CPUs)"`
	PollInterval time.Duration `default:"50ms" toml:"poll_interval" yaml:"poll_interval" yml:"poll_interval" usage:"Interval between two checks of the running commands"`
	TempDir      string        `toml:"temp_dir" yaml:"temp_dir" yml:"temp_dir" usage:"Directory for captured command output (defaults to the OS temp dir)"`
	BuildDir     string        `default:"build" toml:"build_dir" yaml:"build_dir" yml:"build_dir" usage:"Directory for objects and build outputs"`
	Progress     string        `default:"bar" toml:"progress" yaml:"progress" yml:"progress" usage:"Progress display (bar, glyph or none)"`
	Log          struct {
		Level string `default:"info" toml:"level" yaml:"level" yml:"level"`
		File  string `toml:"file" yaml:"file" yml:"file"`
		JSON  bool   `default:"false" toml:"json" yaml:"json" yml:"json" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log" yaml:"log" yml:"log"`
	Toolchain struct {
		CC         string `default:"clang" toml:"cc" yaml:"cc" yml:"cc" usage:"C compiler"`
		CXX        string `default:"clang++" toml:"cxx" yaml:"cxx" yml:"cxx" usage:"C++ compiler"`
		AR         string `default:"ar" toml:"ar" yaml:"ar" yml:"ar" usage:"Static library archiver"`
		Std        string `default:"c++17" toml:"std" yaml:"std" yml:"std" usage:"C++ language standard"`
		MinVersion string `toml:"min_version" yaml:"min_version" yml:"min_version" usage:"Version constraint the compiler has to satisfy (i.e. >= 10)"`
		CFlags     string `toml:"cflags" yaml:"cflags" yml:"cflags" usage:"Additional compiler flags"`
		LDFlags    string `toml:"ldflags" yaml:"ldflags" yml:"ldflags" usage:"Additional linker flags"`
	} `toml:"toolchain" yaml:"toolchain" yml:"toolchain"`
}

// DefaultFiles are searched in the working directory if no config file was passed.
var DefaultFiles = []string{"unitbuild.toml", "unitbuild.yml", "unitbuild.yaml"}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

var progressModes = map[string]bool{
	"bar":   true,
	"glyph": true,
	"none":  true,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// Flags are handled by the CLI so aconfig only reads defaults, files and the environment.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = DefaultFiles
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		EnvPrefix:        "UNITBUILD",
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
			".yml":  yamlDecoder{},
			".yaml": yamlDecoder{},
		},
	})
}

// Load is a shortcut for Loader() followed by Load() and Validate()
func Load(files ...string) (*Config, error) {
	cfg, loader := Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.Jobs < 0 {
		return eris.Errorf(`Invalid value for jobs: %d (must be 0 or greater)`, cfg.Jobs)
	}

	if cfg.PollInterval <= 0 {
		return eris.Errorf(`Invalid value for poll_interval: %s`, cfg.PollInterval)
	}

	if !progressModes[cfg.Progress] {
		return eris.Errorf(`Invalid value for progress: %s (must be one of bar, glyph or none)`, cfg.Progress)
	}

	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Toolchain.MinVersion != "" {
		_, err := semver.NewConstraint(cfg.Toolchain.MinVersion)
		if err != nil {
			return eris.Wrapf(err, `Invalid value for toolchain.min_version`)
		}
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// yamlDecoder lets aconfig read YAML files
type yamlDecoder struct{}

func (yamlDecoder) Format() string {
	return "yaml"
}

func (yamlDecoder) DecodeFile(filename string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]interface{})
	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", filename)
	}

	result := make(map[string]interface{})
	flattenInto(result, "", raw)
	return result, nil
}

// flattenInto stores nested sections under dotted keys (log.level), the names aconfig
// uses for fields of nested structs.
func flattenInto(dst map[string]interface{}, prefix string, src map[string]interface{}) {
	for key, value := range src {
		if section, ok := value.(map[string]interface{}); ok {
			flattenInto(dst, prefix+key+".", section)
			continue
		}
		dst[prefix+key] = value
	}
}
