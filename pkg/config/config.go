package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFilename = ".offerforge.yaml"
	DotEnvFilename        = ".env"

	EnvBackendURL = "OFFERFORGE_BACKEND_URL"
	// EnvExpoBackendURL is what the mobile app reads; honoured so both can share one .env.
	EnvExpoBackendURL = "EXPO_PUBLIC_BACKEND_URL"
)

var ErrNoBackendURL = errors.New("no backend url: pass --backend-url, set " + EnvBackendURL + " or backend_url in " + DefaultConfigFilename)

type File struct {
	BackendURL string         `yaml:"backend_url,omitempty"`
	Timeout    time.Duration  `yaml:"timeout,omitempty"`
	UserID     string         `yaml:"user_id,omitempty"`
	Language   string         `yaml:"language,omitempty"`
	StepDelay  *time.Duration `yaml:"step_delay,omitempty"`
	BriefFile  string         `yaml:"brief_file,omitempty"`
	Hooks      string         `yaml:"hooks,omitempty"`
	OutputDir  string         `yaml:"output_dir,omitempty"`

	MaterialKinds   []string `yaml:"material_kinds,omitempty"`
	LandingTemplate string   `yaml:"landing_template,omitempty"`
	ExportKinds     []string `yaml:"export_kinds,omitempty"`
	// ExportFilename is a text/template with sprig functions.
	ExportFilename string `yaml:"export_filename,omitempty"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	cfg.resolvePaths(filepath.Dir(path))
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

// resolvePaths makes relative file references relative to the config file's directory.
func (f *File) resolvePaths(dir string) {
	for _, p := range []*string{&f.BriefFile, &f.Hooks, &f.OutputDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// LoadDotEnv loads dir/.env into the process environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(dir string) (bool, error) {
	path := filepath.Join(dir, DotEnvFilename)
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "load %s", path)
	}
	return true, nil
}

// ResolveBackendURL picks the backend url by precedence: flag, environment, config file.
func ResolveBackendURL(flag string, cfg *File) (string, error) {
	candidates := []string{flag, os.Getenv(EnvBackendURL), os.Getenv(EnvExpoBackendURL)}
	if cfg != nil {
		candidates = append(candidates, cfg.BackendURL)
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, nil
		}
	}
	return "", ErrNoBackendURL
}
