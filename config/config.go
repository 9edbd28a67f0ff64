package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the visual search tool.
type Config struct {
	Model      ModelConfig     `yaml:"model"`
	References ReferenceConfig `yaml:"references"`
	Search     SearchConfig    `yaml:"search"`
	Camera     CameraConfig    `yaml:"camera"`
	Assets     AssetsConfig    `yaml:"assets"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// ModelConfig holds embedding model configuration.
type ModelConfig struct {
	Backend       string `yaml:"backend"`        // "onnx" or "mock"
	Path          string `yaml:"path"`           // ONNX model file
	SharedLibrary string `yaml:"shared_library"` // onnxruntime shared library, empty for the platform default
	InputName     string `yaml:"input_name"`     // discovered from the model when empty
	OutputName    string `yaml:"output_name"`    // discovered from the model when empty
	Layout        string `yaml:"layout"`         // "nhwc" or "nchw"
	Dimension     int    `yaml:"dimension"`
}

// ReferenceConfig holds reference dataset configuration.
type ReferenceConfig struct {
	Source string      `yaml:"source"` // path or URI of the embeddings blob
	S3     S3Config    `yaml:"s3"`
	MinIO  MinIOConfig `yaml:"minio"`
	HTTP   HTTPConfig  `yaml:"http"`
}

// S3Config configures the s3:// source.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// MinIOConfig configures the minio:// source.
type MinIOConfig struct {
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	Secure       bool   `yaml:"secure"`
}

// HTTPConfig configures the http(s):// source.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig holds search configuration.
type SearchConfig struct {
	Limit     int           `yaml:"limit"`
	Timeout   time.Duration `yaml:"timeout"`    // 0 = no deadline
	CacheSize int           `yaml:"cache_size"` // match cache entries, 0 disables
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// CameraConfig holds capture device configuration.
type CameraConfig struct {
	Backend           string `yaml:"backend"`            // "v4l2" or "frames"
	EnvironmentDevice string `yaml:"environment_device"` // v4l2 device preferred for FacingEnvironment
	DefaultDevice     string `yaml:"default_device"`
	EnvironmentFrames string `yaml:"environment_frames"` // frames backend glob preferred for FacingEnvironment
	Frames            string `yaml:"frames"`             // frames backend default glob
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	PreviewFPS        int    `yaml:"preview_fps"`
}

// AssetsConfig holds reference image resolution configuration.
type AssetsConfig struct {
	Root      string   `yaml:"root"`
	Priority  string   `yaml:"priority"` // "jpg" or "bmp"
	CacheSize int      `yaml:"cache_size"`
	Excludes  []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:   "onnx",
			Path:      "models/mobilenet_v2_1.0_224.onnx",
			Layout:    "nhwc",
			Dimension: 1280,
		},
		References: ReferenceConfig{
			Source: "embeddings.json",
			MinIO: MinIOConfig{
				AccessKeyEnv: "MINIO_ACCESS_KEY",
				SecretKeyEnv: "MINIO_SECRET_KEY",
				Secure:       true,
			},
			HTTP: HTTPConfig{
				Timeout: 60 * time.Second,
			},
		},
		Search: SearchConfig{
			Limit:     10,
			CacheSize: 64,
			CacheTTL:  10 * time.Minute,
		},
		Camera: CameraConfig{
			Backend:       "v4l2",
			DefaultDevice: "/dev/video0",
			Width:         640,
			Height:        480,
			PreviewFPS:    15,
		},
		Assets: AssetsConfig{
			Root:      "public/images",
			Priority:  "jpg",
			CacheSize: 1024,
			Excludes:  []string{"**/.*/**", "**/thumbs/**"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// Relative paths in the file are anchored at the file's directory.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for visearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "visearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// .visearch/config.yaml paths are relative to the project, not the dot dir
	path = filepath.Join(dir, ".visearch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		cfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		cfg.resolvePaths(dir)
		return cfg, nil
	}

	cfg := DefaultConfig()
	cfg.resolvePaths(dir)
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// resolvePaths anchors relative local paths at base. URIs are left untouched.
func (c *Config) resolvePaths(base string) {
	c.Model.Path = anchor(base, c.Model.Path)
	c.Assets.Root = anchor(base, c.Assets.Root)
	if !hasScheme(c.References.Source) {
		c.References.Source = anchor(base, c.References.Source)
	}
}

func anchor(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func hasScheme(s string) bool {
	return strings.Index(s, "://") > 0
}
