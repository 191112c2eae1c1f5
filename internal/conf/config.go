// config.go: settings struct and functions to load and save the Colsign-Go configuration.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/colsign/colsign-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig holds settings for a rotating log file.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
	MaxSize int64  // max log file size in bytes before rotation
}

// SocialProvider holds settings for an OAuth2 login provider.
type SocialProvider struct {
	Enabled      bool   // true to enable this provider
	ClientID     string // OAuth2 client id
	ClientSecret string // OAuth2 client secret
}

// RoleSettings maps the application role names to their numeric identifiers.
// The original deployment injected these through environment variables, so
// they stay configurable rather than hard-coded.
type RoleSettings struct {
	Admin       int // role id with full curation rights
	Contributor int // role id allowed to record and submit signs
	Blocked     int // role id denied access to all gated routes
}

// Security contains authentication and session configuration.
type Security struct {
	Debug bool // true to enable security debug logging

	// Host is the primary hostname used for OAuth redirect URLs.
	// Required when a social provider is enabled.
	Host string

	RedirectToHTTPS bool           // true to redirect plain HTTP to HTTPS
	SessionSecret   string         // secret for the session cookie store
	SessionDuration time.Duration  // lifetime of login sessions and access tokens
	GoogleAuth      SocialProvider // Google OAuth2 configuration
	Roles           RoleSettings   // role identifier mapping
}

// CaptureSettings fixes the countdown/recording window per sign category.
// The countdown length doubles as the recording length so the countdown
// anticipates exactly how long the capture will run.
type CaptureSettings struct {
	CharacterSeconds int           // window for Caracter signs
	WordSeconds      int           // window for Palabra signs
	PhraseSeconds    int           // window for Frases signs
	SessionTTL       time.Duration // idle time before a capture session is dropped
}

// PredictionSettings configures the external sign-recognition API.
type PredictionSettings struct {
	Enabled    bool          // true to enable the evaluation workflow
	BaseURL    string        // base URL of the model service
	Timeout    time.Duration // per-request timeout
	WordsModel string        // model identifier recorded on evaluations
}

// Settings contains all configuration options for the Colsign-Go server.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this Colsign-Go node
		Log  LogConfig // logging configuration
	}

	WebServer struct {
		Debug   bool   // true to enable web server debug mode
		Enabled bool   // true to enable the web server
		Port    string // port for the web server
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable SQLite output
			Path    string // path to the SQLite database
		}
		MySQL struct {
			Enabled  bool   // true to enable MySQL output
			Username string // MySQL username
			Password string // MySQL password
			Host     string // MySQL host
			Port     string // MySQL port
			Database string // MySQL database name
		}
	}

	Media struct {
		Export struct {
			Path string // root directory for stored video clips
		}
		MaxUploadSize int64 // maximum accepted video upload in bytes
	}

	Capture    CaptureSettings        // capture workflow configuration
	Review     struct{ PageSize int } // admin review page size
	Prediction PredictionSettings     // external recognition API configuration
	Security   Security               // security configuration

	Metrics struct {
		Enabled bool   // true to expose prometheus metrics
		Listen  string // listen address for the metrics endpoint
	}
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// If the session secret is not set, generate a random one
	if viper.GetString("security.sessionsecret") == "" {
		viper.Set("security.sessionsecret", GenerateRandomSecret())
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file first so the replacement
	// is an atomic rename on most filesystems.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for use as a session secret. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// CaptureWindow returns the fixed countdown/recording duration for the
// given sign category. Unknown categories fall back to the character window,
// matching the original workflow's default.
func (s *Settings) CaptureWindow(signType string) time.Duration {
	switch signType {
	case SignTypeCharacter:
		return time.Duration(s.Capture.CharacterSeconds) * time.Second
	case SignTypeWord:
		return time.Duration(s.Capture.WordSeconds) * time.Second
	case SignTypePhrase:
		return time.Duration(s.Capture.PhraseSeconds) * time.Second
	default:
		return time.Duration(s.Capture.CharacterSeconds) * time.Second
	}
}
