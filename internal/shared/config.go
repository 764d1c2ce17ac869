package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Build       BuildConfig       `toml:"build"`
	Names       NamesConfig       `toml:"names"`
	Compat      CompatConfig      `toml:"compat"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Tidal TidalConfig `toml:"tidal"`
}

// TidalConfig contains the TIDAL OAuth2 client and the last session token.
type TidalConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry"`
}

// APIConfig contains the TIDAL endpoints and HTTP client settings.
type APIConfig struct {
	BaseURL    string        `toml:"base_url"`
	V2URL      string        `toml:"v2_url"`
	OpenAPIURL string        `toml:"openapi_url"`
	AuthURL    string        `toml:"auth_url"`
	Timeout    time.Duration `toml:"timeout"`
}

// BuildConfig tunes playlist construction.
type BuildConfig struct {
	TopN        int           `toml:"top_n"`
	BatchSize   int           `toml:"batch_size"`
	SearchLimit int           `toml:"search_limit"`
	ArtistDelay time.Duration `toml:"artist_delay"`
	Description string        `toml:"description"`
}

// NamesConfig extends the built-in artist name tables.
type NamesConfig struct {
	Fixes      map[string]string   `toml:"fixes"`
	Alternates map[string][]string `toml:"alternates"`
}

// ParamVariant is one key/value encoding of the search entity-type filter.
type ParamVariant struct {
	Key   string `toml:"key"`
	Value string `toml:"value"`
}

// CompatConfig lists the request shapes tried by the raw fallbacks, in priority order.
type CompatConfig struct {
	SearchPaths          []string       `toml:"search_paths"`
	SearchParams         []ParamVariant `toml:"search_params"`
	CreatePaths          []string       `toml:"create_paths"`
	CreateEncodings      []string       `toml:"create_encodings"`
	AddPaths             []string       `toml:"add_paths"`
	AddDuplicatePolicies []string       `toml:"add_duplicate_policies"`
}

// Token returns the stored session token, or nil when no login has been saved.
func (c TidalConfig) Token() *oauth2.Token {
	if c.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Update stores the given token.
func (c *TidalConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	c.AccessToken = token.AccessToken
	c.RefreshToken = token.RefreshToken
	c.TokenType = token.TokenType
	c.Expiry = token.Expiry
	return nil
}

// HasClient reports whether a usable client id has been configured.
func (c TidalConfig) HasClient() bool {
	return c.ClientID != "" && !strings.HasPrefix(c.ClientID, "your_")
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads .env files (default ".env") into the process environment.
//
// Missing files are not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials with TIDAL_CLIENT_ID and TIDAL_CLIENT_SECRET when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TIDAL_CLIENT_ID"); v != "" {
		c.Credentials.Tidal.ClientID = v
	}
	if v := os.Getenv("TIDAL_CLIENT_SECRET"); v != "" {
		c.Credentials.Tidal.ClientSecret = v
	}
}
