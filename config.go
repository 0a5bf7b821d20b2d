package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/go-authgate/portal-session/apiclient"
)

const (
	envPrefix         = "PORTAL_"
	defaultConfigFile = "portal.yaml"
	defaultTokenFile  = ".portal-session.json"
)

// Config is the CLI configuration.
type Config struct {
	App            string          `koanf:"app"             validate:"required,oneof=admin provider user"`
	BaseURL        string          `koanf:"base_url"        validate:"required,url"`
	TokenFile      string          `koanf:"token_file"      validate:"required"`
	Timeout        time.Duration   `koanf:"timeout"         validate:"gt=0"`
	RefreshTimeout time.Duration   `koanf:"refresh_timeout" validate:"gt=0"`
	ResourcePath   string          `koanf:"resource_path"`
	ClientID       string          `koanf:"client_id"`
	Email          string          `koanf:"email"`
	Password       string          `koanf:"password"`
	PublicPaths    []string        `koanf:"public_paths"`
	Endpoints      EndpointsConfig `koanf:"endpoints"`
	Retry          RetryConfig     `koanf:"retry"`
	Log            LogConfig       `koanf:"log"`
}

// EndpointsConfig overrides the per-app auth routes.
type EndpointsConfig struct {
	Login   string `koanf:"login"`
	Signup  string `koanf:"signup"`
	Refresh string `koanf:"refresh"`
	Logout  string `koanf:"logout"`
	Profile string `koanf:"profile"`
}

type RetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	// File receives logs while the TUI owns the terminal.
	File string `koanf:"file"`
}

// appRoutes are the route prefixes of the three portals.
var appRoutes = map[string]struct {
	prefix   string
	resource string
}{
	"admin":    {prefix: "/admin", resource: "/admin/dashboard"},
	"provider": {prefix: "/provider", resource: "/provider/bookings"},
	"user":     {prefix: "", resource: "/bookings"},
}

// flagValues holds the raw command line overrides.
type flagValues struct {
	ConfigFile string
	App        string
	BaseURL    string
	TokenFile  string
	Resource   string
	Email      string
	Password   string
	LogLevel   string
	LogFile    string
	NoRetry    bool
}

var (
	flagConfigFile    *string
	flagApp           *string
	flagBaseURL       *string
	flagTokenFile     *string
	flagResource      *string
	flagEmail         *string
	flagPassword      *string
	flagLogLevel      *string
	flagLogFile       *string
	flagNoRetry       *bool
	configInitialized bool
	cfg               *Config
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagConfigFile = flag.String(
		"config",
		"",
		"YAML config file (default: portal.yaml or PORTAL_CONFIG env)",
	)
	flagApp = flag.String("app", "", "Portal: admin, provider or user (default: user or PORTAL_APP env)")
	flagBaseURL = flag.String(
		"base-url",
		"",
		"API base URL (default: http://localhost:8080 or PORTAL_BASE_URL env)",
	)
	flagTokenFile = flag.String(
		"token-file",
		"",
		"Session storage file (default: .portal-session.json or PORTAL_TOKEN_FILE env)",
	)
	flagResource = flag.String("resource", "", "Path called by the run command")
	flagEmail = flag.String("email", "", "Login email (or PORTAL_EMAIL env)")
	flagPassword = flag.String("password", "", "Login password (or PORTAL_PASSWORD env)")
	flagLogLevel = flag.String("log-level", "", "Log level (default: warn)")
	flagLogFile = flag.String("log-file", "", "Write logs to this file")
	flagNoRetry = flag.Bool("no-retry", false, "Disable retries on transient failures")
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	var err error
	cfg, err = loadConfig(flagValues{
		ConfigFile: *flagConfigFile,
		App:        *flagApp,
		BaseURL:    *flagBaseURL,
		TokenFile:  *flagTokenFile,
		Resource:   *flagResource,
		Email:      *flagEmail,
		Password:   *flagPassword,
		LogLevel:   *flagLogLevel,
		LogFile:    *flagLogFile,
		NoRetry:    *flagNoRetry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(cfg.BaseURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}

	// Validate client id format (should be UUID)
	if cfg.ClientID != "" {
		if _, err := uuid.Parse(cfg.ClientID); err != nil {
			fmt.Fprintf(
				os.Stderr,
				"⚠️  Warning: PORTAL_CLIENT_ID doesn't appear to be a valid UUID: %s\n",
				cfg.ClientID,
			)
			fmt.Fprintln(os.Stderr)
		}
	}
}

// loadConfig layers defaults, the YAML file, PORTAL_* variables and flags,
// in increasing priority.
func loadConfig(fv flagValues) (*Config, error) {
	c := &Config{
		App:            "user",
		BaseURL:        "http://localhost:8080",
		TokenFile:      defaultTokenFile,
		Timeout:        apiclient.DefaultTimeout,
		RefreshTimeout: apiclient.DefaultRefreshTimeout,
		Retry:          RetryConfig{Enabled: true},
		Log:            LogConfig{Level: "warn"},
	}

	k := koanf.New(".")

	configFile := getConfig(fv.ConfigFile, envPrefix+"CONFIG", defaultConfigFile)
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s failed: %w", configFile, err)
		}
	} else if configFile != defaultConfigFile {
		return nil, fmt.Errorf("config file %s not found", configFile)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envToKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("load env variables failed: %w", err)
	}

	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           c,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	// Priority: flag > env > file > default
	c.App = strings.ToLower(getConfigValue(fv.App, c.App))
	c.BaseURL = getConfigValue(fv.BaseURL, c.BaseURL)
	c.TokenFile = getConfigValue(fv.TokenFile, c.TokenFile)
	c.ResourcePath = getConfigValue(fv.Resource, c.ResourcePath)
	c.Email = getConfigValue(fv.Email, c.Email)
	c.Password = getConfigValue(fv.Password, c.Password)
	c.Log.Level = strings.ToLower(getConfigValue(fv.LogLevel, c.Log.Level))
	c.Log.File = getConfigValue(fv.LogFile, c.Log.File)
	if fv.NoRetry {
		c.Retry.Enabled = false
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	c.applyAppDefaults()
	return c, nil
}

// envToKey maps PORTAL_LOG_LEVEL to log.level and PORTAL_BASE_URL to base_url.
func envToKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, envPrefix))
	for _, section := range []string{"log", "retry", "endpoints"} {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest, v
		}
	}
	return key, v
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getConfigValue(flagValue, loaded string) string {
	if flagValue != "" {
		return flagValue
	}
	return loaded
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := apiclient.ValidateBaseURL(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	return nil
}

// applyAppDefaults fills routes left empty with the portal's own.
func (c *Config) applyAppDefaults() {
	routes := appRoutes[c.App]
	def := apiclient.DefaultEndpoints()

	fill := func(v *string, path string) {
		if *v == "" {
			*v = routes.prefix + path
		}
	}
	fill(&c.Endpoints.Login, def.Login)
	fill(&c.Endpoints.Signup, def.Signup)
	fill(&c.Endpoints.Refresh, def.Refresh)
	fill(&c.Endpoints.Logout, def.Logout)
	fill(&c.Endpoints.Profile, def.Profile)

	if len(c.PublicPaths) == 0 {
		c.PublicPaths = make([]string, 0, len(apiclient.DefaultPublicPaths))
		for _, p := range apiclient.DefaultPublicPaths {
			c.PublicPaths = append(c.PublicPaths, routes.prefix+p)
		}
	}
	if c.ResourcePath == "" {
		c.ResourcePath = routes.resource
	}
}

// apiConfig is the client configuration derived from c.
func (c *Config) apiConfig() apiclient.Config {
	headers := map[string]string{}
	if c.ClientID != "" {
		headers["X-Client-ID"] = c.ClientID
	}
	return apiclient.Config{
		BaseURL:        c.BaseURL,
		Timeout:        c.Timeout,
		RefreshTimeout: c.RefreshTimeout,
		Endpoints: apiclient.Endpoints{
			Login:   c.Endpoints.Login,
			Signup:  c.Endpoints.Signup,
			Refresh: c.Endpoints.Refresh,
			Logout:  c.Endpoints.Logout,
			Profile: c.Endpoints.Profile,
		},
		PublicPaths:    c.PublicPaths,
		DefaultHeaders: headers,
		UserAgent:      "portal-session/" + c.App,
	}
}
