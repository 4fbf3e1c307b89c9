// Package config loads the service configuration. Sources are layered with
// increasing precedence: built-in defaults, a JSON or YAML config file,
// environment variables (a .env file is honoured) and command-line flags.
package config

import (
	"flag"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" koanf:"server_address" validate:"hostname_port"`
	GRPCAddr            string        `env:"GRPC_ADDRESS" koanf:"grpc_address" validate:"omitempty,hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" koanf:"log_level" validate:"loglevel"`
	MongoDBURI          string        `env:"MONGODB_URI" koanf:"mongodb_uri" validate:"omitempty,storeuri"`
	MongoDBDatabase     string        `env:"MONGODB_DATABASE" koanf:"mongodb_database" validate:"required"`
	DatabaseDSN         string        `env:"DATABASE_DSN" koanf:"database_dsn"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" koanf:"file_storage_path" validate:"omitempty,filepath"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" koanf:"db_connection_timeout" validate:"gt=0"`
	CORSAllowedOrigin   string        `env:"CORS_ALLOWED_ORIGIN" koanf:"cors_allowed_origin" validate:"required"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" koanf:"trusted_subnet" validate:"omitempty,cidr"`
	TrustProxyHeaders   bool          `env:"TRUST_PROXY_HEADERS" koanf:"trust_proxy_headers"`
	EnableGzip          *bool         `env:"ENABLE_GZIP" koanf:"enable_gzip"`
	ConfigFile          string        `env:"CONFIG"`
}

var defaultConfig = Config{
	RunAddr:             ":8000",
	GRPCAddr:            "",
	LogLevel:            "info",
	MongoDBURI:          "",
	MongoDBDatabase:     "map_my_family",
	DatabaseDSN:         "",
	DBFileName:          "",
	DBConnectionTimeout: 10 * time.Second,
	CORSAllowedOrigin:   "http://localhost:3000",
	TrustedSubnet:       "",
}

// GzipEnabled reports whether gzip middleware should be installed. It is on
// unless switched off explicitly.
func (c *Config) GzipEnabled() bool {
	return c.EnableGzip == nil || *c.EnableGzip
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(filepath.Dir(path))

	return err == nil
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":  true,
		"info":   true,
		"warn":   true,
		"error":  true,
		"dpanic": true,
		"panic":  true,
		"fatal":  true,
	}

	return allowedLogLevels[value]
}

func validateStoreURI(fieldLevel validator.FieldLevel) bool {
	parsed, err := url.Parse(fieldLevel.Field().String())
	if err != nil {
		return false
	}

	return (parsed.Scheme == "mongodb" || parsed.Scheme == "mongodb+srv") && parsed.Host != ""
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("storeuri", validateStoreURI)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing leaves os.Args alone. Tests use it because flags
// can only be defined once per FlagSet.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}

	var fromFlags Config
	var flagSet *flag.FlagSet
	if !options.disableFlagsParsing {
		flagSet = flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
		bindFlags(flagSet, &fromFlags)
		if err := flagSet.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	values := Config{}
	applyDefaults(&values, defaultConfig)

	configFile := firstNonEmpty(fromFlags.ConfigFile, fromEnv.ConfigFile)
	if configFile != "" {
		fromFile, err := loadFile(configFile)
		if err != nil {
			return nil, err
		}
		override(&values, fromFile)
	}

	override(&values, fromEnv)
	override(&values, fromFlags)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}

func bindFlags(flagSet *flag.FlagSet, values *Config) {
	flagSet.StringVar(&values.RunAddr, "a", "", "address and port to run HTTP server")
	flagSet.StringVar(&values.GRPCAddr, "g", "", "address and port to run gRPC health server")
	flagSet.StringVar(&values.LogLevel, "l", "", "logger level")
	flagSet.StringVar(&values.MongoDBURI, "m", "", "MongoDB connection URI")
	flagSet.StringVar(&values.DatabaseDSN, "d", "", "PostgreSQL connection details")
	flagSet.StringVar(&values.DBFileName, "f", "", "JSON file name with database")
	flagSet.StringVar(&values.CORSAllowedOrigin, "o", "", "origin allowed by the tree diagram preflight response")
	flagSet.StringVar(&values.TrustedSubnet, "t", "", "CIDR allowed to read internal endpoints")
	flagSet.BoolVar(&values.TrustProxyHeaders, "x", false, "take the client address from X-Real-IP/X-Forwarded-For")
	flagSet.StringVar(&values.ConfigFile, "c", "", "path to a JSON or YAML config file")
}

// loadFile reads a config file, picking the parser from its extension.
func loadFile(path string) (Config, error) {
	k := koanf.New(".")

	var parser koanf.Parser = json.Parser()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return Config{}, err
	}

	var result Config
	err := k.UnmarshalWithConf("", &result, koanf.UnmarshalConf{Tag: "koanf"})

	return result, err
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

// override copies every non-zero field of src over dst.
func override(dst *Config, src Config) {
	dst.RunAddr = firstNonEmpty(src.RunAddr, dst.RunAddr)
	dst.GRPCAddr = firstNonEmpty(src.GRPCAddr, dst.GRPCAddr)
	dst.LogLevel = firstNonEmpty(src.LogLevel, dst.LogLevel)
	dst.MongoDBURI = firstNonEmpty(src.MongoDBURI, dst.MongoDBURI)
	dst.MongoDBDatabase = firstNonEmpty(src.MongoDBDatabase, dst.MongoDBDatabase)
	dst.DatabaseDSN = firstNonEmpty(src.DatabaseDSN, dst.DatabaseDSN)
	dst.DBFileName = firstNonEmpty(src.DBFileName, dst.DBFileName)
	dst.CORSAllowedOrigin = firstNonEmpty(src.CORSAllowedOrigin, dst.CORSAllowedOrigin)
	dst.TrustedSubnet = firstNonEmpty(src.TrustedSubnet, dst.TrustedSubnet)

	if src.DBConnectionTimeout != 0 {
		dst.DBConnectionTimeout = src.DBConnectionTimeout
	}

	if src.TrustProxyHeaders {
		dst.TrustProxyHeaders = true
	}

	if src.EnableGzip != nil {
		dst.EnableGzip = src.EnableGzip
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
