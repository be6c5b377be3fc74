package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/remiges-tech/rigel"
	"github.com/remiges-tech/rigel/etcd"
)

// Config is a source from which application configuration can be loaded.
type Config interface {
	LoadConfig(c any) error
	Check() error
	Get(key string) (string, error)
}

// ErrUnsupportedTarget is returned by sources that can only populate an *AppConfig.
var ErrUnsupportedTarget = errors.New("config target must be *AppConfig")

// Load first ensures that the config source is valid and accessible. Then it loads the config into c.
func Load(cs Config, c any) error {
	if err := cs.Check(); err != nil {
		return err
	}
	return cs.LoadConfig(c)
}

// Duration is a time.Duration that reads as a string such as "5s" in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// AppConfig is the configuration of the todo service.
type AppConfig struct {
	Port          string   `json:"port" validate:"required,numeric"`
	CORSOrigin    string   `json:"cors_origin" validate:"required"`
	Env           string   `json:"env" validate:"required"`
	Store         string   `json:"store" validate:"oneof=memory redis"`
	RedisAddr     string   `json:"redis_addr" validate:"required_if=Store redis"`
	RedisPassword string   `json:"redis_password"`
	RedisDB       int      `json:"redis_db" validate:"min=0"`
	StoreTimeout  Duration `json:"store_timeout" validate:"gt=0"`
}

// Default returns the configuration used when no source overrides a value.
func Default() AppConfig {
	return AppConfig{
		Port:         "5000",
		CORSOrigin:   "http://localhost:3000",
		Env:          "development",
		Store:        "memory",
		RedisAddr:    "localhost:6379",
		StoreTimeout: Duration(5 * time.Second),
	}
}

var validate = validator.New()

// Validate checks the configuration against its field rules.
func (c AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c AppConfig) Addr() string {
	return ":" + c.Port
}

// File

type File struct {
	ConfigFilePath string
	Config         map[string]interface{}
}

func (f *File) Check() error {
	if f.ConfigFilePath == "" {
		return fmt.Errorf("configFilePath cannot be empty")
	}
	return nil
}

func newFile(configFilePath string) (*File, error) {
	file := &File{ConfigFilePath: configFilePath}

	if err := file.Check(); err != nil {
		return nil, err
	}

	return file, nil
}

// LoadConfig decodes the JSON file into appConfig. Keys absent from the file
// keep whatever value appConfig already holds. The raw key/value pairs are
// kept for Get.
func (f *File) LoadConfig(appConfig any) error {
	data, err := os.ReadFile(f.ConfigFilePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &f.Config); err != nil {
		return err
	}
	return json.Unmarshal(data, appConfig)
}

type ValueNotStringError struct {
	Key   string
	Value interface{}
}

func (e *ValueNotStringError) Error() string {
	return fmt.Sprintf("value for key %s is not a string: %v", e.Key, e.Value)
}

type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %s not found in config", e.Key)
}

// Get retrieves a value from the loaded file based on the provided key.
// If the value is a string, it is returned as is. If the value is not a string,
// it is converted to a string using fmt.Sprintf and returned along with the error ValueNotStringError.
// If the key is not found in the configuration, an error of type KeyNotFoundError is returned.
func (f *File) Get(key string) (string, error) {
	value, ok := f.Config[key]
	if !ok {
		return "", &KeyNotFoundError{Key: key}
	}

	strValue := fmt.Sprintf("%v", value)

	strValueAsserted, ok := value.(string)
	if !ok {
		return strValue, &ValueNotStringError{Key: key, Value: value}
	}

	return strValueAsserted, nil
}

// Env

// Env reads configuration from process environment variables after loading
// any .env files that exist. Variables already set in the environment win
// over values from a .env file.
type Env struct {
	DotEnvFiles []string
}

// Environment variable names read by Env.
const (
	EnvPort          = "PORT"
	EnvCORSOrigin    = "CORS_ORIGIN"
	EnvAppEnv        = "APP_ENV"
	EnvNodeEnv       = "NODE_ENV"
	EnvStore         = "STORE"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
	EnvStoreTimeout  = "STORE_TIMEOUT"
)

func (e *Env) Check() error {
	for _, f := range e.DotEnvFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (e *Env) LoadConfig(c any) error {
	cfg, ok := c.(*AppConfig)
	if !ok {
		return ErrUnsupportedTarget
	}

	setString(&cfg.Port, EnvPort)
	setString(&cfg.CORSOrigin, EnvCORSOrigin)
	setString(&cfg.Env, EnvNodeEnv)
	setString(&cfg.Env, EnvAppEnv)
	setString(&cfg.Store, EnvStore)
	setString(&cfg.RedisAddr, EnvRedisAddr)
	setString(&cfg.RedisPassword, EnvRedisPassword)

	if v, ok := os.LookupEnv(EnvRedisDB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		cfg.RedisDB = n
	}
	if v, ok := os.LookupEnv(EnvStoreTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStoreTimeout, err)
		}
		cfg.StoreTimeout = Duration(d)
	}
	return nil
}

func (e *Env) Get(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", &KeyNotFoundError{Key: key}
	}
	return v, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Rigel

// Rigel reads configuration from a Rigel schema stored in etcd.
type Rigel struct {
	Client  *rigel.Rigel
	Timeout time.Duration
}

// Keys read from Rigel by LoadConfig.
const (
	RigelKeyPort          = "server.port"
	RigelKeyCORSOrigin    = "server.cors_origin"
	RigelKeyEnv           = "server.env"
	RigelKeyStore         = "store.kind"
	RigelKeyRedisAddr     = "store.redis_addr"
	RigelKeyRedisPassword = "store.redis_password"
	RigelKeyRedisDB       = "store.redis_db"
	RigelKeyStoreTimeout  = "store.timeout"
)

// NewRigel connects a Rigel client to etcd for the given schema and config.
func NewRigel(etcdEndpoints []string, app, module string, version int, configName string) (*Rigel, error) {
	etcdStorage, err := etcd.NewEtcdStorage(etcdEndpoints)
	if err != nil {
		return nil, fmt.Errorf("create etcd storage: %w", err)
	}
	return &Rigel{
		Client:  rigel.New(etcdStorage, app, module, version, configName),
		Timeout: 5 * time.Second,
	}, nil
}

func (r *Rigel) Check() error {
	if r.Client == nil {
		return fmt.Errorf("rigel client cannot be nil")
	}
	return nil
}

// LoadConfig reads every key of the service schema into an *AppConfig.
func (r *Rigel) LoadConfig(c any) error {
	cfg, ok := c.(*AppConfig)
	if !ok {
		return ErrUnsupportedTarget
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()

	strs := []struct {
		key string
		dst *string
	}{
		{RigelKeyPort, &cfg.Port},
		{RigelKeyCORSOrigin, &cfg.CORSOrigin},
		{RigelKeyEnv, &cfg.Env},
		{RigelKeyStore, &cfg.Store},
		{RigelKeyRedisAddr, &cfg.RedisAddr},
		{RigelKeyRedisPassword, &cfg.RedisPassword},
	}
	for _, s := range strs {
		v, err := r.Client.Get(ctx, s.key)
		if err != nil {
			return fmt.Errorf("rigel %s: %w", s.key, err)
		}
		*s.dst = v
	}

	db, err := r.Client.GetInt(ctx, RigelKeyRedisDB)
	if err != nil {
		return fmt.Errorf("rigel %s: %w", RigelKeyRedisDB, err)
	}
	cfg.RedisDB = db

	timeout, err := r.Client.Get(ctx, RigelKeyStoreTimeout)
	if err != nil {
		return fmt.Errorf("rigel %s: %w", RigelKeyStoreTimeout, err)
	}
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return fmt.Errorf("rigel %s: %w", RigelKeyStoreTimeout, err)
	}
	cfg.StoreTimeout = Duration(d)
	return nil
}

func (r *Rigel) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()
	return r.Client.Get(ctx, key)
}

func (r *Rigel) timeout() time.Duration {
	if r.Timeout <= 0 {
		return 5 * time.Second
	}
	return r.Timeout
}
