// =================================
// File: internal/config/config.go
// =================================

// Package config загружает настройки торговли: YAML-файл, .env и
// переменные окружения с префиксом SOLTRADE_.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/soltrade/internal/swqos"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

type Config struct {
	RPCList      []string `mapstructure:"rpc_list"`
	WebSocketURL string   `mapstructure:"ws_url"`
	// Commitment: processed, confirmed или finalized.
	Commitment  string            `mapstructure:"commitment"`
	PriorityFee types.PriorityFee `mapstructure:"priority_fee"`
	// Swqos перечисляет сервисы доставки в порядке, определяющем привязку
	// чаевых.
	// Пустой список означает один Default-клиент поверх первой RPC-ноды.
	Swqos          []SwqosEndpointConfig `mapstructure:"swqos"`
	ConfirmTimeout time.Duration         `mapstructure:"confirm_timeout"`
	DebugLogging   bool                  `mapstructure:"debug_logging"`
	LogFile        string                `mapstructure:"log_file"`
}

// SwqosEndpointConfig описывает один сервис доставки из файла. Явный url
// важнее региональной таблицы; оба сразу не обязательны только для default.
type SwqosEndpointConfig struct {
	Service   string  `mapstructure:"service"`
	AuthToken string  `mapstructure:"auth_token"`
	Region    string  `mapstructure:"region"`
	URL       string  `mapstructure:"url"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

const defaultConfirmTimeout = 30 * time.Second

// Load читает .env (если есть), файл конфигурации и окружение.
// Приоритет: окружение > файл > значения по умолчанию.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("SOLTRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	loadEnvironmentVariables(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	fee := types.DefaultPriorityFee()
	defaults := map[string]any{
		"commitment":                   "confirmed",
		"confirm_timeout":              defaultConfirmTimeout,
		"ws_url":                       "",
		"debug_logging":                false,
		"log_file":                     "",
		"priority_fee.tip_unit_limit":  fee.TipUnitLimit,
		"priority_fee.tip_unit_price":  fee.TipUnitPrice,
		"priority_fee.rpc_unit_limit":  fee.RPCUnitLimit,
		"priority_fee.rpc_unit_price":  fee.RPCUnitPrice,
		"priority_fee.buy_tip_fee":     fee.BuyTipFee,
		"priority_fee.sell_tip_fee":    fee.SellTipFee,
		"priority_fee.data_size_limit": fee.DataSizeLimit,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// loadEnvironmentVariables обрабатывает списки, которые Unmarshal не видит
// без значения в файле: SOLTRADE_RPC_LIST несёт адреса через запятую.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	raw := v.GetString("rpc_list")
	if raw == "" {
		return
	}
	var clean []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			clean = append(clean, item)
		}
	}
	if len(clean) > 0 {
		cfg.RPCList = clean
	}
}

func (c *Config) Validate() error {
	if len(c.RPCList) == 0 {
		return fmt.Errorf("%w: rpc_list is empty", types.ErrInvalidConfig)
	}
	for _, rpcURL := range c.RPCList {
		if err := validateURL(rpcURL, "http", "https"); err != nil {
			return fmt.Errorf("%w: rpc url %q: %v", types.ErrInvalidConfig, rpcURL, err)
		}
	}
	if c.WebSocketURL != "" {
		if err := validateURL(c.WebSocketURL, "ws", "wss"); err != nil {
			return fmt.Errorf("%w: ws url %q: %v", types.ErrInvalidConfig, c.WebSocketURL, err)
		}
	}
	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("%w: unknown commitment %q", types.ErrInvalidConfig, c.Commitment)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("%w: confirm_timeout must be positive", types.ErrInvalidConfig)
	}
	for i := range c.Swqos {
		if err := c.Swqos[i].validate(); err != nil {
			return fmt.Errorf("swqos[%d]: %w", i, err)
		}
	}
	return nil
}

func (e *SwqosEndpointConfig) validate() error {
	service, ok := swqos.ParseService(e.Service)
	if !ok {
		return fmt.Errorf("%w: unknown service %q", types.ErrInvalidConfig, e.Service)
	}
	if service.RequiresAuth() && e.AuthToken == "" {
		return fmt.Errorf("%w: service %s requires auth_token", types.ErrInvalidConfig, service)
	}
	if e.URL == "" {
		if _, ok := swqos.ParseRegion(e.Region); !ok {
			return fmt.Errorf("%w: service %s: unknown region %q and no url", types.ErrInvalidConfig, service, e.Region)
		}
	} else if err := validateURL(e.URL, "http", "https"); err != nil {
		return fmt.Errorf("%w: service %s url %q: %v", types.ErrInvalidConfig, service, e.URL, err)
	}
	if e.RateLimit < 0 {
		return fmt.Errorf("%w: service %s: negative rate_limit", types.ErrInvalidConfig, service)
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url format")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme %q is not one of %s", parsed.Scheme, strings.Join(schemes, "/"))
}

// CommitmentType возвращает уровень подтверждения для solana-go.
func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

// SwqosConfigs переводит записи файла в конфиги клиентов доставки.
// Default-сервис без явного url наследует первую RPC-ноду; пустой список
// даёт один такой Default-клиент.
func (c *Config) SwqosConfigs() ([]swqos.Config, error) {
	entries := c.Swqos
	if len(entries) == 0 {
		entries = []SwqosEndpointConfig{{Service: "default"}}
	}
	configs := make([]swqos.Config, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		service, ok := swqos.ParseService(e.Service)
		if !ok {
			return nil, fmt.Errorf("%w: unknown service %q", types.ErrInvalidConfig, e.Service)
		}
		region, _ := swqos.ParseRegion(e.Region)
		cfg := swqos.Config{
			Service:   service,
			AuthToken: e.AuthToken,
			Region:    region,
			URL:       e.URL,
			RateLimit: e.RateLimit,
		}
		if service == swqos.ServiceDefault && cfg.URL == "" && len(c.RPCList) > 0 {
			cfg.URL = c.RPCList[0]
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
