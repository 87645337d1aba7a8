// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration, loaded from YAML with
// UUSD_ROUTER_ environment overrides for deployment-sensitive keys.
type Config struct {
	RPCList []string `mapstructure:"rpc_list"`
	ChainID uint64   `mapstructure:"chain_id"`

	// Contract surface.
	PoolAddress        string `mapstructure:"pool_address"`
	DollarAddress      string `mapstructure:"dollar_address"`
	TwapOracleAddress  string `mapstructure:"twap_oracle_address"`
	CurvePoolAddress   string `mapstructure:"curve_pool_address"`
	CurveDollarLeg     int64  `mapstructure:"curve_dollar_leg"`
	CurveCollateralLeg int64  `mapstructure:"curve_collateral_leg"`

	Collaterals []CollateralConfig `mapstructure:"collaterals"`

	// Timeouts and cache lifetimes.
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	BranchTimeout   time.Duration `mapstructure:"branch_timeout"`
	ThresholdTTL    time.Duration `mapstructure:"threshold_ttl"`
	HistoryTTL      time.Duration `mapstructure:"history_ttl"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`

	// Chart window served to the TUI.
	ChartRangeHours int `mapstructure:"chart_range_hours"`
	ChartPoints     int `mapstructure:"chart_points"`

	// ProbeAmount is the whole-token dollar amount the periodic route
	// probes quote (daemon logging and the dashboard panels).
	ProbeAmount uint64 `mapstructure:"probe_amount"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogDir       string `mapstructure:"log_dir"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
	ExportDir    string `mapstructure:"export_dir"`
}

// CollateralConfig describes one accepted collateral token.
type CollateralConfig struct {
	Index           uint64  `mapstructure:"index"`
	Symbol          string  `mapstructure:"symbol"`
	Address         string  `mapstructure:"address"`
	MintingFee      float64 `mapstructure:"minting_fee"`
	RedemptionFee   float64 `mapstructure:"redemption_fee"`
	MissingDecimals uint8   `mapstructure:"missing_decimals"`
}

const (
	DefaultChainID         = 1
	DefaultRequestTimeout  = 15 * time.Second
	DefaultBranchTimeout   = 10 * time.Second
	DefaultThresholdTTL    = 60 * time.Second
	DefaultHistoryTTL      = 5 * time.Minute
	DefaultMonitorInterval = 15 * time.Second
	DefaultChartRangeHours = 24
	DefaultChartPoints     = 100
	DefaultProbeAmount     = 100
	DefaultLogDir          = "logs"
	DefaultExportDir       = "exports"
)

// defaultLUSD is the collateral the pool launched with; used when the
// config lists none.
var defaultLUSD = CollateralConfig{
	Index:         0,
	Symbol:        "LUSD",
	Address:       "0x5f98805A4E8be255a32880FDeC7F6728C6568bA0",
	MintingFee:    0.001,
	RedemptionFee: 0.002,
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"chain_id":             DefaultChainID,
		"curve_dollar_leg":     0,
		"curve_collateral_leg": 1,
		"request_timeout":      DefaultRequestTimeout,
		"branch_timeout":       DefaultBranchTimeout,
		"threshold_ttl":        DefaultThresholdTTL,
		"history_ttl":          DefaultHistoryTTL,
		"monitor_interval":     DefaultMonitorInterval,
		"chart_range_hours":    DefaultChartRangeHours,
		"chart_points":         DefaultChartPoints,
		"probe_amount":         DefaultProbeAmount,
		"log_dir":              DefaultLogDir,
		"export_dir":           DefaultExportDir,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	if len(cfg.Collaterals) == 0 {
		cfg.Collaterals = []CollateralConfig{defaultLUSD}
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}

	for name, addr := range map[string]string{
		"pool_address":        cfg.PoolAddress,
		"dollar_address":      cfg.DollarAddress,
		"twap_oracle_address": cfg.TwapOracleAddress,
		"curve_pool_address":  cfg.CurvePoolAddress,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s %q", name, addr)
		}
	}
	if cfg.CurveDollarLeg == cfg.CurveCollateralLeg {
		return errors.New("curve pool legs must differ")
	}

	for _, c := range cfg.Collaterals {
		if !common.IsHexAddress(c.Address) {
			return fmt.Errorf("invalid collateral address %q", c.Address)
		}
		if c.MintingFee < 0 || c.MintingFee >= 1 {
			return fmt.Errorf("collateral %s minting_fee out of range", c.Symbol)
		}
		if c.RedemptionFee < 0 || c.RedemptionFee >= 1 {
			return fmt.Errorf("collateral %s redemption_fee out of range", c.Symbol)
		}
	}

	return validateTimings(cfg)
}

func validateTimings(cfg *Config) error {
	if cfg.RequestTimeout <= 0 {
		return errors.New("invalid request_timeout")
	}
	if cfg.BranchTimeout <= 0 {
		return errors.New("invalid branch_timeout")
	}
	if cfg.ThresholdTTL <= 0 {
		return errors.New("invalid threshold_ttl")
	}
	if cfg.HistoryTTL <= 0 {
		return errors.New("invalid history_ttl")
	}
	if cfg.MonitorInterval <= 0 {
		return errors.New("invalid monitor_interval")
	}
	if cfg.ChartRangeHours <= 0 {
		return errors.New("invalid chart_range_hours")
	}
	if cfg.ChartPoints <= 0 || cfg.ChartPoints > 1000 {
		return errors.New("invalid chart_points")
	}
	if cfg.ProbeAmount == 0 {
		return errors.New("invalid probe_amount")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("UUSD_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		var cleanRPCs []string
		for _, rpc := range strings.Split(envRPCList, ",") {
			if clean := strings.TrimSpace(rpc); clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}

	if dsn := v.GetString("POSTGRES_DSN"); dsn != "" {
		cfg.PostgresDSN = dsn
	}
	return nil
}
