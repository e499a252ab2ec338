package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ChainCfg struct {
	ID            uint64 `yaml:"id"`
	Name          string `yaml:"name"`
	NativeSymbol  string `yaml:"native_symbol"`
	WrappedNative string `yaml:"wrapped_native"`
	RPCHTTP       string `yaml:"rpc_http"`
}

type TokenCfg struct {
	Symbol   string `yaml:"symbol"`
	ChainID  uint64 `yaml:"chain_id"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
}

// VenueCfg describes one on-chain DEX deployment. Protocol selects the
// quoting implementation ("uniswap_v3", "uniswap_v2", "sushiswap").
type VenueCfg struct {
	Protocol    string   `yaml:"protocol"`
	ChainID     uint64   `yaml:"chain_id"`
	Router      string   `yaml:"router"`
	QuoterV2    string   `yaml:"quoter_v2"`
	FeeTiers    []uint32 `yaml:"fee_tiers"`
	GasEstimate uint64   `yaml:"gas_estimate"`
}

// PoolCfg declares a constant-product pool quoted locally instead of
// over RPC. Used for venues without an RPC quoter and in tests.
type PoolCfg struct {
	Protocol    string `yaml:"protocol"`
	ChainID     uint64 `yaml:"chain_id"`
	TokenA      string `yaml:"token_a"`
	TokenB      string `yaml:"token_b"`
	ReserveA    string `yaml:"reserve_a"`
	ReserveB    string `yaml:"reserve_b"`
	FeeBps      int    `yaml:"fee_bps"`
	GasEstimate uint64 `yaml:"gas_estimate"`
}

type BridgeCfg struct {
	Protocol    string   `yaml:"protocol"`
	Chains      []uint64 `yaml:"chains"`
	Tokens      []string `yaml:"tokens"`
	MinAmount   string   `yaml:"min_amount"`
	MaxAmount   string   `yaml:"max_amount"`
	GasEstimate uint64   `yaml:"gas_estimate"`
}

type Config struct {
	Service struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"service"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Chains []ChainCfg          `yaml:"chains"`
	Tokens []TokenCfg          `yaml:"tokens"`
	Hubs   map[uint64][]string `yaml:"hubs"`

	Venues  []VenueCfg  `yaml:"venues"`
	Pools   []PoolCfg   `yaml:"pools"`
	Bridges []BridgeCfg `yaml:"bridges"`

	Aggregator struct {
		Enabled  bool   `yaml:"enabled"`
		Protocol string `yaml:"protocol"`
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"aggregator"`

	Routing struct {
		MaxHops         int `yaml:"max_hops"`
		QuoteTimeoutMs  int `yaml:"quote_timeout_ms"`
		QuoteTTLMs      int `yaml:"quote_ttl_ms"`
		MaxLiquidityBps int `yaml:"max_liquidity_bps"`
	} `yaml:"routing"`

	Scoring struct {
		OutputWeight        float64 `yaml:"output_weight"`
		GasWeight           float64 `yaml:"gas_weight"`
		ReliabilityWeight   float64 `yaml:"reliability_weight"`
		TieEpsilon          float64 `yaml:"tie_epsilon"`
		BaselineSlippageBps float64 `yaml:"baseline_slippage_bps"`
		BaselineExecSec     float64 `yaml:"baseline_exec_sec"`
	} `yaml:"scoring"`

	Redis struct {
		Addr          string `yaml:"addr"`
		DB            int    `yaml:"db"`
		PricePrefix   string `yaml:"price_prefix"`
		GasPrefix     string `yaml:"gas_prefix"`
		OutcomeStream string `yaml:"outcome_stream"`
		Group         string `yaml:"group"`
		Consumer      string `yaml:"consumer"`
		PollMs        int    `yaml:"poll_ms"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Addr     string `yaml:"addr"`
		Database string `yaml:"database"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Table    string `yaml:"table"`
	} `yaml:"clickhouse"`

	GasFeed struct {
		Enabled bool `yaml:"enabled"`
		PollSec int  `yaml:"poll_sec"`
	} `yaml:"gas_feed"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "pylot-router"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9109"
	}
	if c.Routing.MaxHops == 0 {
		c.Routing.MaxHops = 3
	}
	if c.Routing.QuoteTimeoutMs == 0 {
		c.Routing.QuoteTimeoutMs = 3000
	}
	if c.Routing.QuoteTimeoutMs < 2000 {
		c.Routing.QuoteTimeoutMs = 2000
	}
	if c.Routing.QuoteTimeoutMs > 5000 {
		c.Routing.QuoteTimeoutMs = 5000
	}
	if c.Routing.QuoteTTLMs == 0 {
		c.Routing.QuoteTTLMs = 5000
	}
	if c.Routing.MaxLiquidityBps <= 0 || c.Routing.MaxLiquidityBps > 10000 {
		c.Routing.MaxLiquidityBps = 10000
	}
	if c.Scoring.OutputWeight == 0 && c.Scoring.GasWeight == 0 && c.Scoring.ReliabilityWeight == 0 {
		c.Scoring.OutputWeight = 0.40
		c.Scoring.GasWeight = 0.30
		c.Scoring.ReliabilityWeight = 0.30
	}
	if c.Scoring.TieEpsilon == 0 {
		c.Scoring.TieEpsilon = 1e-9
	}
	if c.Scoring.BaselineSlippageBps == 0 {
		c.Scoring.BaselineSlippageBps = 30
	}
	if c.Scoring.BaselineExecSec == 0 {
		c.Scoring.BaselineExecSec = 60
	}
	if c.Redis.PricePrefix == "" {
		c.Redis.PricePrefix = "pylot:price"
	}
	if c.Redis.GasPrefix == "" {
		c.Redis.GasPrefix = "pylot:gas"
	}
	if c.Redis.OutcomeStream == "" {
		c.Redis.OutcomeStream = "pylot:outcomes"
	}
	if c.Redis.Group == "" {
		c.Redis.Group = "pylot-router"
	}
	if c.Redis.PollMs == 0 {
		c.Redis.PollMs = 1000
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "pylot.route.decisions"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "pylot-analytics"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "pylot"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "route_decisions"
	}
	if c.GasFeed.PollSec == 0 {
		c.GasFeed.PollSec = 15
	}
}

func (c *Config) validate() error {
	seen := make(map[uint64]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.ID == 0 {
			return fmt.Errorf("chain %q: zero id", ch.Name)
		}
		if seen[ch.ID] {
			return fmt.Errorf("chain id %d listed twice", ch.ID)
		}
		seen[ch.ID] = true
	}
	for _, t := range c.Tokens {
		if !seen[t.ChainID] {
			return fmt.Errorf("token %s: chain %d not declared", t.Symbol, t.ChainID)
		}
	}
	return nil
}

func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.Routing.QuoteTimeoutMs) * time.Millisecond
}
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Routing.QuoteTTLMs) * time.Millisecond
}
func (c *Config) RedisPoll() time.Duration {
	return time.Duration(c.Redis.PollMs) * time.Millisecond
}
func (c *Config) GasPoll() time.Duration {
	return time.Duration(c.GasFeed.PollSec) * time.Second
}
