package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
portfolio:
  stable_coin_type: "0xusdc::asset::USDC"
  tokens:
    - {coin_type: "0x1::aptos_coin::AptosCoin", symbol: APT, decimals: 8}
    - {coin_type: "0xusdc::asset::USDC", symbol: USDC, decimals: 6}
market:
  spot_interval: 5m
  assets:
    - {symbol: APT, cmc_id: "21794"}
    - {symbol: USDC, cmc_id: "3408"}
  pairs:
    - {base: APT, quote: USDC}
oracle:
  platforms:
    deepseek: {base_url: "http://deepseek", models: {reason: r1}}
    qwen: {base_url: "http://qwen", models: {large: max}}
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(baseYAML))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, []string{"1h", "1d", "3d", "7d", "30d"}, c.Market.Intervals)
	assert.Equal(t, 5.0, c.Portfolio.Quantum)
}

func TestParseRejectsBadIntervals(t *testing.T) {
	_, err := Parse([]byte(strings.Replace(baseYAML, "spot_interval: 5m", "spot_interval: soon", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.spot_interval")

	_, err = Parse([]byte(strings.Replace(baseYAML, "spot_interval: 5m", "spot_interval: 5m\n  intervals: [1h, 0d]", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.intervals")
}

func TestParseRejectsSymbolsDifferingOnlyInCase(t *testing.T) {
	yml := strings.Replace(baseYAML,
		`    - {coin_type: "0xusdc::asset::USDC", symbol: USDC, decimals: 6}`,
		"    - {coin_type: \"0xusdc::asset::USDC\", symbol: USDC, decimals: 6}\n    - {coin_type: \"0xother::apt::APT\", symbol: apt, decimals: 8}", 1)
	_, err := Parse([]byte(yml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate symbol apt")
}

func TestApplyEnvOverrides(t *testing.T) {
	c, err := Parse([]byte(baseYAML))
	require.NoError(t, err)

	env := map[string]string{"REDIS_DB": "4", "KAFKA_BROKERS": "k1:9092,k2:9092", "ORACLE_QWEN_API_KEY": "sk-q"}
	c.applyEnv(func(k string) string { return env[k] })
	assert.Equal(t, 4, c.Redis.DB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "sk-q", c.Oracle.Platforms["qwen"].APIKey)

	env["REDIS_DB"] = "not-a-number"
	c.applyEnv(func(k string) string { return env[k] })
	assert.Equal(t, 4, c.Redis.DB)
}
