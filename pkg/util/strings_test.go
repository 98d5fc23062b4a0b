package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenName(t *testing.T) {
	assert.Equal(t, "AptosCoin", TokenName("0x1::aptos_coin::AptosCoin"))
	assert.Equal(t, "0xabc", TokenName("0xabc"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "he...", Truncate("hello world", 5))
	assert.Equal(t, "hello", Truncate("hello", 0))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 25.0, Round2(25.0))
	assert.Equal(t, 33.33, Round2(33.3333))
	assert.Equal(t, 35.0, RoundToStep(33.3, 5))
	assert.Equal(t, 30.0, RoundToStep(32.4, 5))
}
