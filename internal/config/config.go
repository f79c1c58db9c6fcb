// Package config loads the six required process inputs of spec.md §6.
// Secret material itself (key custody, rotation) is an explicit Non-goal;
// this package only reads values, it does not manage their lifecycle.
package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config is the fully validated set of process inputs. All fields are
// required; Load fails closed if any is missing.
type Config struct {
	WSSRPC                  string
	SearcherPrivateKey      string
	FlashbotsAuthKey        string
	SandwichContract        common.Address
	SandwichInceptionBlock  uint64
	DiscordWebhook          string
}

// Load reads configuration from environment variables (and an optional
// config file at path, if non-empty) via viper, matching the teacher's own
// node configuration layering.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	required := []string{
		"WSS_RPC",
		"SEARCHER_PRIVATE_KEY",
		"FLASHBOTS_AUTH_KEY",
		"SANDWICH_CONTRACT",
		"SANDWICH_INCEPTION_BLOCK",
		"DISCORD_WEBHOOK",
	}
	for _, key := range required {
		if !v.IsSet(key) || v.GetString(key) == "" {
			return nil, fmt.Errorf("config: missing required key %s", key)
		}
	}

	contract := v.GetString("SANDWICH_CONTRACT")
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("config: SANDWICH_CONTRACT %q is not a valid address", contract)
	}

	return &Config{
		WSSRPC:                 v.GetString("WSS_RPC"),
		SearcherPrivateKey:     v.GetString("SEARCHER_PRIVATE_KEY"),
		FlashbotsAuthKey:       v.GetString("FLASHBOTS_AUTH_KEY"),
		SandwichContract:       common.HexToAddress(contract),
		SandwichInceptionBlock: v.GetUint64("SANDWICH_INCEPTION_BLOCK"),
		DiscordWebhook:         v.GetString("DISCORD_WEBHOOK"),
	}, nil
}
