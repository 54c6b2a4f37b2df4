// Package config loads the observer's process configuration: a TOML file
// for structured settings layered with environment-variable overrides
// via envconfig.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"flare-observer/chain"
	"flare-observer/client/notify"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

const CONFIG_FILE string = "config.toml"

type LoggerConfig struct {
	Level       string `toml:"level"` // DEBUG, INFO, WARN, ERROR, DPANIC, PANIC, FATAL (zap)
	File        string `toml:"file"`
	MaxFileSize int    `toml:"max_file_size"` // In megabytes
	Console     bool   `toml:"console"`
}

// ChainConfig describes the RPC endpoint this observer reads from. There
// is no private key here -- this process never signs or sends a
// transaction, it only watches.
type ChainConfig struct {
	EthRPCURL string `toml:"eth_rpc_url" envconfig:"ETH_RPC_URL"`
	ApiKey    string `toml:"api_key" envconfig:"API_KEY"`
	ChainID   int64  `toml:"chain_id" envconfig:"CHAIN_ID"`
}

// DialETH builds a chain.EthClient through the x-apikey query-param
// convention some RPC providers expect.
func (c *ChainConfig) DialETH() (*chain.EthClient, error) {
	rpcURL, err := c.getRPCURL()
	if err != nil {
		return nil, err
	}
	return chain.NewEthClient(rpcURL, c.ChainID)
}

func (c *ChainConfig) getRPCURL() (string, error) {
	u, err := url.Parse(c.EthRPCURL)
	if err != nil {
		return "", err
	}
	if c.ApiKey == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("x-apikey", c.ApiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ContractAddresses is every address the ingestion loop needs: the four
// signing-policy contracts, FdcHub, and Submission.
type ContractAddresses struct {
	VoterRegistry  common.Address `toml:"voter_registry" envconfig:"VOTER_REGISTRY_CONTRACT_ADDRESS"`
	Calculator     common.Address `toml:"flare_systems_calculator" envconfig:"CALCULATOR_CONTRACT_ADDRESS"`
	Relay          common.Address `toml:"relay" envconfig:"RELAY_CONTRACT_ADDRESS"`
	SystemsManager common.Address `toml:"flare_systems_manager" envconfig:"SYSTEMS_MANAGER_CONTRACT_ADDRESS"`
	FdcHub         common.Address `toml:"fdc_hub" envconfig:"FDC_HUB_CONTRACT_ADDRESS"`
	Submission     common.Address `toml:"submission" envconfig:"SUBMISSION_CONTRACT_ADDRESS"`
}

// EpochConfig parameterizes the voting and reward epoch schedules used
// to build VotingEpochFactory / RewardEpochFactory.
type EpochConfig struct {
	VotingEpochFirstStartS int64 `toml:"voting_epoch_first_start_s" envconfig:"VOTING_EPOCH_FIRST_START_S"`
	VotingEpochDurationS   int64 `toml:"voting_epoch_duration_s" envconfig:"VOTING_EPOCH_DURATION_S"`
	RewardEpochFirstStartS int64 `toml:"reward_epoch_first_start_s" envconfig:"REWARD_EPOCH_FIRST_START_S"`
	RewardEpochDurationS   int64 `toml:"reward_epoch_duration_s" envconfig:"REWARD_EPOCH_DURATION_S"`
}

// MetricsConfig controls the Prometheus /metrics HTTP endpoint. Empty
// ListenAddr disables it.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr" envconfig:"METRICS_LISTEN_ADDR"`
}

// NotificationConfig mirrors notify.Config with toml tags for file-based
// configuration.
type NotificationConfig struct {
	Discord  *notify.DiscordConfig  `toml:"discord"`
	Slack    *notify.SlackConfig    `toml:"slack"`
	Telegram *notify.TelegramConfig `toml:"telegram"`
	Generic  *notify.GenericConfig  `toml:"generic"`
}

func (n NotificationConfig) ToNotifyConfig() notify.Config {
	return notify.Config{
		Discord:  n.Discord,
		Slack:    n.Slack,
		Telegram: n.Telegram,
		Generic:  n.Generic,
	}
}

// Config is the top-level observer configuration: rpc_url, chain_id,
// identity_address, contracts, epoch, and notification settings, plus
// the ambient logger and metrics sections.
type Config struct {
	Logger          LoggerConfig        `toml:"logger"`
	Chain           ChainConfig         `toml:"chain"`
	IdentityAddress common.Address      `toml:"identity_address" envconfig:"IDENTITY_ADDRESS"`
	Contracts       ContractAddresses   `toml:"contracts"`
	Epoch           EpochConfig         `toml:"epoch"`
	Notification    NotificationConfig  `toml:"notification"`
	Metrics         MetricsConfig       `toml:"metrics"`
}

func ParseConfigFile(cfg interface{}, fileName string, allowMissing bool) error {
	content, err := os.ReadFile(fileName)
	if err != nil {
		if allowMissing {
			return nil
		}
		return fmt.Errorf("error opening config file: %w", err)
	}

	if _, err := toml.Decode(string(content), cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

func ReadEnv(cfg interface{}) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("error reading env config: %w", err)
	}
	return nil
}

func ReadFileToString(fileName string) (string, error) {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func Load(fileName string) (*Config, error) {
	var cfg Config
	if err := ParseConfigFile(&cfg, fileName, true); err != nil {
		return nil, err
	}
	if err := ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
