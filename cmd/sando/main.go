// Command sando runs the mempool sandwich searcher end to end: it dials a
// single websocket-connected node, bootstraps the pool registry, and hands
// everything to the engine's collector/strategy/executor event loop
// (spec.md §4.8, §6).
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/bellwether-labs/sando/internal/blockinfo"
	"github.com/bellwether-labs/sando/internal/chainapi"
	"github.com/bellwether-labs/sando/internal/config"
	"github.com/bellwether-labs/sando/internal/engine"
	"github.com/bellwether-labs/sando/internal/filter"
	"github.com/bellwether-labs/sando/internal/obs"
	"github.com/bellwether-labs/sando/internal/poolreg"
	"github.com/bellwether-labs/sando/internal/relay"
)

// mainnetWETH is the canonical WETH9 deployment address every pool's
// start/end token is measured against (spec.md §6).
var mainnetWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

// factories are the two pool-creation sources the registry bootstraps from
// (spec.md §4.1). Inception blocks are each factory's actual deployment
// block on mainnet.
var factories = []poolreg.Factory{
	{Address: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"), Family: poolreg.FamilyV2, InceptionBlock: 10_000_835},
	{Address: common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"), Family: poolreg.FamilyV3, InceptionBlock: 12_369_621},
}

var (
	configFlag     = &cli.StringFlag{Name: "config", Usage: "optional config file; env vars always override it"}
	checkpointFlag = &cli.StringFlag{Name: "checkpoint-dir", Value: "./sando-checkpoint", Usage: "leveldb directory for the pool registry checkpoint"}
	metricsFlag    = &cli.StringFlag{Name: "metrics-addr", Value: ":9090", Usage: "listen address for the Prometheus /metrics endpoint"}
	relaysFlag     = &cli.StringSliceFlag{Name: "relay", Usage: "Flashbots-compatible relay URL; repeatable", Value: cli.NewStringSlice("https://relay.flashbots.net")}
	verbosityFlag  = &cli.IntFlag{Name: "verbosity", Value: int(log.LvlInfo), Usage: "log verbosity, 0 (crit) through 5 (trace)"}
)

func main() {
	app := &cli.App{
		Name:  "sando",
		Usage: "mempool sandwich searcher",
		Flags: []cli.Flag{configFlag, checkpointFlag, metricsFlag, relaysFlag, verbosityFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sando:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obs.NewLogger(log.Lvl(c.Int(verbosityFlag.Name)))
	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)

	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}

	searcherKey, err := crypto.HexToECDSA(cfg.SearcherPrivateKey)
	if err != nil {
		return fmt.Errorf("sando: SEARCHER_PRIVATE_KEY: %w", err)
	}
	authKey, err := crypto.HexToECDSA(cfg.FlashbotsAuthKey)
	if err != nil {
		return fmt.Errorf("sando: FLASHBOTS_AUTH_KEY: %w", err)
	}

	driver, err := chainapi.Dial(ctx, cfg.WSSRPC)
	if err != nil {
		return fmt.Errorf("sando: dial %s: %w", cfg.WSSRPC, err)
	}
	defer driver.Close()

	head, err := driver.GetBlock(ctx, nil)
	if err != nil {
		return fmt.Errorf("sando: fetch head block: %w", err)
	}

	checkpoint, err := poolreg.OpenCheckpoint(c.String(checkpointFlag.Name))
	if err != nil {
		return err
	}
	defer checkpoint.Close()

	// The registry is bootstrapped once here. Registry.LiveUpdate is not
	// scheduled, so pools created after startup are not seen until restart.
	registry := poolreg.New(driver, checkpoint, mainnetWETH, logger, metrics)
	if err := registry.Bootstrap(ctx, factories, head.NumberU64()); err != nil {
		return fmt.Errorf("sando: bootstrap pool registry: %w", err)
	}
	logger.Info("pool registry bootstrapped", "pools", registry.Size(), "head", head.NumberU64())

	registryFilter := filter.New(driver, registry, mainnetWETH)
	blockMgr := blockinfo.NewManager()
	blockMgr.Update(blockinfo.Info{
		Number:    head.NumberU64(),
		Timestamp: head.Time(),
	})

	var alerter obs.Alerter = obs.NoopAlerter{}
	if cfg.DiscordWebhook != "" {
		alerter = obs.NewDiscordAlerter(cfg.DiscordWebhook)
	}

	var relays []relay.Relay
	for i, url := range c.StringSlice(relaysFlag.Name) {
		relays = append(relays, relay.NewFlashbotsRelay(fmt.Sprintf("relay-%d", i), url, authKey, driver, logger))
	}

	startNonce, err := driver.GetTransactionCount(ctx, crypto.PubkeyToAddress(searcherKey.PublicKey), nil)
	if err != nil {
		return fmt.Errorf("sando: fetch searcher nonce: %w", err)
	}

	eng := engine.New(driver, registryFilter, blockMgr, mainnetWETH, cfg.SandwichContract, searcherKey, params.MainnetChainConfig.ChainID, startNonce, relays, logger, metrics, alerter)

	dustTokens, err := discoverDust(ctx, driver, cfg.SandwichContract, cfg.SandwichInceptionBlock, head.NumberU64())
	if err != nil {
		logger.Warn("dust discovery failed, starting with an empty dust set", "err", err)
	} else {
		eng.Strategy().SeedDust(dustTokens)
		logger.Info("dust discovery complete", "tokens", len(dustTokens))
	}

	go serveMetrics(c.String(metricsFlag.Name), logger)

	logger.Info("engine starting", "searcher", crypto.PubkeyToAddress(searcherKey.PublicKey).Hex(), "sandwich_contract", cfg.SandwichContract.Hex())
	return eng.Run(ctx)
}

// transferTopic is the ERC-20 Transfer(address,address,uint256) event
// signature hash.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// discoverDust scans for any ERC-20 Transfer into the sandwich contract
// since fromBlock and returns the set of tokens it has ever held, priming
// the dust tracker so a restart does not re-overpay DustOverpay on a token
// that already carries leftover balance (spec.md §6
// SANDWICH_INCEPTION_BLOCK, "start block for token-dust discovery").
func discoverDust(ctx context.Context, driver chainapi.Driver, sandwich common.Address, fromBlock, toBlock uint64) ([]common.Address, error) {
	toTopic := common.BytesToHash(sandwich.Bytes())
	logs, err := driver.GetLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Topics:    [][]common.Hash{{transferTopic}, {}, {toTopic}},
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[common.Address]bool)
	var tokens []common.Address
	for _, lg := range logs {
		if !seen[lg.Address] {
			seen[lg.Address] = true
			tokens = append(tokens, lg.Address)
		}
	}
	return tokens, nil
}

func serveMetrics(addr string, logger *obs.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server exited", "err", err)
	}
}
