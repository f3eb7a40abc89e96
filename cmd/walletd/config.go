package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "walletd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "walletd.log"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultPeerPort       = 8333
	defaultBanThreshold   = 100
	defaultDedupCapacity  = 256
)

var (
	defaultHomeDir    = btcutil.AppDataDir("walletd", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// NetworkConfig selects exactly one Bitcoin network via its boolean
// flags, the same mutually-exclusive-flag idiom the teacher's own
// per-chain config blocks (cfg.Bitcoin.MainNet/.TestNet3/.RegTest/
// .SimNet) use, trimmed down from a whole chain's worth of chain
// registration options to just the parameter set an SPV client needs.
type NetworkConfig struct {
	MainNet  bool `long:"mainnet" description:"Use the main network"`
	TestNet3 bool `long:"testnet" description:"Use the test network"`
	RegTest  bool `long:"regtest" description:"Use the regression test network"`
	SimNet   bool `long:"simnet" description:"Use the simulation test network"`
}

// Config holds walletd's top-level runtime configuration.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store wallet data"`

	LogDir         string `long:"logdir" description:"Directory to log output"`
	DebugLevel     string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- Alternatively, level can be defined by subsystem: <subsystem>=<level>,<subsystem2>=<level>,..."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	Network NetworkConfig `group:"Network" namespace:"network"`

	ConnectPeers []string `long:"connect" description:"Connect only to the specified peers at startup, in host:port form; may be given multiple times"`

	BanThreshold  int `long:"banthreshold" description:"Fault count after which a peer is disconnected"`
	DedupCapacity int `long:"dedupcapacity" description:"Number of recent transaction hashes to remember for de-duplication"`

	activeNetParams *chaincfg.Params
}

// defaultConfig returns a Config populated with every default value,
// matching the teacher's own defaultConfig-then-flags.Parse layering.
func defaultConfig() Config {
	return Config{
		ConfigFile:      defaultConfigFile,
		DataDir:         defaultDataDir,
		LogDir:          defaultLogDir,
		DebugLevel:      defaultLogLevel,
		MaxLogFiles:     defaultMaxLogFiles,
		MaxLogFileSize:  defaultMaxLogFileSize,
		BanThreshold:    defaultBanThreshold,
		DedupCapacity:   defaultDedupCapacity,
		activeNetParams: &chaincfg.MainNetParams,
	}
}

// loadConfig parses command line flags over the default configuration
// and validates the mutually exclusive network selection, the same
// two-step (defaults, then flags.Parse) shape as the teacher's own
// LoadConfig.
func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := cfg.chooseNetwork(); err != nil {
		return nil, err
	}

	cleanAndExpandPath := func(path string) string {
		if path == "" {
			return path
		}
		return filepath.Clean(os.ExpandEnv(path))
	}
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	for i, addr := range cfg.ConnectPeers {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			cfg.ConnectPeers[i] = net.JoinHostPort(
				addr, fmt.Sprintf("%d", defaultPeerPort),
			)
		}
	}

	return &cfg, nil
}

// chooseNetwork resolves the network flags to a single
// *chaincfg.Params, rejecting the case where more than one network
// was requested.
func (c *Config) chooseNetwork() error {
	var chosen []*chaincfg.Params
	if c.Network.MainNet {
		chosen = append(chosen, &chaincfg.MainNetParams)
	}
	if c.Network.TestNet3 {
		chosen = append(chosen, &chaincfg.TestNet3Params)
	}
	if c.Network.RegTest {
		chosen = append(chosen, &chaincfg.RegressionNetParams)
	}
	if c.Network.SimNet {
		chosen = append(chosen, &chaincfg.SimNetParams)
	}

	switch len(chosen) {
	case 0:
		c.activeNetParams = &chaincfg.MainNetParams
	case 1:
		c.activeNetParams = chosen[0]
	default:
		return fmt.Errorf("only one network may be selected at a time")
	}

	return nil
}

// NetParams returns the chain parameters chooseNetwork resolved.
func (c *Config) NetParams() *chaincfg.Params {
	return c.activeNetParams
}
