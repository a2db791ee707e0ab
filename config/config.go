// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	flags "github.com/btcsuite/go-flags"
)

const (
	DefaultConfigFilename  = "config.json"
	DefaultChainDataDir    = "chain"
	DefaultLoggingFilename = "bitjlog"

	defaultChainTag = IDMainNet
	defaultDbType   = "leveldb"
	defaultLogLevel = "info"
)

var (
	// AppHomeDir is the base directory for chain data and logs.
	AppHomeDir = appDataDir("bitj", false)

	knownDbTypes = []string{"leveldb", "memdb"}

	// ChainTag selects the active network.
	ChainTag = defaultChainTag
)

// Config holds the runtime options of the engine.  Options may come from the
// command line or from a JSON config file; command line wins.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store block chain data"`
	DbType     string `long:"dbtype" description:"Database backend to use for the block chain"`
	ChainTag   string `long:"chaintag" description:"Use the network associated with the tag (mainnet/testnet)"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	LogLevel   string `short:"d" long:"loglevel" description:"Logging level {trace, debug, info, warn, error}"`
	NoCheckpoints bool `long:"nocheckpoints" description:"Disable built-in checkpoints"`
}

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ConfigFile: DefaultConfigFilename,
		DataDir:    filepath.Join(AppHomeDir, DefaultChainDataDir),
		DbType:     defaultDbType,
		ChainTag:   defaultChainTag,
		LogDir:     filepath.Join(AppHomeDir, "logs"),
		LogLevel:   defaultLogLevel,
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
func LoadConfig(args []string) (*Config, error) {
	cfg := NewDefaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if fileExists(cfg.ConfigFile) {
		raw, err := ioutil.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		fileCfg := NewDefaultConfig()
		if err := json.Unmarshal(raw, fileCfg); err != nil {
			return nil, err
		}
		// Re-parse on top of the file values so explicit command line
		// options override the file.
		parser = flags.NewParser(fileCfg, flags.Default)
		if _, err := parser.ParseArgs(args); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	return CheckConfig(cfg)
}

// CheckConfig validates the given config and applies its network selection.
func CheckConfig(cfg *Config) (*Config, error) {
	if !validDbType(cfg.DbType) {
		return nil, fmt.Errorf("invalid dbtype %q: supported types %v",
			cfg.DbType, knownDbTypes)
	}

	switch cfg.ChainTag {
	case IDMainNet:
		ChainParams = &MainNetParams
	case IDTestNet:
		ChainParams = &TestNetParams
	default:
		return nil, fmt.Errorf("invalid chaintag %q", cfg.ChainTag)
	}
	ChainTag = cfg.ChainTag

	if cfg.NoCheckpoints {
		ChainParams.Checkpoints = nil
	}

	return cfg, nil
}

// validDbType returns whether or not dbType is a supported database type.
func validDbType(dbType string) bool {
	for _, knownType := range knownDbTypes {
		if dbType == knownType {
			return true
		}
	}
	return false
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// appDataDir returns the directory ".<appName>" under the user's home
// directory on every operating system, or "." when appName is empty or "."
// or the home directory is unknown.  roaming is not used.
func appDataDir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, "."+appName)
}
