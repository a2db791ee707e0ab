package config

import (
	"testing"

	"github.com/bitcryptoproject/bitj/wire"
)

func TestPassesCheckpoint(t *testing.T) {
	goodHash, _ := wire.NewHashFromStr("00000000000000000000000000000000000000000000000000000000000000aa")
	badHash, _ := wire.NewHashFromStr("00000000000000000000000000000000000000000000000000000000000000bb")

	params := MainNetParams
	params.Checkpoints = []Checkpoint{{Height: 100, Hash: goodHash}}

	tests := []struct {
		name   string
		height int32
		hash   *wire.Hash
		want   bool
	}{
		{"matching checkpoint", 100, goodHash, true},
		{"mismatching checkpoint", 100, badHash, false},
		{"height without checkpoint", 101, badHash, true},
	}
	for _, test := range tests {
		if got := params.PassesCheckpoint(test.height, test.hash); got != test.want {
			t.Errorf("%s: PassesCheckpoint(%d) = %v, want %v",
				test.name, test.height, got, test.want)
		}
	}
}

func TestNetworkSelection(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ChainTag = IDTestNet
	checked, err := CheckConfig(cfg)
	if err != nil {
		t.Fatalf("CheckConfig: %v", err)
	}
	if checked.ChainTag != IDTestNet || ChainParams != &TestNetParams {
		t.Fatal("testnet selection did not take effect")
	}

	cfg = NewDefaultConfig()
	cfg.ChainTag = "no-such-net"
	if _, err := CheckConfig(cfg); err == nil {
		t.Fatal("invalid chain tag accepted")
	}

	cfg = NewDefaultConfig()
	cfg.DbType = "flatfile"
	if _, err := CheckConfig(cfg); err == nil {
		t.Fatal("invalid db type accepted")
	}

	// Restore the default for other tests.
	cfg = NewDefaultConfig()
	if _, err := CheckConfig(cfg); err != nil {
		t.Fatalf("CheckConfig(default): %v", err)
	}
}

func TestDifficultySwitchHeights(t *testing.T) {
	if MainNetParams.KGWStartHeight != 15200 ||
		MainNetParams.DGWStartHeight != 34140 ||
		MainNetParams.DGW3StartHeight != 68589 {
		t.Fatal("mainnet algorithm switch heights changed")
	}
	if TestNetParams.DGW3StartHeight != 16 {
		t.Fatal("testnet dgw3 switch height changed")
	}
	if MainNetParams.IsTestNet() || !TestNetParams.IsTestNet() {
		t.Fatal("network identification broken")
	}
}
