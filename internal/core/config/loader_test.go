package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "https://rpc.example.org/key")

	path := writeConfig(t, `
networks:
  - name: mainnet
    rpc_url: ${TEST_RPC_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Networks[0].RPCURL != "https://rpc.example.org/key" {
		t.Errorf("Expected expanded RPC URL, got %s", cfg.Networks[0].RPCURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
networks:
  - name: xdai
    rpc_url: http://localhost:8545
    months: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backfill.Months != 4 {
		t.Errorf("Months = %d, want 4", cfg.Backfill.Months)
	}
	if cfg.Backfill.MinBatchSize != 10 || cfg.Backfill.MaxBatchSize != 10000 {
		t.Errorf("unexpected batch bounds: %d..%d", cfg.Backfill.MinBatchSize, cfg.Backfill.MaxBatchSize)
	}
	if cfg.Backfill.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want 24h", cfg.Backfill.CacheTTL)
	}
	if cfg.Networks[0].SettlementAddress != DefaultSettlementAddress {
		t.Errorf("SettlementAddress = %s", cfg.Networks[0].SettlementAddress)
	}
	if got := cfg.MonthsFor(cfg.Networks[0]); got != 2 {
		t.Errorf("MonthsFor = %d, want 2", got)
	}
	if cfg.Orderbook.RetryAttempts != 0 {
		t.Errorf("RetryAttempts = %d, want 0", cfg.Orderbook.RetryAttempts)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown network",
			content: `
networks:
  - name: solana
`,
			wantErr: "unknown network",
		},
		{
			name: "inverted batch bounds",
			content: `
backfill:
  min_batch_size: 500
  max_batch_size: 100
`,
			wantErr: "min_batch_size",
		},
		{
			name: "duplicate network",
			content: `
networks:
  - name: base
  - name: base
`,
			wantErr: "listed twice",
		},
		{
			name: "negative order retries",
			content: `
orderbook:
  retry_attempts: -1
`,
			wantErr: "retry_attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
