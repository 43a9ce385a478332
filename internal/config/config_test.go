package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// When no config exists anywhere, should error. Override
	// searchPathsFunc to avoid finding real config files on the
	// developer/deploy machine (~/.config/osaurus/config.yaml, etc.).
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: ${OSU_TEST_DATA_DIR}\n"), 0600)
	os.Setenv("OSU_TEST_DATA_DIR", "/tmp/osaurus-test")
	defer os.Unsetenv("OSU_TEST_DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DataDir != "/tmp/osaurus-test" {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, "/tmp/osaurus-test")
	}
}

func TestLoad_Pricing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte(
		"pricing:\n  foundation:\n    input_per_million: 3.0\n    output_per_million: 15.0\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	entry, ok := cfg.Pricing["foundation"]
	if !ok {
		t.Fatal("expected pricing entry for \"foundation\"")
	}
	if entry.InputPerMillion != 3.0 || entry.OutputPerMillion != 15.0 {
		t.Errorf("pricing entry = %+v, want {3.0 15.0}", entry)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Port != 1337 {
		t.Errorf("Port = %d, want 1337", cfg.Port)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %q, want ./data", cfg.DataDir)
	}
	if cfg.GenTopP != 1.0 {
		t.Errorf("GenTopP = %f, want 1.0", cfg.GenTopP)
	}
	if cfg.GenKVGroupSize != 64 {
		t.Errorf("GenKVGroupSize = %d, want 64", cfg.GenKVGroupSize)
	}
	if cfg.GenPrefillStepSize != 512 {
		t.Errorf("GenPrefillStepSize = %d, want 512", cfg.GenPrefillStepSize)
	}
	if cfg.StreamBatchChars != 256 {
		t.Errorf("StreamBatchChars = %d, want 256", cfg.StreamBatchChars)
	}
	if cfg.StreamBatchMillis != 16 {
		t.Errorf("StreamBatchMillis = %d, want 16", cfg.StreamBatchMillis)
	}
	if cfg.ToolProbeTokens != 12 {
		t.Errorf("ToolProbeTokens = %d, want 12", cfg.ToolProbeTokens)
	}
	if cfg.ToolProbeBytes != 2048 {
		t.Errorf("ToolProbeBytes = %d, want 2048", cfg.ToolProbeBytes)
	}
}

func TestHost(t *testing.T) {
	cfg := Default()
	if got := cfg.Host(); got != "127.0.0.1" {
		t.Errorf("Host() = %q, want 127.0.0.1", got)
	}
	cfg.ExposeToNetwork = true
	if got := cfg.Host(); got != "0.0.0.0" {
		t.Errorf("Host() with ExposeToNetwork = %q, want 0.0.0.0", got)
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 70000")
	}
}

func TestValidate_GenTopPRange(t *testing.T) {
	cfg := Default()
	cfg.GenTopP = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for genTopP > 1")
	}
	cfg.GenTopP = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for genTopP < 0")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}
	cfg.LogLevel = "trace"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error for valid log level: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	os.Setenv("OSU_PORT", "9001")
	os.Setenv("OSU_STREAM_BATCH_CHARS", "512")
	os.Setenv("OSU_STREAM_BATCH_MS", "32")
	os.Setenv("OSU_TOOL_PROBE_TOKENS", "20")
	os.Setenv("OSU_TOOL_PROBE_BYTES", "4096")
	defer func() {
		os.Unsetenv("OSU_PORT")
		os.Unsetenv("OSU_STREAM_BATCH_CHARS")
		os.Unsetenv("OSU_STREAM_BATCH_MS")
		os.Unsetenv("OSU_TOOL_PROBE_TOKENS")
		os.Unsetenv("OSU_TOOL_PROBE_BYTES")
	}()

	cfg := Default()
	cfg.applyEnvOverrides()

	if cfg.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Port)
	}
	if cfg.StreamBatchChars != 512 {
		t.Errorf("StreamBatchChars = %d, want 512", cfg.StreamBatchChars)
	}
	if cfg.StreamBatchMillis != 32 {
		t.Errorf("StreamBatchMillis = %d, want 32", cfg.StreamBatchMillis)
	}
	if cfg.ToolProbeTokens != 20 {
		t.Errorf("ToolProbeTokens = %d, want 20", cfg.ToolProbeTokens)
	}
	if cfg.ToolProbeBytes != 4096 {
		t.Errorf("ToolProbeBytes = %d, want 4096", cfg.ToolProbeBytes)
	}
}

func TestApplyEnvOverrides_MalformedIgnored(t *testing.T) {
	os.Setenv("OSU_PORT", "not-a-number")
	defer os.Unsetenv("OSU_PORT")

	cfg := Default()
	cfg.applyEnvOverrides()
	if cfg.Port != 1337 {
		t.Errorf("Port = %d, want default 1337 when env override malformed", cfg.Port)
	}
}
