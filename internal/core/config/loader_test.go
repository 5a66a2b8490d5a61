package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
server:
  port: 9090

sheets:
  spreadsheet_id: "sheet-123"
  credentials_file: "creds.json"

partner:
  url: "https://partner.example.com/api/users"
  batch_size: 100

scheduler:
  interval: 120s

database:
  host: "db.internal"
  user: "sync"
  password: "${SYNC_DB_PASSWORD}"
  name: "app"

ssh:
  host: "bastion.internal"
  user: "tunnel"
  password: "secret"
  remote_port: 5432

jobs:
  - name: users
    sheet_tab: "Users"
    column_range: "A:R"
  - name: vip
    sheet_tab: "VIP"
    enrich: true
    use_ssh: true
    query: "SELECT tg_id, username FROM vip_users"
  - name: archive
    sheet_tab: "Archive"
    clear_tail: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("SYNC_DB_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scheduler.Interval != 2*time.Minute {
		t.Errorf("interval = %v, want 2m", cfg.Scheduler.Interval)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("env expansion failed, password = %q", cfg.Database.Password)
	}

	// Defaults
	if cfg.Database.Port != 5432 {
		t.Errorf("database port default = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Scheduler.WarnFetchAt != 10*time.Second {
		t.Errorf("warn_fetch_at default = %v, want 10s", cfg.Scheduler.WarnFetchAt)
	}
	if cfg.Scheduler.StaleAfter != 6*time.Minute {
		t.Errorf("stale_after default = %v, want 3x interval", cfg.Scheduler.StaleAfter)
	}
	if cfg.SSH.Port != 22 {
		t.Errorf("ssh port default = %d, want 22", cfg.SSH.Port)
	}
}

func TestBuildJobSpecs(t *testing.T) {
	t.Setenv("SYNC_DB_PASSWORD", "x")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	specs := cfg.BuildJobSpecs()
	if len(specs) != 3 {
		t.Fatalf("specs = %d, want 3", len(specs))
	}

	users := specs[0]
	if users.ColumnSpan != 18 {
		t.Errorf("users span = %d, want 18 for A:R", users.ColumnSpan)
	}
	if users.Tunnel != nil {
		t.Error("users job must not get a tunnel")
	}
	if users.Query == "" {
		t.Error("users job must fall back to the default query")
	}
	if users.StartRow != 2 {
		t.Errorf("users start row default = %d, want 2", users.StartRow)
	}
	// Stale rows below the written range are cleared unless opted out.
	if !users.ClearTail {
		t.Error("tail clearing must default to on")
	}

	vip := specs[1]
	// Enrichment appends a fixed column set, so the span is forced to A:X.
	if vip.ColumnSpan != 24 {
		t.Errorf("vip span = %d, want 24", vip.ColumnSpan)
	}
	if specs[2].ClearTail {
		t.Error("clear_tail: false must be honored")
	}
	if vip.Tunnel == nil {
		t.Fatal("vip job must get a tunnel")
	}
	if vip.Tunnel.Host != "bastion.internal" || vip.Tunnel.Port != 22 {
		t.Errorf("tunnel endpoint = %s:%d, want bastion.internal:22", vip.Tunnel.Host, vip.Tunnel.Port)
	}
	if vip.Tunnel.RemoteHost != "db.internal" || vip.Tunnel.RemotePort != 5432 {
		t.Errorf("tunnel target = %s:%d, want the database endpoint", vip.Tunnel.RemoteHost, vip.Tunnel.RemotePort)
	}
}

func TestDefaultQueryWidth(t *testing.T) {
	selectList := defaultQuery[strings.Index(defaultQuery, "SELECT"):strings.Index(defaultQuery, "FROM")]
	columns := strings.Count(selectList, ",") + 1
	// 12 fetched + 3 funnel - 2 swapped + 11 enrichment = 24 = A:X. A wider
	// default would push the trailing enrichment columns past the span.
	if columns != 12 {
		t.Errorf("default query selects %d columns, want 12", columns)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"no jobs": `
sheets: {spreadsheet_id: "s"}
database: {host: h, name: n}
`,
		"missing spreadsheet": `
database: {host: h, name: n}
jobs: [{name: a, sheet_tab: A}]
`,
		"bad column range": `
sheets: {spreadsheet_id: "s"}
database: {host: h, name: n}
jobs: [{name: a, sheet_tab: A, column_range: "AR"}]
`,
		"ssh without endpoint": `
sheets: {spreadsheet_id: "s"}
database: {host: h, name: n}
jobs: [{name: a, sheet_tab: A, use_ssh: true}]
`,
		"duplicate job names": `
sheets: {spreadsheet_id: "s"}
database: {host: h, name: n}
jobs: [{name: a, sheet_tab: A}, {name: a, sheet_tab: B}]
`,
	}

	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
