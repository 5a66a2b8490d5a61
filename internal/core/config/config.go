package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/sheetsync/internal/core/domain"
	"github.com/vietddude/sheetsync/internal/infra/partner"
	redisclient "github.com/vietddude/sheetsync/internal/infra/redis"
	"github.com/vietddude/sheetsync/internal/infra/sheets"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Sheets    sheets.Config      `yaml:"sheets"`
	Partner   partner.Config     `yaml:"partner"`
	Scheduler SchedulerConfig    `yaml:"scheduler"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  DatabaseConfig     `yaml:"database"`
	SSH       SSHConfig          `yaml:"ssh"`
	Jobs      []JobConfig        `yaml:"jobs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SchedulerConfig holds tick-loop settings.
type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	WarnFetchAt  time.Duration `yaml:"warn_fetch_at"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	PacingBase   time.Duration `yaml:"pacing_base"`
	PacingJitter time.Duration `yaml:"pacing_jitter"`
	Timezone     string        `yaml:"timezone"`
}

// DatabaseConfig holds the default source database; jobs may override it.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// SSHConfig holds the tunnel endpoint used by jobs with use_ssh.
type SSHConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	RemoteHost string `yaml:"remote_host"`
	RemotePort int    `yaml:"remote_port"`
}

// JobConfig holds settings for one sheet tab.
type JobConfig struct {
	Name        string `yaml:"name"`
	SheetTab    string `yaml:"sheet_tab"`
	ColumnRange string `yaml:"column_range"` // e.g. "A:R"
	StartRow    int    `yaml:"start_row"`
	UseSSH      bool   `yaml:"use_ssh"`
	Enrich      bool   `yaml:"enrich"`
	// ClearTail wipes stale rows below the written range (and the whole
	// range on an empty result). Unset means on; shrinking result sets
	// would otherwise leave ghost rows behind forever.
	ClearTail *bool           `yaml:"clear_tail"`
	Query     string          `yaml:"query"` // empty = default query
	Database  *DatabaseConfig `yaml:"database"`
}

// defaultQuery is the standard per-tab export. Exactly twelve columns: after
// the three funnel columns are appended and enrichment swaps the trailing two
// for its eleven, the enriched row fills the A:X span with no truncation and
// the free-text columns land on the letters the presentation formatting
// targets. Jobs that need a different row set set their own query; the
// subject id must stay in the first column.
const defaultQuery = `
SELECT
    u.tg_id,
    u.username,
    u.first_name,
    u.last_name,
    u.phone,
    u.email,
    u.language_code,
    u.is_premium,
    lr.utm_source,
    lr.utm_medium,
    u.created_at,
    u.updated_at
FROM users u
LEFT JOIN lead_resources lr ON lr.user_id = u.id
ORDER BY u.created_at DESC
`

// Validate checks the configuration for mistakes that would only surface
// mid-tick otherwise.
func (c *AppConfig) Validate() error {
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id is required")
	}
	if len(c.Jobs) == 0 {
		return fmt.Errorf("at least one job is required")
	}

	names := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("jobs[%d]: name is required", i)
		}
		if names[job.Name] {
			return fmt.Errorf("jobs[%d]: duplicate name %q", i, job.Name)
		}
		names[job.Name] = true

		if job.SheetTab == "" {
			return fmt.Errorf("job %q: sheet_tab is required", job.Name)
		}
		if job.ColumnRange != "" && !strings.Contains(job.ColumnRange, ":") {
			return fmt.Errorf("job %q: column_range %q must look like A:R", job.Name, job.ColumnRange)
		}
		if job.UseSSH && (c.SSH.Host == "" || c.SSH.User == "") {
			return fmt.Errorf("job %q: use_ssh requires ssh.host and ssh.user", job.Name)
		}

		db := c.Database
		if job.Database != nil {
			db = *job.Database
		}
		if db.Host == "" || db.Name == "" {
			return fmt.Errorf("job %q: database host and name are required", job.Name)
		}
	}

	return nil
}

// BuildJobSpecs resolves the configuration into immutable job specs.
// Enriched jobs always span A:X because enrichment appends a fixed column
// set; other jobs default to A:R.
func (c *AppConfig) BuildJobSpecs() []domain.JobSpec {
	specs := make([]domain.JobSpec, 0, len(c.Jobs))

	for _, job := range c.Jobs {
		columnRange := job.ColumnRange
		if job.Enrich {
			columnRange = "A:X"
		} else if columnRange == "" {
			columnRange = "A:R"
		}

		query := job.Query
		if query == "" {
			query = defaultQuery
		}

		db := c.Database
		if job.Database != nil {
			db = *job.Database
		}

		clearTail := true
		if job.ClearTail != nil {
			clearTail = *job.ClearTail
		}

		spec := domain.JobSpec{
			Name:       job.Name,
			Query:      query,
			SheetTab:   job.SheetTab,
			StartRow:   job.StartRow,
			ColumnSpan: sheets.SpanWidth(columnRange),
			ClearTail:  clearTail,
			Enrich:     job.Enrich,
			Database: domain.DatabaseSpec{
				Host:     db.Host,
				Port:     db.Port,
				User:     db.User,
				Password: db.Password,
				Name:     db.Name,
				SSLMode:  db.SSLMode,
			},
			WarnFetchAt: c.Scheduler.WarnFetchAt,
		}
		if spec.StartRow <= 0 {
			spec.StartRow = 2
		}

		if job.UseSSH {
			spec.Tunnel = &domain.TunnelSpec{
				Host:       c.SSH.Host,
				Port:       c.SSH.Port,
				User:       c.SSH.User,
				Password:   c.SSH.Password,
				RemoteHost: c.SSH.RemoteHost,
				RemotePort: c.SSH.RemotePort,
			}
			if spec.Tunnel.Port == 0 {
				spec.Tunnel.Port = 22
			}
			if spec.Tunnel.RemoteHost == "" {
				spec.Tunnel.RemoteHost = db.Host
			}
			if spec.Tunnel.RemotePort == 0 {
				spec.Tunnel.RemotePort = db.Port
			}
		}

		specs = append(specs, spec)
	}

	return specs
}
