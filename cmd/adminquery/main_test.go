package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
)

const testSchema = `
collections:
  - name: orders
    primaryKeys: [id]
    fields:
      - {field: id, type: Number}
      - {field: status, type: String}
      - {field: amount, type: Number}
      - {field: createdAt, columnName: created_at, type: Date}
`

// setupWorkspace creates a file SQLite database, a schema and a config.
func setupWorkspace(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	dbPath := filepath.Join(dir, "app.db")

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, status TEXT, amount INTEGER, created_at TEXT)`,
		`INSERT INTO orders (id, status, amount, created_at) VALUES
			(1, 'paid',    100, '2024-05-01 10:00:00'),
			(2, 'paid',     50, '2024-05-10 10:00:00'),
			(3, 'pending',  30, '2024-05-15 09:00:00')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("setup %q: %v", s, err)
		}
	}

	schemaPath := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(schemaPath, []byte(testSchema), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg := CreateSampleConfig("sqlite")
	cfg.Database.Database = dbPath
	cfg.SchemaFile = schemaPath
	cfg.MetricsFile = filepath.Join(dir, "metrics.prom")
	cfg.Export.BatchSize = 2

	configPath = filepath.Join(dir, "config.yaml")
	if err := SaveConfig(configPath, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	return dir, configPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_List(t *testing.T) {
	dir, cfg := setupWorkspace(t)

	out, err := runCLI(t, "--config", cfg, "--list", "orders", "--query", "filter[status]=paid&sort=amount")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var res struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0]["id"] != float64(2) || res.Records[1]["id"] != float64(1) {
		t.Errorf("records = %v", res.Records)
	}

	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(metrics), "adminquery_query_duration_seconds") {
		t.Errorf("metrics = %s", metrics)
	}
}

func TestRun_Count(t *testing.T) {
	_, cfg := setupWorkspace(t)

	tests := []struct {
		query string
		want  string
	}{
		{"", `"count": 3`},
		{"filter[status]=pending", `"count": 1`},
		{"search=paid", `"count": 2`},
	}
	for _, tt := range tests {
		out, err := runCLI(t, "--config", cfg, "--count", "orders", "--query", tt.query)
		if err != nil {
			t.Fatalf("count %q failed: %v", tt.query, err)
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("count %q = %s, want %s", tt.query, out, tt.want)
		}
	}
}

func TestRun_Stat(t *testing.T) {
	dir, cfg := setupWorkspace(t)

	tests := []struct {
		name   string
		params string
		want   string
	}{
		{
			name:   "value json",
			params: `{"type": "Value", "collection": "orders", "aggregate": "Sum", "aggregate_field": "amount"}`,
			want:   `"countCurrent": 180`,
		},
		{
			name: "pie yaml",
			params: "type: Pie\ncollection: orders\naggregate: Count\ngroup_by_field: status\n" +
				"filters:\n  - {field: amount, value: '100'}\n",
			want: `"key": "paid"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "params")
			if err := os.WriteFile(path, []byte(tt.params), 0o600); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			out, err := runCLI(t, "--config", cfg, "--stat", path)
			if err != nil {
				t.Fatalf("stat failed: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("stat = %s, want %s", out, tt.want)
			}
		})
	}
}

func TestRun_Export(t *testing.T) {
	dir, cfg := setupWorkspace(t)

	csvPath := filepath.Join(dir, "orders.csv")
	if _, err := runCLI(t, "--config", cfg, "--export", "orders", "--output", csvPath, "--query", "sort=id"); err != nil {
		t.Fatalf("csv export failed: %v", err)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	want := "id,status,amount,createdAt\n" +
		"1,paid,100,2024-05-01 10:00:00\n" +
		"2,paid,50,2024-05-10 10:00:00\n" +
		"3,pending,30,2024-05-15 09:00:00\n"
	if string(data) != want {
		t.Errorf("csv =\n%s\nwant\n%s", data, want)
	}

	xlsxPath := filepath.Join(dir, "orders.xlsx")
	if _, err := runCLI(t, "--config", cfg, "--export", "orders", "--format", "xlsx", "--sheet", "orders", "--output", xlsxPath); err != nil {
		t.Fatalf("xlsx export failed: %v", err)
	}
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("orders")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("Expected 4 rows, got %d", len(rows))
	}
}

func TestRun_Errors(t *testing.T) {
	_, cfg := setupWorkspace(t)

	if _, err := runCLI(t, "--config", cfg); !errors.Is(err, errNoCommand) {
		t.Errorf("Expected errNoCommand, got %v", err)
	}
	if _, err := runCLI(t, "--config", cfg, "--list", "nope"); err == nil {
		t.Error("Expected error for unknown collection")
	}
	if _, err := runCLI(t, "--config", cfg, "--list", "orders", "--query", "page[size]=abc"); err == nil {
		t.Error("Expected error for invalid page size")
	}
	if _, err := runCLI(t, "--config", cfg, "--invalidate", "orders"); err == nil {
		t.Error("Expected error when cache is disabled")
	}
	if _, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--list", "orders"); err == nil {
		t.Error("Expected error for missing config")
	}
	if _, err := runCLI(t, "--unknown-flag"); err == nil {
		t.Error("Expected error for unknown flag")
	}
}

func TestCreateConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCLI(t, "--create-config", "postgres", "--config", path)
	if err != nil {
		t.Fatalf("create-config failed: %v", err)
	}
	if !strings.Contains(out, "Created sample postgres config") {
		t.Errorf("output = %s", out)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("port = %d", cfg.Database.Port)
	}

	if _, err := runCLI(t, "--create-config", "oracle", "--config", path); err == nil {
		t.Error("Expected error for unsupported type")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg     LoggingConfig
		wantErr bool
	}{
		{LoggingConfig{}, false},
		{LoggingConfig{Level: "DEBUG", Format: "json"}, false},
		{LoggingConfig{Level: "loud"}, true},
		{LoggingConfig{Format: "xml"}, true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		log, err := newLogger(tt.cfg, &buf)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			continue
		}
		if err == nil {
			log.Info().Msg("hello")
			if !strings.Contains(buf.String(), "hello") {
				t.Errorf("newLogger(%+v) wrote %q", tt.cfg, buf.String())
			}
		}
	}
}
