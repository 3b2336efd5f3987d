package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// fakeBackend records operations in order.
type fakeBackend struct {
	ops      []string
	statuses map[string]ResourceStatus
}

func (f *fakeBackend) Up(ctx context.Context, name string, r *Resource, envVars map[string]string) error {
	f.ops = append(f.ops, "up:"+name)
	return nil
}

func (f *fakeBackend) Down(ctx context.Context, name string) error {
	f.ops = append(f.ops, "down:"+name)
	return nil
}

func (f *fakeBackend) Restart(ctx context.Context, name string) error {
	f.ops = append(f.ops, "restart:"+name)
	return nil
}

func (f *fakeBackend) Status(ctx context.Context, name string) (ResourceStatus, error) {
	if status, ok := f.statuses[name]; ok {
		return status, nil
	}
	return StatusMissing, nil
}

func testConfig() *Config {
	return &Config{
		Name: "demo",
		Env:  "dev",
		Resources: []*Resource{
			{Name: "app", Image: "app:latest", Group: "web", DependsOn: []string{"postgres", "redis"}},
			{Name: "postgres", Image: "postgres:16", Group: "db"},
			{Name: "redis", Image: "redis:7", Group: "db"},
		},
	}
}

func TestSortByDependencies(t *testing.T) {
	cfg := testConfig()
	ordered, err := SortByDependencies(cfg.Resources)
	if err != nil {
		t.Fatalf("sort failed: %v", err)
	}

	pos := make(map[string]int)
	for i, r := range ordered {
		pos[r.Name] = i
	}
	if pos["app"] < pos["postgres"] || pos["app"] < pos["redis"] {
		t.Errorf("app must come after its dependencies, got order %v", pos)
	}
}

func TestSortByDependenciesCycle(t *testing.T) {
	resources := []*Resource{
		{Name: "a", Image: "a", DependsOn: []string{"b"}},
		{Name: "b", Image: "b", DependsOn: []string{"a"}},
	}
	if _, err := SortByDependencies(resources); err == nil {
		t.Fatal("expected cycle error, got nil")
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input   string
		want    Filter
		wantErr bool
	}{
		{"", Filter{}, false},
		{"dev", Filter{Env: "dev"}, false},
		{"dev:db:", Filter{Env: "dev", Group: "db"}, false},
		{"::postgres", Filter{Name: "postgres"}, false},
		{"a:b:c:d", Filter{}, true},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFilter(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFilter(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilter(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestEngineUpOrder(t *testing.T) {
	backend := &fakeBackend{}
	engine := NewEngine(testConfig(), backend, zerolog.Nop())
	engine.SetIO(strings.NewReader(""), &strings.Builder{})

	err := engine.Up(context.Background(), Options{AutoApprove: true})
	if err != nil {
		t.Fatalf("up failed: %v", err)
	}

	if len(backend.ops) != 3 {
		t.Fatalf("expected 3 operations, got %v", backend.ops)
	}
	if backend.ops[2] != "up:demo-app" {
		t.Errorf("app must come up last, got %v", backend.ops)
	}
}

func TestEngineDownReverseOrder(t *testing.T) {
	backend := &fakeBackend{}
	engine := NewEngine(testConfig(), backend, zerolog.Nop())
	engine.SetIO(strings.NewReader(""), &strings.Builder{})

	err := engine.Down(context.Background(), Options{AutoApprove: true})
	if err != nil {
		t.Fatalf("down failed: %v", err)
	}

	if len(backend.ops) != 3 {
		t.Fatalf("expected 3 operations, got %v", backend.ops)
	}
	if backend.ops[0] != "down:demo-app" {
		t.Errorf("app must come down first, got %v", backend.ops)
	}
}

func TestEngineDryRun(t *testing.T) {
	backend := &fakeBackend{}
	engine := NewEngine(testConfig(), backend, zerolog.Nop())
	var out strings.Builder
	engine.SetIO(strings.NewReader(""), &out)

	err := engine.Up(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(backend.ops) != 0 {
		t.Errorf("dry run must not touch the backend, got %v", backend.ops)
	}
	if !strings.Contains(out.String(), "3 resource(s) to up") {
		t.Errorf("expected plan output, got %q", out.String())
	}
}

func TestEngineConfirmDeclined(t *testing.T) {
	backend := &fakeBackend{}
	engine := NewEngine(testConfig(), backend, zerolog.Nop())
	var out strings.Builder
	engine.SetIO(strings.NewReader("n\n"), &out)

	err := engine.Up(context.Background(), Options{})
	if err != nil {
		t.Fatalf("up failed: %v", err)
	}
	if len(backend.ops) != 0 {
		t.Errorf("declined confirm must not touch the backend, got %v", backend.ops)
	}
	if !strings.Contains(out.String(), "Aborted") {
		t.Errorf("expected abort message, got %q", out.String())
	}
}

func TestEngineGroupFilter(t *testing.T) {
	backend := &fakeBackend{}
	engine := NewEngine(testConfig(), backend, zerolog.Nop())
	engine.SetIO(strings.NewReader(""), &strings.Builder{})

	filter, err := ParseFilter(":db:")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if err := engine.Up(context.Background(), Options{Filter: filter, AutoApprove: true}); err != nil {
		t.Fatalf("up failed: %v", err)
	}

	if len(backend.ops) != 2 {
		t.Fatalf("expected only db group resources, got %v", backend.ops)
	}
	for _, op := range backend.ops {
		if op == "up:demo-app" {
			t.Errorf("app is not in db group but was applied: %v", backend.ops)
		}
	}
}

func TestEnginePatchRecreates(t *testing.T) {
	backend := &fakeBackend{}
	engine := NewEngine(testConfig(), backend, zerolog.Nop())
	engine.SetIO(strings.NewReader(""), &strings.Builder{})

	filter, _ := ParseFilter("::postgres")
	if err := engine.Patch(context.Background(), Options{Filter: filter, AutoApprove: true}); err != nil {
		t.Fatalf("patch failed: %v", err)
	}

	want := []string{"down:demo-postgres", "up:demo-postgres"}
	if len(backend.ops) != 2 || backend.ops[0] != want[0] || backend.ops[1] != want[1] {
		t.Errorf("expected %v, got %v", want, backend.ops)
	}
}

func TestLoadWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workspace.yaml")
	content := `
name: demo
env: dev
env_vars:
  LOG_LEVEL: debug
resources:
  - name: postgres
    group: db
    image: postgres:16
    ports:
      - "5432:5432"
    env_vars:
      POSTGRES_PASSWORD: secret
  - name: app
    image: app:latest
    depends_on:
      - postgres
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write workspace file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	if cfg.Name != "demo" || len(cfg.Resources) != 2 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Resources[0].EnvVars["POSTGRES_PASSWORD"] != "secret" {
		t.Errorf("resource env vars not parsed: %+v", cfg.Resources[0])
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	cfg := &Config{
		Name: "demo",
		Resources: []*Resource{
			{Name: "app", Image: "app", DependsOn: []string{"missing"}},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown dependency")
	}
}
