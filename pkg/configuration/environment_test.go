package configuration

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv_LoadsExistingFiles(t *testing.T) {
	tmp := t.TempDir()
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "FINIMPORT_TEST_ENV_LOAD=ok\n")

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("FINIMPORT_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("FINIMPORT_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded, got %q", got)
	}
}

func TestLoadEnv_NoFiles(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no env files, got %d", n)
	}
}

func TestLoad_EmptyLogPathMeansConsoleOnly(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Setenv("LOG_PATH", "")

	c := &Configuration{}
	if err := c.load(nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(c.Unload)

	if c.Logger() == nil {
		t.Fatal("expected a logger")
	}
	if c.logFile != nil {
		t.Fatal("no log file should be opened for an empty LOG_PATH")
	}
	if entries, err := os.ReadDir("."); err == nil && len(entries) != 0 {
		t.Fatalf("console-only logging should create no files, found %v", entries)
	}
}

func TestDatabaseOptionsConnectionString(t *testing.T) {
	d := DatabaseOptions{
		Name: "areluna_finance", Host: "db", Port: "5433", User: "app", Password: "secret",
	}
	want := "host=db port=5433 user=app dbname=areluna_finance password=secret sslmode=disable"
	if got := d.ConnectionString(); got != want {
		t.Fatalf("connection string = %q, want %q", got, want)
	}
}

func TestImportOptionsValidate(t *testing.T) {
	opts := ImportOptions{BatchSize: 50}
	if err := opts.Validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}
	opts.BatchSize = 0
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for zero batch size")
	}
	opts.BatchSize = 5000
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for oversized batch")
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
