package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PDS_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PDS_DOTENV_PROBE", "")
	os.Unsetenv("PDS_DOTENV_PROBE")

	path := LoadDotEnv()

	if filepath.Base(path) != ".env" {
		t.Errorf("Expected a .env path, got %q", path)
	}
	if got := os.Getenv("PDS_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("Expected variable from .env, got %q", got)
	}
}
