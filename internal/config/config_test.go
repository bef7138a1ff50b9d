package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spark/internal/device"
	"spark/internal/trace"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[device]
driver = "host"
type = "cpu"

[trace]
level = "stage"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.Driver != "host" || cfg.Path != path {
		t.Errorf("device = %+v path %q", cfg.Device, cfg.Path)
	}
	if kind, _ := cfg.Kind(); kind != device.KindCPU {
		t.Errorf("kind = %s", kind)
	}
	if !cfg.Build.Cache {
		t.Error("build.cache default lost")
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Level != trace.LevelStage || tc.Mode != trace.ModeRing || tc.Format != trace.FormatAuto {
		t.Errorf("trace config = %+v", tc)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "[device]\ncolour = \"red\"\n",
		"bad driver":      "[device]\ndriver = \"cuda\"\n",
		"bad type":        "[device]\ntype = \"fpga\"\n",
		"negative index":  "[device]\nindex = -1\n",
		"bad level":       "[trace]\nlevel = \"loud\"\n",
		"empty cache dir": "[build]\ncache_dir = \"\"\n",
		"syntax":          "[device\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), body)
			if _, err := Load(path); err == nil || !strings.Contains(err.Error(), path) {
				t.Fatalf("Load = %v, want error naming the file", err)
			}
		})
	}
}

func TestResolveFindsParentAndAppliesEnv(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[device]\ndriver = \"opencl\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDriver, "host")
	t.Setenv(EnvCacheDir, filepath.Join(root, "cache"))

	cfg, err := Resolve("", nested)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Path != filepath.Join(root, FileName) {
		t.Errorf("path = %q", cfg.Path)
	}
	if cfg.Device.Driver != "host" {
		t.Errorf("driver = %q, want env override", cfg.Device.Driver)
	}
	cache, err := cfg.OpenCache()
	if err != nil {
		t.Fatal(err)
	}
	if cache.Dir() != filepath.Join(root, "cache") {
		t.Errorf("cache dir = %q", cache.Dir())
	}
}

func TestResolveWithoutFile(t *testing.T) {
	t.Setenv(EnvDriver, "")
	cfg, err := Resolve("", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" || cfg.Device.Driver != "" {
		t.Fatalf("defaults changed: %+v", cfg)
	}
	cfg.Build.Cache = false
	if cache, err := cfg.OpenCache(); cache != nil || err != nil {
		t.Fatalf("disabled cache opened: %v %v", cache, err)
	}
}
