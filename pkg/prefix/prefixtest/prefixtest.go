// Package prefixtest builds throwaway conda prefixes for tests.
package prefixtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// CondaForge is the channel URL most fixtures use.
const CondaForge = "https://conda.anaconda.org/conda-forge/linux-64"

// Prefix is a temporary conda environment on disk.
type Prefix struct {
	t    testing.TB
	Path string
}

// New creates an empty prefix with conda-meta/ and a site-packages tree.
func New(t testing.TB) *Prefix {
	t.Helper()
	p := &Prefix{t: t, Path: t.TempDir()}
	for _, dir := range []string{"conda-meta", p.SitePackages()} {
		if err := os.MkdirAll(filepath.Join(p.Path, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

// SitePackages returns the site-packages path relative to the prefix.
func (p *Prefix) SitePackages() string {
	return filepath.Join("lib", "python3.12", "site-packages")
}

// Conda writes a conda-meta record.
func (p *Prefix) Conda(name, version, channel string) *Prefix {
	p.t.Helper()
	rec := map[string]string{
		"name":    name,
		"version": version,
		"build":   "py312_0",
		"channel": channel,
		"subdir":  "linux-64",
	}
	data, _ := json.Marshal(rec)
	file := filepath.Join(p.Path, "conda-meta", fmt.Sprintf("%s-%s-py312_0.json", name, version))
	if err := os.WriteFile(file, data, 0o644); err != nil {
		p.t.Fatal(err)
	}
	return p
}

// Pip writes a pip-installed *.dist-info directory.
func (p *Prefix) Pip(name, version string) *Prefix {
	p.t.Helper()
	return p.distInfo(name, version, "pip")
}

// CondaDistInfo writes the dist-info conda leaves next to its own record.
func (p *Prefix) CondaDistInfo(name, version string) *Prefix {
	p.t.Helper()
	return p.distInfo(name, version, "conda")
}

func (p *Prefix) distInfo(name, version, installer string) *Prefix {
	dir := filepath.Join(p.Path, p.SitePackages(), fmt.Sprintf("%s-%s.dist-info", name, version))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.t.Fatal(err)
	}
	meta := fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\n\nlong description\nName: ignored\n", name, version)
	if err := os.WriteFile(filepath.Join(dir, "METADATA"), []byte(meta), 0o644); err != nil {
		p.t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "INSTALLER"), []byte(installer+"\n"), 0o644); err != nil {
		p.t.Fatal(err)
	}
	return p
}
