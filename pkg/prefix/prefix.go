// Package prefix reads the installed-package view of a conda environment.
//
// Conda records come from conda-meta/*.json. With pip interop enabled,
// packages installed by pip into the prefix's site-packages (*.dist-info and
// *.egg-info) are added as records on the "pypi" channel. A package that
// conda installed never appears twice: its conda record wins.
package prefix

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/spec"
)

// PyPIChannel is the channel name given to pip-installed records.
const PyPIChannel = "pypi"

// Record is one installed package.
type Record struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build,omitempty"`
	Channel string `json:"channel"`
	Subdir  string `json:"subdir,omitempty"`
}

var subdirRE = regexp.MustCompile(`^(noarch|[a-z]+-(64|32|aarch64|arm64|armv6l|armv7l|ppc64le|ppc64|s390x|riscv64))$`)

// ChannelName returns the short channel name:
//
//	https://conda.anaconda.org/conda-forge/linux-64 -> conda-forge
//	https://repo.anaconda.com/pkgs/main/osx-arm64   -> pkgs/main
//	conda-forge                                     -> conda-forge
func (r Record) ChannelName() string {
	if !strings.Contains(r.Channel, "://") {
		return r.Channel
	}
	u, err := url.Parse(r.Channel)
	if err != nil {
		return r.Channel
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if n := len(segs); n > 0 && (segs[n-1] == r.Subdir || subdirRE.MatchString(segs[n-1])) {
		segs = segs[:n-1]
	}
	if len(segs) == 0 || segs[0] == "" {
		return u.Host
	}
	if u.Host == "conda.anaconda.org" {
		return segs[0]
	}
	return strings.Join(segs, "/")
}

// Interop reports whether pip installed the package.
func (r Record) Interop() bool { return r.Channel == PyPIChannel }

// String renders the record as "channel::name==version".
func (r Record) String() string {
	return fmt.Sprintf("%s::%s==%s", r.ChannelName(), r.Name, r.Version)
}

// Data is a read-only snapshot of a prefix.
type Data struct {
	Path       string
	PipInterop bool
	records    map[string]Record // keyed by normalized name
}

// Load reads the prefix at path. A path that is not a conda environment
// yields an [errors.ErrCodeInvalidPrefix] error.
func Load(path string, pipInterop bool) (*Data, error) {
	if err := errors.ValidatePrefixPath(path); err != nil {
		return nil, err
	}
	d := &Data{Path: path, PipInterop: pipInterop, records: make(map[string]Record)}

	conda, err := loadCondaMeta(filepath.Join(path, "conda-meta"))
	if err != nil {
		return nil, err
	}
	for _, r := range conda {
		d.records[spec.Normalize(r.Name)] = r
	}

	if pipInterop {
		for _, r := range loadSitePackages(path) {
			key := spec.Normalize(r.Name)
			if _, ok := d.records[key]; !ok {
				d.records[key] = r
			}
		}
	}
	return d, nil
}

func loadCondaMeta(dir string) ([]Record, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		records = make([]Record, 0, len(files))
		g       errgroup.Group
	)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, f := range files {
		g.Go(func() error {
			data, err := os.ReadFile(f)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPrefix, err, "read %s", f)
			}
			var r Record
			if err := json.Unmarshal(data, &r); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPrefix, err, "decode %s", f)
			}
			if r.Name == "" {
				return nil
			}
			mu.Lock()
			records = append(records, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// sitePackages returns candidate site-packages directories for both the
// POSIX (lib/pythonX.Y) and Windows (Lib) layouts.
func sitePackages(prefix string) []string {
	dirs, _ := filepath.Glob(filepath.Join(prefix, "lib", "python*", "site-packages"))
	if win := filepath.Join(prefix, "Lib", "site-packages"); isDir(win) {
		dirs = append(dirs, win)
	}
	return dirs
}

func loadSitePackages(prefix string) []Record {
	var records []Record
	for _, dir := range sitePackages(prefix) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			var metaFile string
			switch {
			case strings.HasSuffix(name, ".dist-info"):
				metaFile = filepath.Join(dir, name, "METADATA")
			case strings.HasSuffix(name, ".egg-info") && e.IsDir():
				metaFile = filepath.Join(dir, name, "PKG-INFO")
			case strings.HasSuffix(name, ".egg-info"):
				metaFile = filepath.Join(dir, name)
			default:
				continue
			}
			if installer(filepath.Join(dir, name)) == "conda" {
				continue
			}
			r, ok := readMetadata(metaFile, name)
			if ok {
				records = append(records, r)
			}
		}
	}
	return records
}

// installer returns the INSTALLER recorded for a dist-info directory.
func installer(distInfo string) string {
	data, err := os.ReadFile(filepath.Join(distInfo, "INSTALLER"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readMetadata takes Name and Version from core metadata headers, falling
// back to the directory name ("name-version.dist-info").
func readMetadata(path, dirName string) (Record, bool) {
	r := Record{Channel: PyPIChannel}
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				break
			}
			if v, ok := strings.CutPrefix(line, "Name:"); ok {
				r.Name = strings.TrimSpace(v)
			} else if v, ok := strings.CutPrefix(line, "Version:"); ok {
				r.Version = strings.TrimSpace(v)
			}
		}
	}
	if r.Name == "" || r.Version == "" {
		base := strings.TrimSuffix(strings.TrimSuffix(dirName, ".dist-info"), ".egg-info")
		parts := strings.SplitN(base, "-", 3)
		if len(parts) < 2 {
			return Record{}, false
		}
		if r.Name == "" {
			r.Name = parts[0]
		}
		if r.Version == "" {
			r.Version = parts[1]
		}
	}
	r.Name = spec.Normalize(r.Name)
	return r, true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Get returns the record for name, compared in normalized form.
func (d *Data) Get(name string) (Record, bool) {
	r, ok := d.records[spec.Normalize(name)]
	return r, ok
}

// Query returns the records matching a specifier such as "numpy>=1.20".
func (d *Data) Query(raw string) ([]Record, error) {
	s, err := spec.Parse(raw)
	if err != nil {
		return nil, err
	}
	return d.Match(s), nil
}

// Match returns the records whose name matches s and whose version
// satisfies its constraints.
func (d *Data) Match(s *spec.Specifier) []Record {
	r, ok := d.Get(s.Name)
	if !ok || !s.Satisfied(r.Version) {
		return nil
	}
	return []Record{r}
}

// Records returns all records sorted by name.
func (d *Data) Records() []Record {
	out := make([]Record, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of records.
func (d *Data) Len() int { return len(d.records) }

// Python returns the interpreter path inside the prefix at path.
func Python(path string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(path, "python.exe")
	}
	return filepath.Join(path, "bin", "python")
}
