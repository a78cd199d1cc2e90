package ethif

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config is the subset of the supervisor's persisted per-interface
// configuration the core reads when (re)creating an EthernetInterface.
// Parsing the supervisor's full key=value file format is out of scope
// (spec.md §1); this loader reads only the handful of keys the core
// itself consumes.
type Config struct {
	DNSServers []string
	NTPServers []string
}

// ConfigLoader reads a named interface's persisted configuration.
type ConfigLoader interface {
	Load(name string) (Config, error)
}

// FileConfigLoader loads Config from <dir>/<name>.conf, a flat
// key=value file with comma-separated list values. A missing file is
// not an error — it yields a zero Config, matching a never-configured
// interface.
type FileConfigLoader struct {
	Dir string
}

func NewFileConfigLoader(dir string) *FileConfigLoader {
	return &FileConfigLoader{Dir: dir}
}

func (l *FileConfigLoader) Load(name string) (Config, error) {
	var cfg Config
	path := filepath.Join(l.Dir, name+".conf")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		values := splitNonEmpty(value, ",")
		switch key {
		case "DNS":
			cfg.DNSServers = values
		case "NTP":
			cfg.NTPServers = values
		}
	}
	return cfg, scanner.Err()
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
