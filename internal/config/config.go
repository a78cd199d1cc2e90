// Package config is the daemon's flag surface plus a SQLite-backed
// override store for the ignore list, adapted from the teacher's
// settings-table idiom (internal/handlers/shared_state.go's
// `SELECT value FROM settings WHERE key=...`).
package config

import (
	"bufio"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds every command-line-configurable path and address this
// daemon needs. spec.md §6 says the core has "no flags"; SPEC_FULL.md
// §2.3 supplements this with the paths a real deployable daemon must
// be told about (it cannot hardcode them the way the kernel-adjacent
// original did via build-time install paths).
type Flags struct {
	ListenAddr     string
	DBPath         string
	ConfigDir      string
	NetworkDir     string
	IgnoreListFile string
	SupervisorURL  string
	AuditKeyPath   string
}

func ParseFlags() *Flags {
	f := &Flags{}
	flag.StringVar(&f.ListenAddr, "listen", "127.0.0.1:9090", "HTTP API listen address")
	flag.StringVar(&f.DBPath, "db", "/var/lib/phosphornetd/phosphornetd.db", "path to SQLite database")
	flag.StringVar(&f.ConfigDir, "config-dir", "/etc/phosphornetd", "directory holding per-interface persisted config files")
	flag.StringVar(&f.NetworkDir, "network-dir", "/etc/systemd/network", "systemd-networkd configuration directory")
	flag.StringVar(&f.IgnoreListFile, "ignore-list", "/etc/phosphornetd/ignore-list", "flat file of interface name patterns to permanently ignore")
	flag.StringVar(&f.SupervisorURL, "supervisor-url", "http://127.0.0.1:9091", "base URL of the link supervisor's IPC surface")
	flag.StringVar(&f.AuditKeyPath, "audit-key", "/var/lib/phosphornetd/audit.key", "path to the HMAC key used to chain audit log rows")
	flag.Parse()
	return f
}

// LoadIgnoreList reads newline-separated interface name patterns from
// path. A missing file yields an empty list, not an error — the ignore
// list is optional configuration.
func LoadIgnoreList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

// EnsureSchema creates the ignore_list_overrides table backing the
// runtime-extendable ignore list.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ignore_list_overrides (
		pattern TEXT PRIMARY KEY
	)`)
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}

// IgnoreListStore persists runtime-added ignore-list patterns so they
// survive a restart, mirroring the teacher's `settings` table pattern
// for durable operator-entered configuration.
type IgnoreListStore struct {
	db *sql.DB
}

func NewIgnoreListStore(db *sql.DB) *IgnoreListStore {
	return &IgnoreListStore{db: db}
}

// Load returns every pattern previously added via Add.
func (s *IgnoreListStore) Load() ([]string, error) {
	rows, err := s.db.Query(`SELECT pattern FROM ignore_list_overrides`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// Add persists a new ignore-list pattern, idempotently.
func (s *IgnoreListStore) Add(pattern string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO ignore_list_overrides (pattern) VALUES (?)`, pattern)
	return err
}
