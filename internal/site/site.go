// Package site resolves a named site profile to SFTP connection parameters.
// Profiles are read-only, key/value configuration documents on disk; there
// is no caching, since each connection attempt looks the profile up fresh.
package site

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrConfigMissing is returned when a site's profile cannot be found or
// parsed.
var ErrConfigMissing = errors.New("site config missing or unreadable")

const (
	sitesDirEnvVar = "AVALON_SFTPC_SITES"
	configSection  = "avalon-sftp"
	defaultPort    = 22
)

// Params are the connection parameters resolved for one site.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string
	// HostKey is the optional base64-decoded ssh-rsa host public key used for
	// pinning. Empty means host verification is disabled.
	HostKey []byte
}

// Directory resolves site names against a directory of "<name>.cfg" files.
type Directory struct {
	dir string
}

// NewDirectory builds a Directory rooted at dir. An empty dir falls back to
// the value of AVALON_SFTPC_SITES, then to a "sites" directory next to the
// running executable.
func NewDirectory(dir string) *Directory {
	if dir == "" {
		dir = ResolveSitesDir()
	}
	return &Directory{dir: dir}
}

// ResolveSitesDir applies the env-var-then-install-path resolution rule.
func ResolveSitesDir() string {
	if v := os.Getenv(sitesDirEnvVar); v != "" {
		return v
	}
	exe, err := os.Executable()
	if err != nil {
		return "sites"
	}
	return filepath.Join(filepath.Dir(exe), "sites")
}

// Lookup loads and parses the profile for name. It never caches: callers are
// expected to invoke it once per connection attempt.
func (d *Directory) Lookup(name string) (Params, error) {
	path := filepath.Join(d.dir, name+".cfg")

	if _, err := os.Stat(path); err != nil {
		return Params{}, fmt.Errorf("%w: %s", ErrConfigMissing, name)
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %s: %v", ErrConfigMissing, name, err)
	}

	section := iniFile.Section(configSection)
	host := section.Key("host").String()
	if host == "" {
		return Params{}, fmt.Errorf("%w: %s: missing host", ErrConfigMissing, name)
	}

	hostKeyRaw := strings.TrimSpace(section.Key("hostkey").String())
	var hostKey []byte
	if hostKeyRaw != "" {
		hostKey, err = base64.StdEncoding.DecodeString(hostKeyRaw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %s: invalid hostkey: %v", ErrConfigMissing, name, err)
		}
	}

	return Params{
		Host:     host,
		Port:     section.Key("port").MustInt(defaultPort),
		Username: section.Key("username").String(),
		Password: section.Key("password").String(),
		HostKey:  hostKey,
	}, nil
}
