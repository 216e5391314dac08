package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/denylist.yaml
var defaultDenylist []byte

type denylistFile struct {
	Users []string `yaml:"users"`
}

// ScanDenylist returns the built-in denylist merged with STAR_SCAN_DENYLIST.
// Entries are trimmed, blanks dropped and duplicates removed.
func (c StarScanConfig) ScanDenylist() ([]string, error) {
	var f denylistFile
	if err := yaml.Unmarshal(defaultDenylist, &f); err != nil {
		return nil, fmt.Errorf("parse default denylist: %w", err)
	}

	all := append(f.Users, c.Denylist...)
	all = lo.Map(all, func(s string, _ int) string { return strings.TrimSpace(s) })
	all = lo.Compact(all)

	return lo.Uniq(all), nil
}
