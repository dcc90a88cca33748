package stats

import (
	"context"
	"slices"
	"strings"

	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

type SortBy string

const (
	SortByDomain SortBy = "domain"
	SortBySize   SortBy = "size"
	SortByFiles  SortBy = "files"
)

type UsageCfg struct {
	// Only include domains containing this string.
	Domain string
	SortBy SortBy
}

type UsageResult struct {
	Device  backup.Device
	Domains []backup.DomainUsage
	// Sum over all included domains, its Domain field is empty.
	Total backup.DomainUsage
}

// Usage summarizes how the entries of the selected device are distributed over domains.
func Usage(ctx context.Context, cfg UsageCfg) (UsageResult, error) {
	s, err := config.BackupSession(ctx)
	if err != nil {
		return UsageResult{}, err
	}
	m, err := s.Manifest()
	if err != nil {
		return UsageResult{}, err
	}

	result := UsageResult{Device: m.Device(), Domains: []backup.DomainUsage{}}
	for _, u := range m.Usage() {
		if cfg.Domain != "" && !strings.Contains(u.Domain, cfg.Domain) {
			continue
		}
		result.Domains = append(result.Domains, u)
		result.Total.Files += u.Files
		result.Total.Directories += u.Directories
		result.Total.Symlinks += u.Symlinks
		result.Total.Bytes += u.Bytes
	}

	switch cfg.SortBy {
	case SortBySize:
		slices.SortStableFunc(result.Domains, func(a, b backup.DomainUsage) int {
			return compareDesc(a.Bytes, b.Bytes)
		})
	case SortByFiles:
		slices.SortStableFunc(result.Domains, func(a, b backup.DomainUsage) int {
			return compareDesc(int64(a.Files), int64(b.Files))
		})
	}
	return result, nil
}

func compareDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
