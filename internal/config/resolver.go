package config

import (
	"cmp"
	"slices"
	"strings"
)

// namespaceRank orders module namespaces so that providers of services
// load before their consumers. Unlisted namespaces load in between,
// alphabetically.
var namespaceRank = map[string]int{
	"telemetry": 0,
	"memory":    1,
	"provider":  2,
	"tool":      3,
	"cron":      8,
	"gateway":   9,
}

// Resolve returns the module IDs from the configuration in load order.
// Within a namespace, IDs sort alphabetically so loading is deterministic.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if r := cmp.Compare(rank(a), rank(b)); r != 0 {
			return r
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := namespaceRank[ns]; ok {
		return r
	}
	return 5
}
