package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IPShard defines the symbols that should be streamed and fetched through a
// specific source IP. Symbols are keyed by exchange name and use the
// exchange's native spelling.
type IPShard struct {
	IP      string              `yaml:"ip"`
	Symbols map[string][]string `yaml:"symbols"`
}

// IPShards represents the full shard configuration.
type IPShards struct {
	Shards []IPShard `yaml:"shards"`
}

// LoadIPShards loads shard configuration from the given path.
func LoadIPShards(path string) (*IPShards, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shards file: %w", err)
	}
	var cfg IPShards
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse shards file: %w", err)
	}
	seen := make(map[string]string)
	for i, shard := range cfg.Shards {
		if shard.IP == "" {
			return nil, fmt.Errorf("shards[%d].ip is required", i)
		}
		for exchange, symbols := range shard.Symbols {
			for _, s := range symbols {
				k := strings.ToLower(exchange) + "|" + strings.ToUpper(s)
				if ip, ok := seen[k]; ok && ip != shard.IP {
					return nil, fmt.Errorf("symbol %s of %s is assigned to both %s and %s", s, exchange, ip, shard.IP)
				}
				seen[k] = shard.IP
			}
		}
	}
	return &cfg, nil
}

// Split groups symbols of exchange by the IP they are assigned to. Symbols no
// shard mentions are grouped under the empty IP, meaning the default route.
// A nil receiver puts everything on the default route.
func (s *IPShards) Split(exchange string, symbols []string) map[string][]string {
	out := make(map[string][]string)
	if s == nil {
		if len(symbols) > 0 {
			out[""] = append([]string(nil), symbols...)
		}
		return out
	}
	assigned := make(map[string]string)
	for _, shard := range s.Shards {
		for ex, list := range shard.Symbols {
			if !strings.EqualFold(ex, exchange) {
				continue
			}
			for _, sym := range list {
				assigned[strings.ToUpper(sym)] = shard.IP
			}
		}
	}
	for _, sym := range symbols {
		ip := assigned[strings.ToUpper(sym)]
		out[ip] = append(out[ip], sym)
	}
	return out
}
