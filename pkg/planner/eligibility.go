package planner

import (
	"strconv"
	"strings"

	"github.com/cuemby/roller/pkg/types"
)

// disabledTokens is the closed set of opt-in tag values that disable
// replacement. Any other value, including empty, enables it; a missing tag
// means the group is not managed at all. Matching is case-insensitive.
var disabledTokens = map[string]struct{}{
	"0":        {},
	"disabled": {},
	"false":    {},
	"no":       {},
	"off":      {},
}

// ParseReplacementConfig derives the per-group replacement configuration
// from the group's tags. Unrecognized opt-in values fail open: the closed
// token set is the only way to disable a managed group.
func ParseReplacementConfig(tags map[string]string, enabledKey, savedMaxKey string) types.ReplacementConfig {
	var cfg types.ReplacementConfig

	if value, ok := tags[enabledKey]; ok {
		cfg.Managed = true
		_, disabled := disabledTokens[strings.ToLower(strings.TrimSpace(value))]
		cfg.Enabled = !disabled
	}

	if value, ok := tags[savedMaxKey]; ok {
		cfg.HasSavedMaxSize = true
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
			cfg.SavedMaxSize = n
		}
	}

	return cfg
}
