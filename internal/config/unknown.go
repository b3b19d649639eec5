package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSectionKeys are the valid keys of each global section.
var knownSectionKeys = map[string][]string{
	"polling": {"max_attempts", "sleep_seconds_onetime", "sleep_seconds_polling"},
	"logging": {"log_file", "log_format", "log_level"},
	"network": {"connect_timeout", "request_timeout", "user_agent"},
}

// knownProfileKeys are the valid flat keys inside [profile.<name>].
var knownProfileKeys = []string{
	"auth_url", "container_engine", "container_registry", "gateway", "gateway_url",
	"ignore_certs", "password", "server", "token", "username",
}

// CheckProfileKey returns an error with a "did you mean?" suggestion when
// key is not a flat profile key.
func CheckProfileKey(key string) error {
	for _, k := range knownProfileKeys {
		if k == key {
			return nil
		}
	}

	return suggest(key, key, knownProfileKeys)
}

// knownTopLevel is every valid top-level table name, sorted for
// deterministic suggestions.
var knownTopLevel = func() []string {
	keys := []string{"profile"}
	for k := range knownSectionKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// knownProfileEntries is knownProfileKeys plus the overridable sections.
var knownProfileEntries = func() []string {
	keys := append([]string{}, knownProfileKeys...)
	for k := range knownSectionKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		if err := unknownKeyError([]string(key)); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key. The key is located by its
// table: a global section, a profile, or a profile's section override.
func unknownKeyError(parts []string) error {
	if len(parts) == 0 {
		return nil
	}

	full := strings.Join(parts, ".")

	switch {
	case len(parts) == 1:
		return suggest(full, parts[0], knownTopLevel)
	case parts[0] == "profile" && len(parts) == 3:
		return suggest(full, parts[2], knownProfileEntries)
	case parts[0] == "profile" && len(parts) >= 4:
		known, ok := knownSectionKeys[parts[2]]
		if !ok {
			return suggest(full, parts[2], knownProfileEntries)
		}

		return suggest(full, parts[3], known)
	case parts[0] == "profile":
		return fmt.Errorf("unknown config key %q", full)
	default:
		known, ok := knownSectionKeys[parts[0]]
		if !ok {
			return suggest(full, parts[0], knownTopLevel)
		}

		return suggest(full, parts[1], known)
	}
}

func suggest(full, leaf string, known []string) error {
	if suggestion := closestMatch(leaf, known); suggestion != "" {
		return fmt.Errorf("unknown config key %q: did you mean %q?", full, suggestion)
	}

	return fmt.Errorf("unknown config key %q", full)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
