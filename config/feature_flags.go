package config

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Flag names.
const (
	// Serve the per-user summary from the Redis read cache.
	FeatureCacheSummary = "cache.summary"

	// Serve the admin validation queue from the Redis read cache.
	FeatureCacheQueue = "cache.queue"

	// Allow a user to restart a REJECTED skill in one step.
	FeatureRestartRejected = "progression.restart_rejected"
)

// FeatureFlags is read once at startup and never changes afterwards.
type FeatureFlags struct {
	rollout map[string]int // flag -> percent of users, 0..100
}

// LoadFeatureFlags enables every flag, then applies FEATURE_<NAME> values
// from v, which may be nil. A value is a boolean or a rollout percent:
//
//	FEATURE_CACHE_SUMMARY=false
//	FEATURE_PROGRESSION_RESTART_REJECTED=50
//
// Unparseable values leave the flag on.
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := &FeatureFlags{rollout: map[string]int{
		FeatureCacheSummary:    100,
		FeatureCacheQueue:      100,
		FeatureRestartRejected: 100,
	}}
	if v == nil {
		return ff
	}

	for name := range ff.rollout {
		key := featureEnvKey(name)
		_ = v.BindEnv(key)
		val := strings.TrimSpace(v.GetString(key))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			ff.rollout[name] = 0
			if b {
				ff.rollout[name] = 100
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			ff.rollout[name] = p
		}
	}
	return ff
}

// "cache.summary" -> "FEATURE_CACHE_SUMMARY"
func featureEnvKey(name string) string {
	return "FEATURE_" + strings.ReplaceAll(strings.ToUpper(name), ".", "_")
}

// IsEnabled reports whether name is on for userID. A partial rollout puts
// each user in a stable bucket; with no user it counts as off. Unknown
// flags and a nil receiver are off.
func (ff *FeatureFlags) IsEnabled(name, userID string) bool {
	if ff == nil {
		return false
	}
	percent := ff.rollout[name]
	switch {
	case percent >= 100:
		return true
	case percent <= 0 || userID == "":
		return false
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}
