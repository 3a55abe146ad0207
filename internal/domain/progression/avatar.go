package progression

// MinAvatarLevel and MaxAvatarLevel bound the derived avatar level.
const (
	MinAvatarLevel = 1
	MaxAvatarLevel = 5
)

// LevelThreshold is the smallest acquired count that reaches Level.
type LevelThreshold struct {
	Level       int `json:"level"`
	MinAcquired int `json:"minAcquired"`
}

var levelThresholds = []LevelThreshold{
	{Level: 1, MinAcquired: 0},
	{Level: 2, MinAcquired: 3},
	{Level: 3, MinAcquired: 6},
	{Level: 4, MinAcquired: 11},
	{Level: 5, MinAcquired: 16},
}

// LevelThresholds returns a copy of the level table, lowest level first.
func LevelThresholds() []LevelThreshold {
	out := make([]LevelThreshold, len(levelThresholds))
	copy(out, levelThresholds)
	return out
}

// AvatarLevel maps a count of acquired skills to a level in [1, 5].
// Negative counts are treated as zero.
func AvatarLevel(acquiredCount int) int {
	level := MinAvatarLevel
	for _, t := range levelThresholds {
		if acquiredCount >= t.MinAcquired {
			level = t.Level
		}
	}
	return level
}

// NextLevelAt returns the acquired count needed for the next level, or -1 at
// the maximum level.
func NextLevelAt(acquiredCount int) int {
	for _, t := range levelThresholds {
		if t.MinAcquired > acquiredCount {
			return t.MinAcquired
		}
	}
	return -1
}
