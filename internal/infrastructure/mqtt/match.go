package mqtt

import "strings"

// TopicMatches reports whether a concrete topic matches a subscription
// pattern under MQTT wildcard rules.
//
// Rules:
//   - "+" matches exactly one level: "devices/+/telemetry" matches
//     "devices/POT1/telemetry" but not "devices/POT1/telemetry/extra".
//   - "#" matches the remainder of the topic (zero or more levels) and is
//     only valid as the final level of the pattern.
//   - Otherwise levels must match exactly, and both sides must have the
//     same number of levels.
//
// Dispatch-side routing uses this to pick a handler for an incoming topic
// without asking the broker which subscription produced it.
func TopicMatches(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}

	patternLevels := strings.Split(pattern, "/")
	topicLevels := strings.Split(topic, "/")

	for i, level := range patternLevels {
		if level == "#" {
			// "#" must be the last pattern level; it swallows the rest.
			return i == len(patternLevels)-1
		}
		if i >= len(topicLevels) {
			return false
		}
		if level != "+" && level != topicLevels[i] {
			return false
		}
	}

	return len(patternLevels) == len(topicLevels)
}
