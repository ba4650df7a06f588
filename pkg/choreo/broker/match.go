package broker

import "strings"

// MatchTopic reports whether a concrete topic matches a subscription.
//
// Topics are "/"-delimited. Within a subscription, "*" matches exactly
// one level and a trailing ">" matches one or more remaining levels.
// Anything else is compared literally.
func MatchTopic(subscription, topic string) bool {
	if subscription == topic {
		return true
	}

	subLevels := strings.Split(subscription, "/")
	topicLevels := strings.Split(topic, "/")

	for i, sub := range subLevels {
		if sub == ">" && i == len(subLevels)-1 {
			return len(topicLevels) > i
		}
		if i >= len(topicLevels) {
			return false
		}
		if sub == "*" {
			continue
		}
		if sub != topicLevels[i] {
			return false
		}
	}
	return len(topicLevels) == len(subLevels)
}

// matchesAny reports whether topic matches at least one subscription.
func matchesAny(subscriptions []string, topic string) bool {
	for _, sub := range subscriptions {
		if MatchTopic(sub, topic) {
			return true
		}
	}
	return false
}
