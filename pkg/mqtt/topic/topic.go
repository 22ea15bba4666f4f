package topic

import "strings"

// Match reports whether topic matches filter, honouring the + and # wildcards.
func Match(filter, topic string) bool {
	if filter == topic {
		return true
	}

	if !strings.Contains(filter, Wildcard) && !strings.Contains(filter, MultiWildcard) {
		return false
	}

	filterParts := strings.Split(filter, Separator)
	topicParts := strings.Split(topic, Separator)

	for i, part := range filterParts {
		if part == MultiWildcard {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if part != Wildcard && part != topicParts[i] {
			return false
		}
	}

	return len(filterParts) == len(topicParts)
}

// StripShare returns the plain filter of a shared subscription.
func StripShare(filter string) string {
	if strings.HasPrefix(filter, SharePrefix) {
		parts := strings.SplitN(filter, Separator, 3)
		if len(parts) == 3 {
			return parts[2]
		}
	}
	return filter
}

// Parent returns topic without its last level. ok is false for single-level topics.
func Parent(topic string) (parent string, ok bool) {
	i := strings.LastIndex(topic, Separator)
	if i <= 0 {
		return "", false
	}
	return topic[:i], true
}

// Last returns the last level of topic.
func Last(topic string) string {
	if i := strings.LastIndex(topic, Separator); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
