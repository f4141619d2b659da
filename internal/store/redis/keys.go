package redis

// DefaultKey holds the state document when no key is configured.
const DefaultKey = "staywatch:state"

// keyPrefix namespaces every key written by staywatch.
const keyPrefix = "staywatch:"

// StateKey returns the key for a named document; an empty name maps to DefaultKey.
func StateKey(name string) string {
	if name == "" {
		return DefaultKey
	}
	return keyPrefix + name
}
