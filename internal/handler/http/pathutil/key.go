package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidKey is returned when the key segment in the URL path is invalid.
var ErrInvalidKey = errors.New("invalid key")

// maxKeyLength bounds path keys to keep them usable as database identifiers.
const maxKeyLength = 128

// ExtractKey extracts a string key from a URL path between a prefix and a
// suffix. Unlike ExtractID it accepts opaque identifiers such as user IDs.
//
// Parameters:
//   - path: The full URL path (e.g., "/users/user-42/feed")
//   - prefix: The prefix to remove (e.g., "/users/")
//   - suffix: The suffix to remove (e.g., "/feed"); may be empty
//
// Returns:
//   - string: The extracted key
//   - error: ErrInvalidKey if the key is empty, contains a slash, or the
//     path does not carry the expected prefix and suffix
//
// Example:
//
//	key, err := ExtractKey("/users/user-42/feed", "/users/", "/feed")
//	// Returns: "user-42", nil
func ExtractKey(path, prefix, suffix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", ErrInvalidKey
	}
	key := strings.TrimPrefix(path, prefix)

	if suffix != "" {
		if !strings.HasSuffix(key, suffix) {
			return "", ErrInvalidKey
		}
		key = strings.TrimSuffix(key, suffix)
	}

	if key == "" || len(key) > maxKeyLength || strings.Contains(key, "/") {
		return "", ErrInvalidKey
	}
	return key, nil
}
