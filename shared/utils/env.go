// Package utils reads typed settings from the environment. A variable that
// is unset, blank or unparsable yields the caller's default.
package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of key and whether it holds anything.
func lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func parsed[T any](key string, def T, parse func(string) (T, error)) T {
	value, ok := lookup(key)
	if !ok {
		return def
	}
	v, err := parse(value)
	if err != nil {
		return def
	}
	return v
}

// GetEnv returns key or def.
func GetEnv(key, def string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return def
}

// GetEnvInt returns key parsed as a base 10 int.
func GetEnvInt(key string, def int) int {
	return parsed(key, def, strconv.Atoi)
}

// GetEnvBool accepts what strconv.ParseBool accepts.
func GetEnvBool(key string, def bool) bool {
	return parsed(key, def, strconv.ParseBool)
}

// GetEnvDuration returns key parsed with time.ParseDuration ("900s", "1h30m").
func GetEnvDuration(key string, def time.Duration) time.Duration {
	return parsed(key, def, time.ParseDuration)
}

// GetEnvSeconds reads a whole number of seconds, the unit Lambda timeouts
// are configured in. Zero and negative values yield def.
func GetEnvSeconds(key string, def time.Duration) time.Duration {
	return parsed(key, def, func(s string) (time.Duration, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		if n <= 0 {
			return 0, strconv.ErrRange
		}
		return time.Duration(n) * time.Second, nil
	})
}

// GetEnvList splits a comma separated value into trimmed, non-empty items.
// A value with no items yields def.
func GetEnvList(key string, def []string) []string {
	value, ok := lookup(key)
	if !ok {
		return def
	}

	var items []string
	for _, part := range strings.Split(value, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return def
	}
	return items
}
