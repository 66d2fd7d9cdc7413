package instance

import "github.com/angelmondragon/shopcart-backend/pkg/env"

const defaultID = "local"

// GetID names the running process for logs: the platform dyno id, then the
// container hostname, then "local".
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id, ok := env.Lookup(key); ok {
			return id
		}
	}
	return defaultID
}
