package config

import (
	"os"
	"sync"
)

// dockerEnvFile is created by the Docker runtime in every container.
const dockerEnvFile = "/.dockerenv"

// dockerHostAlias reaches the developer machine from inside a container.
const dockerHostAlias = "host.docker.internal"

var inContainer = sync.OnceValue(func() bool {
	_, err := os.Stat(dockerEnvFile)
	return err == nil
})

// ResolveHostForDocker rewrites a loopback Postgres or Redis host to the
// Docker host alias when catalog-engine runs in a container.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, inContainer())
}

func resolveHost(host string, containerized bool) string {
	if containerized && (host == "localhost" || host == "127.0.0.1" || host == "::1") {
		return dockerHostAlias
	}
	return host
}
