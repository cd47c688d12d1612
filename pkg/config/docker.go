package config

import (
	"os"
	"sync"
)

var inDocker = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// IsRunningInDocker reports whether the process runs inside a Docker container.
// The /.dockerenv probe happens once per process.
func IsRunningInDocker() bool {
	return inDocker()
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when running
// in a container, so a backend on the host machine stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, docker bool) string {
	if !docker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	}
	return host
}

// resolveHosts rewrites the network hosts of every backend section.
func (c *Config) resolveHosts() {
	c.Relational.Host = ResolveHostForDocker(c.Relational.Host)
	c.Registry.Host = ResolveHostForDocker(c.Registry.Host)
	c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
}
