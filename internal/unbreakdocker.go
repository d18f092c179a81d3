package internal

import (
	"os"
	"os/exec"
)

// UnbreakDocker attaches the current container to the default bridge network
// so integration tests running inside a dev container can reach sibling
// containers started by testcontainers. Errors are ignored; outside of a
// container this is a no-op.
func UnbreakDocker() {
	if hostname, err := os.Hostname(); err == nil {
		exec.Command("docker", "network", "connect", "bridge", hostname).Run()
	}
}
