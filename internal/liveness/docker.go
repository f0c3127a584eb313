package liveness

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultInspectTimeout bounds a single docker inspect call.
const DefaultInspectTimeout = 10 * time.Second

// DockerSource reads container state by shelling out to docker inspect.
type DockerSource struct {
	// Timeout bounds each inspect call (default DefaultInspectTimeout).
	Timeout time.Duration
}

// State returns the container's lifecycle state. A missing container is
// not an error.
func (d *DockerSource) State(ctx context.Context, container string) (ContainerState, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultInspectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "docker", "inspect",
		"--format", "{{.State.Status}}", container).CombinedOutput()
	if err != nil {
		msg := string(out)
		if strings.Contains(msg, "No such object") || strings.Contains(msg, "No such container") {
			return StateNotFound, nil
		}
		return StateUnknown, fmt.Errorf("docker inspect %s: %w: %s", container, err, strings.TrimSpace(msg))
	}

	switch strings.TrimSpace(string(out)) {
	case "running":
		return StateRunning, nil
	case "exited", "dead":
		return StateExited, nil
	case "":
		return StateUnknown, nil
	default:
		// created, paused, restarting, removing
		return StateOther, nil
	}
}
