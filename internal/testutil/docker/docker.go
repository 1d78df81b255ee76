// Package docker runs throwaway containers for integration tests.
package docker

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrNotReady is returned when a container never passes its readiness probe.
var ErrNotReady = errors.New("docker: container not ready")

// Container describes an image built from a Dockerfile at the repo root and
// the single port it publishes.
type Container struct {
	Name          string
	Dockerfile    string
	HostPort      string
	ContainerPort string

	// Ready is polled until it returns nil or the deadline passes.
	Ready        func() error
	ReadyTimeout time.Duration

	once sync.Once
	err  error
}

// Addr returns the published host:port.
func (c *Container) Addr() string { return "127.0.0.1:" + c.HostPort }

// Start builds the image and runs the container once per process. Later calls
// return the outcome of the first.
func (c *Container) Start() error {
	c.once.Do(func() {
		if _, err := exec.LookPath("docker"); err != nil {
			c.err = fmt.Errorf("docker executable not found: %w", err)
			return
		}
		_ = c.stop()
		root := repoRoot()
		if err := run("build", "-f", filepath.Join(root, c.Dockerfile), "-t", c.Name, root); err != nil {
			c.err = err
			return
		}
		if err := run("run", "-d", "--rm", "--name", c.Name, "-p", c.HostPort+":"+c.ContainerPort, c.Name); err != nil {
			c.err = err
			return
		}
		c.err = c.waitReady()
	})
	return c.err
}

// Stop removes the container. It is a no-op when Start failed.
func (c *Container) Stop() error {
	if c.err != nil {
		return c.err
	}
	return c.stop()
}

func (c *Container) stop() error {
	cmd := exec.Command("docker", "stop", c.Name)
	cmd.Dir = repoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func (c *Container) waitReady() error {
	if c.Ready == nil {
		return nil
	}
	timeout := c.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	var last error
	for time.Now().Before(deadline) {
		if last = c.Ready(); last == nil {
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	return fmt.Errorf("%w: %s: %v", ErrNotReady, c.Name, last)
}

func run(args ...string) error {
	cmd := exec.Command("docker", args...)
	cmd.Dir = repoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}
