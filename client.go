package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"holefill/logger"
)

// Client relays the editor's stdio RPC channel to the daemon socket
type Client struct {
	socketPath string
	args       args
}

func NewClient(a args) *Client {
	return &Client{
		socketPath: getSocketPath(),
		args:       a,
	}
}

func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	go func() {
		_, _ = io.Copy(conn, os.Stdin)
		conn.Close()
	}()

	_, err = io.Copy(os.Stdout, conn)
	return err
}

func (c *Client) EnsureDaemonRunning() error {
	if running, pid := isDaemonRunning(); running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}
	return c.startDaemon()
}

// daemonArgv forwards the flags that shape daemon behaviour
func (c *Client) daemonArgv(self string) []string {
	argv := []string{self, "--daemon"}
	if c.args.Config != "" {
		argv = append(argv, "--config", c.args.Config)
	}
	if c.args.LogLevel != "" {
		argv = append(argv, "--log-level", c.args.LogLevel)
	}
	if c.args.Provider != "" {
		argv = append(argv, "--provider", c.args.Provider)
	}
	if c.args.Model != "" {
		argv = append(argv, "--model", c.args.Model)
	}
	return argv
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon...")

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	_, err = os.StartProcess(self, c.daemonArgv(self), &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
	})
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	return c.waitForDaemon(5*time.Second, 100*time.Millisecond)
}

func (c *Client) waitForDaemon(timeout, poll time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// The socket appears after the pid file; wait for both
		if running, _ := isDaemonRunning(); running {
			if _, err := os.Stat(c.socketPath); err == nil {
				logger.Debug("daemon started successfully")
				return nil
			}
		}
		time.Sleep(poll)
	}
	return fmt.Errorf("daemon failed to start within %v", timeout)
}
