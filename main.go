package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"holefill/logger"

	"github.com/alexflint/go-arg"
)

const (
	ProgramName = "holefill"
	Version     = "v0.1.0"
)

type args struct {
	Daemon   bool   `arg:"--daemon" help:"run the completion daemon instead of relaying stdio to it"`
	Config   string `arg:"--config,-c" help:"path to a TOML config file" placeholder:"FILE"`
	LogLevel string `arg:"--log-level" help:"trace, debug, info, warn or error"`
	Provider string `arg:"--provider" help:"completion backend: openai, gemini or compat"`
	Model    string `arg:"--model" help:"model name passed to the backend"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", ProgramName, Version)
}

func (args) Description() string {
	return "Inline code completion daemon for Neovim backed by a hole-filling LLM prompt"
}

// runtimePath places daemon files next to the executable
func runtimePath(name string) string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(execPath), name)
}

func getSocketPath() string { return runtimePath(ProgramName + ".sock") }

func getPidPath() string { return runtimePath(ProgramName + ".pid") }

// setupLogger routes both the package logger and the standard log package to
// holefill.log. Caller must Close the result.
func setupLogger(level string) *logger.Logger {
	l, err := logger.OpenFile(runtimePath(ProgramName+".log"), logger.ParseLevel(level))
	if err != nil {
		log.Fatalf("error opening log: %v", err)
	}
	log.SetOutput(l)
	return l
}

func readPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func isDaemonRunning() (bool, int) {
	pid, ok := readPid(getPidPath())
	if !ok {
		return false, 0
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	// Signal 0 only checks that the process exists
	return process.Signal(syscall.Signal(0)) == nil, pid
}

func runDaemon(a args) {
	config, err := loadConfig(a, os.Getenv)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	l := setupLogger(config.LogLevel)
	defer l.Close()
	logger.Info("config: %s", config)

	daemon, err := NewDaemon(config, a)
	if err != nil {
		logger.Fatal("error creating daemon: %v", err)
	}
	if err := daemon.Start(); err != nil {
		logger.Fatal("error starting daemon: %v", err)
	}
}

func runClient(a args) {
	client := NewClient(a)

	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}
	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	if a.Daemon {
		runDaemon(a)
		return
	}
	runClient(a)
}
