package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"holefill/buffer"
	"holefill/completion"
	"holefill/engine"
	"holefill/logger"
	"holefill/provider"

	"github.com/neovim/go-client/nvim"
)

type Daemon struct {
	config      Config
	args        args
	engine      *engine.Engine
	rpc         *rpcService
	listener    net.Listener
	watcher     *configWatcher
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(config Config, a args) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	backend, err := provider.NewBackend(ctx, config.providerType(), config.providerConfig())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create backend: %w", err)
	}

	eng := engine.NewEngine(completion.NewClient(backend), config.engineConfig())

	return &Daemon{
		config:     config,
		args:       a,
		engine:     eng,
		rpc:        &rpcService{engine: eng},
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	logger.Info("daemon listening on socket: %s", d.socketPath)

	d.engine.Start()
	d.watchConfig()
	d.setupShutdownHandling()

	go d.acceptConnections()
	go d.monitorIdleShutdown(time.Duration(d.config.IdleShutdown) * time.Second)

	<-d.ctx.Done()
	logger.Info("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.socketPath, err)
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received %s", sig)
			d.Stop()
		case <-d.ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if d.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("error accepting connection: %v", err)
			continue
		}

		count := atomic.AddInt64(&d.clientCount, 1)
		logger.Info("new client connected, total clients: %d", count)
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		count := atomic.AddInt64(&d.clientCount, -1)
		logger.Info("client disconnected, remaining clients: %d", count)
	}()

	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		logger.Error("error creating nvim client: %v", err)
		return
	}

	if err := d.registerHandlers(n); err != nil {
		logger.Error("error registering handlers: %v", err)
		return
	}

	if err := n.Serve(); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("error serving connection: %v", err)
	}
}

// registerHandlers exposes the completion flow to one editor connection.
//
//	holefill_complete(selection_count, selected|nil) -> [{text, line, col}]
//	holefill_accept(buffer, text)
func (d *Daemon) registerHandlers(n *nvim.Nvim) error {
	if err := n.RegisterHandler(MethodComplete, func(v *nvim.Nvim, selectionCount int, selected *selectedItem) ([]suggestionReply, error) {
		return d.rpc.complete(d.ctx, buffer.New(v), selectionCount, selected), nil
	}); err != nil {
		return err
	}
	return n.RegisterHandler(MethodAccept, func(_ *nvim.Nvim, bufferID int, accepted string) {
		d.rpc.accept(bufferID, accepted)
	})
}

// monitorIdleShutdown stops the daemon once no editor has been connected for
// the whole timeout. A zero timeout disables it.
func (d *Daemon) monitorIdleShutdown(timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	ticker := time.NewTicker(min(timeout, time.Second))
	defer ticker.Stop()

	idleSince := time.Now()
	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-ticker.C:
			if atomic.LoadInt64(&d.clientCount) > 0 {
				idleSince = now
				continue
			}
			if now.Sub(idleSince) >= timeout {
				logger.Info("no clients connected for %v, shutting down daemon", timeout)
				d.Stop()
				return
			}
		}
	}
}

// watchConfig applies log level changes from the config file while running
func (d *Daemon) watchConfig() {
	path := d.args.Config
	if path == "" {
		path = configPath(os.Getenv)
	}
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	w, err := newConfigWatcher(path, d.reloadConfig)
	if err != nil {
		logger.Warn("config changes will not be picked up: %v", err)
		return
	}
	d.watcher = w
	go w.run(d.ctx)
}

func (d *Daemon) reloadConfig() {
	config, err := loadConfig(d.args, os.Getenv)
	if err != nil {
		logger.Warn("config reload: %v", err)
		return
	}
	level := logger.ParseLevel(config.LogLevel)
	logger.Default().SetLevel(level)
	logger.Info("config reloaded, log level %s", level)
}

func (d *Daemon) Stop() {
	d.engine.Stop()
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
	if d.watcher != nil {
		<-d.watcher.done()
	}
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		logger.Warn("could not write PID file: %v", err)
	}
	logger.Info("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove PID file: %v", err)
	}
}
