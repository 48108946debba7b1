package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/rs/zerolog"
)

// ProcessPlayer plays audio on the server by running an external command such as ffplay or mpv.
// The placeholders {file} and {volume} in the command are substituted for each request.
type ProcessPlayer struct {
	command []string
	logger  zerolog.Logger

	mu      sync.Mutex
	current *exec.Cmd
	done    chan struct{}
}

// NewProcessPlayer creates a player running command
func NewProcessPlayer(command []string) (*ProcessPlayer, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("player command is empty")
	}
	return &ProcessPlayer{
		command: command,
		logger:  logging.GetLogger("player"),
	}, nil
}

// buildArgs substitutes the request into the command template
func buildArgs(command []string, req Request) []string {
	args := make([]string, len(command))
	for i, arg := range command {
		arg = strings.ReplaceAll(arg, "{file}", req.File)
		arg = strings.ReplaceAll(arg, "{volume}", strconv.Itoa(req.Volume))
		args[i] = arg
	}
	return args
}

// Play stops any running playback and starts req.
// The process is not bound to ctx so playback outlives the caller.
func (p *ProcessPlayer) Play(ctx context.Context, req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	args := buildArgs(p.command, req)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		p.logger.Error().Err(err).Str("command", args[0]).Msg("Failed to start player")
		return fmt.Errorf("failed to start player %s: %w", args[0], err)
	}

	done := make(chan struct{})
	p.current = cmd
	p.done = done
	p.logger.Info().
		Str("prayer", string(req.Prayer)).
		Str("file", req.File).
		Int("volume", req.Volume).
		Int("pid", cmd.Process.Pid).
		Msg("Playback started")

	go func() {
		err := cmd.Wait()
		close(done)

		p.mu.Lock()
		if p.current == cmd {
			p.current = nil
			p.done = nil
		}
		p.mu.Unlock()

		if err != nil {
			p.logger.Debug().Err(err).Str("prayer", string(req.Prayer)).Msg("Player exited")
			return
		}
		p.logger.Debug().Str("prayer", string(req.Prayer)).Msg("Playback finished")
	}()
	return nil
}

// Stop kills the running playback, if any
func (p *ProcessPlayer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

// Playing reports whether a playback process is running
func (p *ProcessPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *ProcessPlayer) stopLocked() {
	if p.current == nil {
		return
	}
	cmd, done := p.current, p.done
	p.current = nil
	p.done = nil

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn().Err(err).Int("pid", cmd.Process.Pid).Msg("Failed to stop player")
		return
	}
	<-done
	p.logger.Info().Int("pid", cmd.Process.Pid).Msg("Playback stopped")
}
