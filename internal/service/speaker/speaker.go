package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/alarm-controller/internal/config"
	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/logger"
)

// Script verbs understood by the sound control command.
const (
	verbStart = "start"
	verbStop  = "stop"
	argDelay  = "delay"
)

// ErrCommandNotSet is returned when no sound control command is configured.
var ErrCommandNotSet = errors.New("sound control command is not set")

// Process runs the sound control command once per start or stop request.
type Process struct {
	command string
	args    []string
	player  string
}

// New creates a speaker from the configured command.
func New(settings config.Speaker) *Process {
	return &Process{
		command: settings.Command,
		args:    slices.Clone(settings.Args),
		player:  settings.Process,
	}
}

// Start runs "<command> [args] start", adding "-- delay" for a delayed start.
func (p *Process) Start(ctx context.Context, delay bool) error {
	verb := []string{verbStart}
	if delay {
		verb = append(verb, "--", argDelay)
	}

	return p.run(ctx, verb...)
}

// Stop runs "<command> [args] stop".
func (p *Process) Stop(ctx context.Context) error {
	return p.run(ctx, verbStop)
}

func (p *Process) run(ctx context.Context, verb ...string) error {
	if p.command == "" {
		return ErrCommandNotSet
	}

	args := append(slices.Clone(p.args), verb...)

	//nolint:gosec // The command comes from the operator's configuration.
	cmd := exec.CommandContext(ctx, p.command, args...)

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if text := strings.TrimSpace(output.String()); text != "" {
			return fmt.Errorf("run %s %s: %w: %s", p.command, strings.Join(verb, " "), err, text)
		}

		return fmt.Errorf("run %s %s: %w", p.command, strings.Join(verb, " "), err)
	}

	logger.DebugKV(ctx, "Sound control finished", "command", p.command, "verb", verb)

	return nil
}

// KillOrphans terminates running player processes and returns how many were killed.
func (p *Process) KillOrphans() (int, error) {
	if p.player == "" {
		return 0, nil
	}

	processList, err := ps.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()
	killed := 0

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != p.player {
			continue
		}

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			return killed, fmt.Errorf("find process %d: %w", process.Pid(), err)
		}

		if err = runningProcess.Kill(); err != nil {
			return killed, fmt.Errorf("kill process %d: %w", process.Pid(), err)
		}

		killed++
	}

	return killed, nil
}

// StateLoader reads the last saved speaker state.
type StateLoader interface {
	Load(ctx context.Context) (*domain.State, error)
}

// Reconcile silences a speaker that the previous run left sounding. The
// controller always starts OFF, so anything still playing is an orphan.
func Reconcile(ctx context.Context, loader StateLoader, p *Process) error {
	previous, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load speaker state: %w", err)
	}

	if !previous.IsSounding {
		return nil
	}

	logger.WarnKV(ctx, "Speaker was left sounding by a previous run",
		"since", previous.Timestamp,
		"actor", previous.LastActor.String(),
	)

	var errs []error

	if err = p.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	killed, err := p.KillOrphans()
	if err != nil {
		errs = append(errs, err)
	}

	if killed > 0 {
		logger.InfoKV(ctx, "Killed orphaned player processes", "count", killed)
	}

	return errors.Join(errs...)
}
