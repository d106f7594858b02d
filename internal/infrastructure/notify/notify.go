// Package notify provides the host-side notification and sound sinks used by
// the alert surface when no desktop integration is available.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"fleetpulse/internal/core/domain"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the structured log. Permission is
// granted only when the notifier is enabled.
type LogNotifier struct {
	enabled bool
	logger  *zap.SugaredLogger

	mu    sync.Mutex
	shown []domain.Notification
}

func NewLogNotifier(enabled bool, logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{enabled: enabled, logger: logger}
}

func (n *LogNotifier) RequestPermission(ctx context.Context) (domain.Permission, error) {
	if !n.enabled {
		return domain.PermissionDenied, nil
	}
	return domain.PermissionGranted, nil
}

func (n *LogNotifier) Show(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	n.shown = append(n.shown, note)
	n.mu.Unlock()

	n.logger.Infow("notification",
		"title", note.Title,
		"body", note.Body,
		"tag", note.Tag,
		"priority", note.Priority,
		"require_interaction", note.RequireInteraction,
		"auto_dismiss", note.AutoDismiss,
	)
	return nil
}

// Shown returns the notifications delivered so far.
func (n *LogNotifier) Shown() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, len(n.shown))
	copy(out, n.shown)
	return out
}

// CommandSoundPlayer runs an external player with the sound path appended to
// its arguments, e.g. "paplay" or "afplay". With no command configured it
// only logs.
type CommandSoundPlayer struct {
	name   string
	args   []string
	logger *zap.SugaredLogger
}

func NewCommandSoundPlayer(command string, logger *zap.SugaredLogger) *CommandSoundPlayer {
	fields := strings.Fields(command)
	p := &CommandSoundPlayer{logger: logger}
	if len(fields) > 0 {
		p.name = fields[0]
		p.args = fields[1:]
	}
	return p
}

// Command returns the argv that Play would run for path.
func (p *CommandSoundPlayer) Command(path string) []string {
	if p.name == "" {
		return nil
	}
	argv := append([]string{p.name}, p.args...)
	return append(argv, path)
}

func (p *CommandSoundPlayer) Play(ctx context.Context, path string) error {
	argv := p.Command(path)
	if argv == nil {
		p.logger.Debugw("sound", "path", path)
		return nil
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start sound player: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Debugw("sound player exited", "path", path, "error", err)
		}
	}()
	return nil
}
