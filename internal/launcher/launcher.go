// Package launcher starts the admin panel, the tunnel and the bot as one supervised group.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"plannerbot/internal/tunnel"
)

var (
	// ErrNotReady means a readiness probe ran out of retries.
	ErrNotReady = errors.New("not ready")
	// ErrProcessExited means a child stopped while the group was running.
	ErrProcessExited = errors.New("process exited")
)

// stopGrace is how long a child gets between SIGTERM and SIGKILL.
const stopGrace = 5 * time.Second

type Launcher struct {
	plan Plan
	http *http.Client
	out  io.Writer
	log  *logrus.Entry
}

func New(plan Plan, out io.Writer, log *logrus.Entry) *Launcher {
	return &Launcher{
		plan: plan,
		http: &http.Client{Timeout: 2 * time.Second},
		out:  out,
		log:  log,
	}
}

// Run starts admin, waits for its health check, starts the tunnel, waits for a public URL and
// starts the bot with ADMIN_URL set. It returns when ctx is cancelled (nil) or when any child
// exits or a readiness check fails (error); in both cases every child is stopped first.
func (l *Launcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := l.spawn(gctx, g, l.plan.Admin, nil); err != nil {
			return err
		}
		if err := l.poll(gctx, "admin health", l.checkHealth); err != nil {
			return err
		}
		l.log.WithField("url", l.plan.HealthURL).Info("admin panel is up")

		adminURL := l.plan.AdminURL
		if !l.plan.SkipTunnel {
			if err := l.spawn(gctx, g, l.plan.Tunnel, nil); err != nil {
				return err
			}
			err := l.poll(gctx, "tunnel url", func(ctx context.Context) error {
				url, err := tunnel.PublicURL(ctx, l.http, l.plan.TunnelAPIURL)
				if err == nil {
					adminURL = url
				}
				return err
			})
			if err != nil {
				return err
			}
			l.log.WithField("url", adminURL).Info("tunnel is up")
		}

		if err := l.spawn(gctx, g, l.plan.Bot, map[string]string{"ADMIN_URL": adminURL}); err != nil {
			return err
		}
		l.banner(adminURL)
		return nil
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	l.log.Info("all processes stopped")
	return nil
}

// spawn starts p and registers a group member that waits for it. Exiting before the group is
// cancelled is reported as ErrProcessExited, which cancels everything else.
func (l *Launcher) spawn(ctx context.Context, g *errgroup.Group, p Process, extra map[string]string) error {
	log := l.log.WithField("process", p.Name)

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = os.Environ()
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range extra {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = stopGrace

	stdout := log.WriterLevel(logrus.InfoLevel)
	stderr := log.WriterLevel(logrus.WarnLevel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("start %s: %w", p.Name, err)
	}
	log.WithField("pid", cmd.Process.Pid).Info("process started")

	g.Go(func() error {
		err := cmd.Wait()
		stdout.Close()
		stderr.Close()
		if ctx.Err() != nil {
			log.Info("process stopped")
			return nil
		}
		log.WithError(err).Error("process exited")
		if err != nil {
			return fmt.Errorf("%s: %w: %v", p.Name, ErrProcessExited, err)
		}
		return fmt.Errorf("%s: %w", p.Name, ErrProcessExited)
	})
	return nil
}

// poll retries check up to plan.Retries times, plan.Interval apart.
func (l *Launcher) poll(ctx context.Context, what string, check func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= l.plan.Retries; attempt++ {
		if last = check(ctx); last == nil {
			return nil
		}
		l.log.WithError(last).WithField("attempt", attempt).Debug("waiting for " + what)
		if attempt == l.plan.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.plan.Interval):
		}
	}
	return fmt.Errorf("%s: %w after %d attempts: %v", what, ErrNotReady, l.plan.Retries, last)
}

func (l *Launcher) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.plan.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func (l *Launcher) banner(adminURL string) {
	fmt.Fprintf(l.out, "\n====================================\n")
	fmt.Fprintf(l.out, "🌐 Адмін панель: %s\n", adminURL)
	fmt.Fprintf(l.out, "⏰ Час запуску: %s\n", time.Now().Format("15:04:05"))
	fmt.Fprintf(l.out, "====================================\n\n")
	fmt.Fprintf(l.out, "💡 Для зупинки натисніть Ctrl+C\n")
}
