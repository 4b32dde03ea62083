// Command portal-watch is a terminal client of the portal. It signs in,
// mounts the dashboard or portal layout with its notification bell, and
// with -project follows that project's comment thread; lines typed on stdin
// are posted as comments.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"portal-realtime/internal/portal"
	"portal-realtime/internal/session"
	"portal-realtime/pkg/apiclient"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/logger"
	"portal-realtime/pkg/realtime"
	"portal-realtime/pkg/validation"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config.yaml")
	project := flag.String("project", "", "project id whose comments to follow")
	email := flag.String("email", "", "sign in with this email; the password is read from PORTAL_PASSWORD")
	logout := flag.Bool("logout", false, "forget the stored session and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portal-watch: %v\n", err)
		os.Exit(1)
	}
	if *project != "" {
		cfg.ProjectID = *project
	}

	appLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = appLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *email, *logout, os.Stdin, os.Stdout, appLogger); err != nil {
		appLogger.Error("portal-watch failed", zap.Error(err))
		os.Exit(1)
	}
}

func openStore(cfg *Config, log *zap.Logger) session.Store {
	store, err := session.OpenKeyring(cfg.KeyringDir, cfg.KeyringPassword)
	if err != nil {
		log.Warn("keyring unavailable, session will not persist", zap.Error(err))
		return session.NewMemoryStore()
	}
	return store
}

func run(ctx context.Context, cfg *Config, email string, logout bool, in io.Reader, out io.Writer, log *zap.Logger) error {
	sess, err := session.New(openStore(cfg, log), log)
	if err != nil {
		return err
	}
	if logout {
		return sess.Logout()
	}

	validator := validation.New()
	api := apiclient.New(cfg.APIURL, sess.Token, validator, log)

	if email != "" {
		if _, err := sess.Login(ctx, api, email, os.Getenv("PORTAL_PASSWORD")); err != nil {
			return err
		}
	}
	if !sess.Current().SignedIn() {
		return fmt.Errorf("%w: run with -email first", apperrors.ErrNoSession)
	}

	area := portal.Area(cfg.Area)
	if area == portal.AreaHome {
		if d := portal.Guard(sess.Current(), portal.AreaHome); d.Redirect == portal.PathPortal {
			area = portal.AreaPortal
		} else {
			area = portal.AreaDashboard
		}
	}

	rt := realtime.NewClient(realtime.Options{URL: cfg.RelayURL, Token: sess.Token(), Logger: log})
	defer rt.Close()
	go rt.Conn.Run(ctx)

	notifier := portal.NewLogNotifier(log)
	bell := portal.NewNotificationBell(api, rt, sess, notifier, validator, log)
	layout := portal.NewLayout(area, sess, api, bell, log)
	if d := layout.Mount(ctx); !d.Allow {
		return fmt.Errorf("%s is not available, go to %s: %w", area, d.Redirect, apperrors.ErrForbidden)
	}
	defer layout.Unmount()

	if profile, ok := layout.Profile(); ok {
		fmt.Fprintf(out, "%s | %d unread\n", profile.Name, bell.UnreadCount())
	}

	if cfg.ProjectID == "" {
		<-ctx.Done()
		return nil
	}

	thread := portal.NewCommentThread(cfg.ProjectID, api, rt, sess, notifier, validator, log)
	printer := newThreadPrinter(thread, out)
	thread.OnChange(printer.flush)
	if err := thread.Mount(ctx); err != nil {
		log.Warn("comments unavailable", zap.String("project", cfg.ProjectID), zap.Error(err))
	}
	defer thread.Unmount()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			thread.SetDraft(line)
			if _, err := thread.SubmitDraft(ctx); err != nil && !errors.Is(err, apperrors.ErrEmptyContent) {
				log.Debug("comment not sent", zap.Error(err))
			}
		}
	}
}
