package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"collab-go/internal/api"
	"collab-go/internal/archive"
	"collab-go/internal/auth"
	"collab-go/internal/collab"
	"collab-go/internal/config"
	"collab-go/internal/database"
	"collab-go/internal/dispatch"
	"collab-go/internal/encryption"
	"collab-go/internal/model"
	"collab-go/internal/outbox"
)

// ErrNoSecret is returned when a command needs to sign or verify tokens but
// COLLAB_JWT_SECRET is not set.
var ErrNoSecret = errors.New(EnvJWTSecret + " is not set")

// CollabApp is the application layer between the CLI and collab.Service.
// It constructs all dependencies from config, exposes the commands the CLI
// runs, and manages the resource lifecycle on Close.
type CollabApp struct {
	cfg       *config.Config
	inv       *Invocation
	db        *database.SQLiteDatabase
	encrypted *archive.EncryptedArchive // nil when snapshots are stored in the clear
	hub       *dispatch.Hub
	redis     *dispatch.RedisDispatcher // nil unless dispatch type is redis
	outbox    *outbox.Outbox
	service   *collab.Service
	logger    *slog.Logger
	logFile   *os.File
}

// NewCollabApp creates a fully wired CollabApp from the given config.
// command identifies the CLI command being run (e.g. "serve", "versions").
// The caller must call Close when done.
func NewCollabApp(ctx context.Context, cfg *config.Config, command string) (*CollabApp, error) {
	inv := NewInvocation(command, time.Now().UTC())

	logger, logFile, err := newLogger(cfg.LogDir, inv.RunID, parseLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &CollabApp{cfg: cfg, inv: inv, logger: logger, logFile: logFile}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("command started", "command", command, "node", cfg.NodeID)
	return a, nil
}

func (a *CollabApp) wire(ctx context.Context) error {
	cfg := a.cfg
	log := &slogAdapter{l: a.logger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.NodeID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date (run `collab db migrate`): %w", err)
	}

	store, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil {
		a.encrypted = archive.NewEncryptedArchive(store, enc, nil)
		store = a.encrypted
	}
	if err := store.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating archive: %w", err)
	}

	a.hub = dispatch.NewHub(log, cfg.Server.AllowedOrigins)
	inner, err := dispatch.NewDispatcherFromConfig(cfg.Dispatch, a.hub, log)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	if rd, ok := inner.(*dispatch.RedisDispatcher); ok {
		a.redis = rd
	}
	a.outbox = outbox.New(inner, log, outbox.Options{
		Capacity:   cfg.Dispatch.QueueSize,
		MaxRetries: cfg.Dispatch.MaxRetries,
	})

	opts := collab.Options{
		LockTimeout:    cfg.Collab.LockTimeout(),
		PresenceWindow: cfg.Collab.PresenceWindow(),
		DefaultRole:    model.Role(cfg.Collab.DefaultRole),
	}
	if opts.DefaultRole != "" && !opts.DefaultRole.Valid() {
		return fmt.Errorf("unknown default_role %q", cfg.Collab.DefaultRole)
	}
	a.service = collab.NewService(db, store, db, db, a.outbox, log, collab.RealClock{}, collab.ULIDGenerator{}, opts)
	return nil
}

// Service returns the wired collaboration service.
func (a *CollabApp) Service() *collab.Service {
	return a.service
}

// Logger returns the application logger.
func (a *CollabApp) Logger() collab.Logger {
	return &slogAdapter{l: a.logger}
}

// ArchiveLocked reports whether snapshots are encrypted and the private key
// has not been unlocked yet. A locked archive still accepts new snapshots but
// cannot serve GetVersion or Restore.
func (a *CollabApp) ArchiveLocked() bool {
	return a.encrypted != nil && a.encrypted.Locked()
}

// UnlockArchive opens the archive private key with passphrase.
func (a *CollabApp) UnlockArchive(passphrase string) error {
	if a.encrypted == nil {
		return nil
	}
	if err := a.encrypted.Unlock(passphrase); err != nil {
		return fmt.Errorf("unlocking archive: %w", err)
	}
	a.logger.Info("archive unlocked")
	return nil
}

// Authenticator builds the token verifier from COLLAB_JWT_SECRET.
func (a *CollabApp) Authenticator() (*auth.Authenticator, error) {
	secret := os.Getenv(EnvJWTSecret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	return auth.New([]byte(secret), a.cfg.Auth.Issuer)
}

// IssueToken mints a bearer token for user, valid for the configured TTL.
// The user is recorded in the identity store so its display data decorates
// payloads before the first request.
func (a *CollabApp) IssueToken(ctx context.Context, user *model.User) (string, error) {
	authn, err := a.Authenticator()
	if err != nil {
		return "", err
	}
	if err := a.service.TouchUser(ctx, user); err != nil {
		return "", fmt.Errorf("recording user: %w", err)
	}
	ttl := time.Duration(a.cfg.Auth.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return authn.Issue(user, ttl)
}

// Serve runs the HTTP API, the outbox worker, and (for redis dispatch) the
// subscription bridge until ctx is cancelled. Events still queued at
// shutdown are flushed before Serve returns.
func (a *CollabApp) Serve(ctx context.Context) error {
	authn, err := a.Authenticator()
	if err != nil {
		return err
	}
	if a.ArchiveLocked() {
		a.logger.Warn("archive is locked; version reads and restores will fail until unlocked")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.outbox.Run(ctx)
	}()

	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("connecting to redis: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.redis.Bridge(ctx, a.hub); err != nil {
				a.logger.Error("redis bridge stopped", "error", err)
				cancel()
			}
		}()
	}

	server := api.NewServer(a.service, authn, a.hub, &slogAdapter{l: a.logger})
	serveErr := server.Run(ctx, a.cfg.Server.Addr)

	cancel()
	wg.Wait()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	a.outbox.Flush(flushCtx)

	st := a.outbox.Stats()
	a.logger.Info("dispatch stopped", "delivered", st.Delivered, "dropped", st.Dropped, "queued", st.Queued)
	return serveErr
}

// CreateSpace creates a space owned by actorID together with its initial
// content object.
func (a *CollabApp) CreateSpace(ctx context.Context, actorID string, in collab.SpaceInput) (*model.Space, *model.Content, error) {
	return a.service.CreateSpace(ctx, actorID, in)
}

// ListVersions returns the saved snapshots of a content object, newest first.
func (a *CollabApp) ListVersions(ctx context.Context, ref model.Ref, actorID string) ([]*model.ContentVersion, error) {
	return a.service.ListVersions(ctx, ref, actorID)
}

// Fail marks the running command as failed so Close logs it that way.
func (a *CollabApp) Fail() {
	a.inv.Fail()
}

// Close shuts down the hub, the dispatcher, and the database, then closes
// the log file. Events still queued in the outbox are flushed first.
func (a *CollabApp) Close() error {
	var firstErr error

	if a.outbox != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.outbox.Flush(ctx)
		cancel()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = fmt.Errorf("closing redis: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	a.logger.Info("command finished",
		"command", a.inv.Command, "status", a.inv.Status, "elapsed", a.inv.Elapsed(time.Now().UTC()))
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
