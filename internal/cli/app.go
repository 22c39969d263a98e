package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvinalkan/agent-cards/internal/command"
	"github.com/calvinalkan/agent-cards/internal/config"
	"github.com/calvinalkan/agent-cards/internal/dispatch"
	"github.com/calvinalkan/agent-cards/internal/llm"
	"github.com/calvinalkan/agent-cards/internal/store"
	"github.com/calvinalkan/agent-cards/internal/translate"
)

// Errors returned while preparing a command.
var (
	ErrNoUser       = errors.New("no user configured (set \"user\" in .cards.json, CARDS_USER or --user)")
	ErrUnknownUser  = errors.New("unknown user")
	ErrArgsRequired = errors.New("missing arguments")
)

// Deps replaces collaborators that are normally built from config. The zero
// value builds everything from config.
type Deps struct {
	Chat   llm.Chat         // Chat answers translation and insight requests.
	Now    func() time.Time // Now is the store clock.
	Logger *zap.Logger
}

// app holds what the commands of one invocation share. The store and chat
// are opened on first use so that init and print-config work without them.
type app struct {
	cfg      config.Config
	deps     Deps
	logger   *zap.Logger
	store    *store.Store
	chat     llm.Chat
	terminal bool // terminal is set when stdin is the process's stdin.
}

func newApp(cfg config.Config, deps Deps, errOut zapcore.WriteSyncer) (*app, error) {
	logger := deps.Logger
	if logger == nil {
		var err error

		logger, err = newLogger(cfg.LogLevel, errOut)
		if err != nil {
			return nil, err
		}
	}

	return &app{cfg: cfg, deps: deps, logger: logger}, nil
}

// newLogger builds a JSON logger writing to errOut at level.
func newLogger(level string, errOut zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level: %w", config.ErrInvalid, err)
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, errOut, zap.NewAtomicLevelAt(lvl))

	return zap.New(core), nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}

	_ = a.logger.Sync()
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	var opts []store.Option
	if a.deps.Now != nil {
		opts = append(opts, store.WithClock(a.deps.Now))
	}

	s, err := store.Open(ctx, a.cfg.DataDirAbs, opts...)
	if err != nil {
		return nil, err
	}

	a.store = s

	return s, nil
}

// user resolves the configured acting user.
func (a *app) user(ctx context.Context) (*store.Store, store.User, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, store.User{}, err
	}

	if a.cfg.User == "" {
		return nil, store.User{}, ErrNoUser
	}

	u, err := s.UserByName(ctx, a.cfg.User)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, store.User{}, fmt.Errorf("%w: %s", ErrUnknownUser, a.cfg.User)
	}

	if err != nil {
		return nil, store.User{}, err
	}

	return s, u, nil
}

// chatBackend returns the configured chat. When no backend can be built the
// returned chat fails every call, so translation falls back to search and
// slash commands keep working.
func (a *app) chatBackend(ctx context.Context) llm.Chat {
	if a.chat != nil {
		return a.chat
	}

	a.chat = a.deps.Chat
	if a.chat == nil {
		chat, err := llm.New(ctx, a.cfg.LLM)
		if err != nil {
			a.logger.Warn("language model unavailable", zap.String("provider", a.cfg.LLM.Provider), zap.Error(err))

			chat = llm.ChatFunc(func(context.Context, string, string) (string, error) {
				return "", err
			})
		}

		a.chat = chat
	}

	return a.chat
}

func (a *app) translator(ctx context.Context, s *store.Store) (*translate.Translator, error) {
	ttl, err := a.cfg.CacheTTL()
	if err != nil {
		return nil, err
	}

	var cache translate.Cache = store.NewTranslationCache(s, ttl)
	if a.cfg.Cache.Backend == config.CacheMemory {
		cache = translate.NewMemoryCache(ttl, s.Now)
	}

	return translate.New(a.chatBackend(ctx), cache, a.logger), nil
}

func (a *app) runner(ctx context.Context, s *store.Store) *command.Runner {
	return command.NewRunner(s, a.chatBackend(ctx), a.logger)
}

func (a *app) dispatcher(ctx context.Context, s *store.Store, confirm dispatch.ConfirmFunc) (*dispatch.Dispatcher, error) {
	tr, err := a.translator(ctx, s)
	if err != nil {
		return nil, err
	}

	parser := dispatch.NewParser(tr, s, a.logger)

	return dispatch.NewDispatcher(parser, a.runner(ctx, s), confirm), nil
}

// writeSyncer adapts the command's stderr for zap. Files are locked so
// concurrent log lines do not interleave.
func writeSyncer(w io.Writer) zapcore.WriteSyncer {
	if f, ok := w.(*os.File); ok {
		return zapcore.Lock(f)
	}

	return zapcore.AddSync(w)
}
