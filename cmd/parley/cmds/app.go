package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/generation"
	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/inference/engine/factory"
	"github.com/go-go-golems/parley/pkg/persistence"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App bundles the loaded settings, the persistence adapter and the store for
// the duration of one command.
type App struct {
	Settings *settings.AppSettings
	Adapter  persistence.Adapter
	Store    *conversation.Store
	Engine   engine.Engine
}

// openApp is replaced in tests.
var openApp = func(ctx context.Context) (*App, error) {
	s, err := settings.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, s, nil, factory.NewRouter(s.RouterConfig()))
}

// NewApp loads the state through adapter, or through the adapter configured
// by s when adapter is nil.
func NewApp(ctx context.Context, s *settings.AppSettings, adapter persistence.Adapter, e engine.Engine) (*App, error) {
	if adapter == nil {
		var err error
		adapter, err = s.OpenAdapter()
		if err != nil {
			return nil, err
		}
	}
	state, err := persistence.LoadOrInit(ctx, adapter)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}
	log.Debug().Str("backend", s.StateBackend).Int("channels", len(state.Channels)).Msg("loaded state")
	return &App{
		Settings: s,
		Adapter:  adapter,
		Store:    conversation.NewStore(state, conversation.WithPersister(adapter)),
		Engine:   e,
	}, nil
}

func (a *App) Close() error {
	return a.Adapter.Close()
}

func withApp(ctx context.Context, f func(app *App) error) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close state store")
		}
	}()
	if err := f(app); err != nil {
		return err
	}
	if err := app.Store.LastPersistError(); err != nil {
		log.Warn().Err(err).Msg("last state save failed")
	}
	return nil
}

func (a *App) orchestrator(sinks ...inference.EventSink) *generation.Orchestrator {
	return generation.NewOrchestrator(a.Store, a.Engine,
		generation.WithEventSinks(sinks...),
		generation.WithDefaultModel(a.Settings.DefaultModel),
	)
}

// channelID resolves an empty id to the current channel.
func (a *App) channelID(id string) string {
	if id != "" {
		return id
	}
	return a.Store.CurrentChannel().ID
}

// threadID resolves an empty id to the current thread.
func (a *App) threadID(id string) string {
	if id != "" {
		return id
	}
	return a.Store.CurrentThread().ID
}

// runGeneration starts a generation and prints its streamed output through
// the event router until it resolves.
func (a *App) runGeneration(
	ctx context.Context,
	start func(o *generation.Orchestrator, n *generation.Navigator) (*generation.Generation, error),
) error {
	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return errors.Wrap(err, "could not create event router")
	}
	router.AddHandler("chat", events.TopicChat, events.StepPrinterFunc("model", os.Stdout))

	o := a.orchestrator(inference.NewWatermillSink(router.Publisher, events.TopicChat))
	defer o.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		g, err := start(o, generation.NewNavigator(o))
		if err != nil {
			return err
		}
		return g.Wait(ctx)
	})

	err = eg.Wait()
	if cerr := router.Close(); cerr != nil {
		log.Debug().Err(cerr).Msg("closing event router")
	}
	return err
}
