package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/parley/cmd/parley/cmds"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/persistence"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley keeps branching conversations with generative models",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return initLogger()
	},
	SilenceUsage: true,
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}
	return InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}

	format := config.LogFormat
	if format == "" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}

	var logWriter io.Writer
	switch format {
	case "text":
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	case "json":
		logWriter = os.Stderr
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	log.Logger = log.Output(logWriter)

	level := zerolog.InfoLevel
	if config.Level != "" {
		l, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			return fmt.Errorf("unknown log level %q", config.Level)
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func initConfig(configPath string) error {
	settings.ConfigureEnv(viper.GetViper())
	settings.SetDefaults(viper.GetViper())

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.parley")
		if xdgConfigPath, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(xdgConfigPath + "/parley")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file, flags and environment only
	} else if err != nil {
		return err
	}

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	log.Debug().Str("config", viper.ConfigFileUsed()).Msg("Loaded configuration")
	return nil
}

func init() {
	f := rootCmd.PersistentFlags()
	f.Bool("with-caller", false, "Log caller")
	f.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	f.String("log-format", "", "Log format (json, text), text when stderr is a terminal")
	f.String("log-file", "", "Also log to this file, rotated")
	f.Bool("verbose", false, "Verbose output, including the event router")
	f.String("config", "", "Path to config file (default ./config.yaml or ~/.parley/config.yaml)")

	f.String("api-key", "", "Gemini API key")
	f.String("gemini-base-url", "", "Gemini API endpoint override")
	f.String("openai-api-key", "", "OpenAI API key, used for gpt-*, o1*, o3* and chatgpt* models")
	f.String("openai-base-url", "", "OpenAI-compatible API base url")
	f.String("state-backend", string(persistence.BackendFile), "Where to keep the state (file, sqlite, pebble, memory)")
	f.String("state-path", "", "State file or database (default in the user config directory)")
	f.String("default-model", engine.DefaultModel, "Model used by channels set to auto")
	f.Duration("echo-delay", settings.DefaultEchoDelay, "Delay between words streamed by the echo model")

	cmds.AddCommands(rootCmd)
}

func main() {
	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
	}
	_ = godotenv.Load(".env")
	if err := initConfig(configFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
