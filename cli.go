package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmic/gemlive/audio"
	"github.com/openmic/gemlive/capture"
	"github.com/openmic/gemlive/config"
	"github.com/openmic/gemlive/functions"
	"github.com/openmic/gemlive/gemini"
	"github.com/openmic/gemlive/session"
)

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	var (
		delaySecs       float64
		textOutput      bool
		noAudioInput    bool
		noAudioOutput   bool
		noTextOutput    bool
		noSearch        bool
		noCodeExecution bool
		noFunctions     bool
	)

	cmd := &cobra.Command{
		Use:           "gemlive",
		Short:         "Console client for the Gemini Multimodal Live API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()

			// Pair-flag convention: the --no- form wins.
			if noAudioInput {
				cfg.AudioInput = false
			}
			if noAudioOutput {
				cfg.AudioOutput = false
			}
			cfg.TextOutput = textOutput && !noTextOutput
			if noSearch {
				cfg.Search = false
			}
			if noCodeExecution {
				cfg.CodeExecution = false
			}
			if noFunctions {
				cfg.Functions = false
			}
			cfg.AudioInputSet = flags.Changed("audio-input")
			cfg.AudioOutputSet = flags.Changed("audio-output")
			cfg.InitialMessageDelay = time.Duration(delaySecs * float64(time.Second))

			setupLogging(cfg.LogLevel)

			if err := cfg.LoadEnv(); err != nil {
				return err
			}
			for _, w := range cfg.Normalize() {
				slog.Warn(w)
			}
			if cfg.Host == "" {
				cfg.Host = gemini.DefaultHost
			}
			if cfg.Model == "" {
				cfg.Model = gemini.DefaultModel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.SystemInstruction, "system-instruction", "", "System instruction text")
	f.StringVar(&cfg.InitialMessage, "initial-message", "", "First user message to send to the model")
	f.Float64Var(&delaySecs, "initial-message-delay", 0, "Delay in seconds before sending the initial message")
	f.StringVar(&cfg.Voice, "voice", cfg.Voice, "Voice name. Options are Puck, Charon, Kore, Fenrir, Aoede, Leda, Orus and Zephyr")
	f.BoolVar(&cfg.AudioInput, "audio-input", true, "Enable microphone input")
	f.BoolVar(&noAudioInput, "no-audio-input", false, "Disable microphone input")
	f.BoolVar(&cfg.AudioOutput, "audio-output", true, "Enable audio output")
	f.BoolVar(&noAudioOutput, "no-audio-output", false, "Disable audio output")
	f.BoolVar(&textOutput, "text-output", false, "Enable text output. Audio and text output are mutually exclusive; text wins")
	f.BoolVar(&noTextOutput, "no-text-output", false, "Disable text output")
	f.BoolVar(&cfg.Search, "search", false, "Enable the built-in grounded search tool")
	f.BoolVar(&noSearch, "no-search", false, "Disable the built-in grounded search tool")
	f.BoolVar(&cfg.CodeExecution, "code-execution", false, "Enable the built-in code execution tool")
	f.BoolVar(&noCodeExecution, "no-code-execution", false, "Disable the built-in code execution tool")
	f.BoolVar(&cfg.Functions, "functions", false, "Declare the built-in demo function set to the model")
	f.BoolVar(&noFunctions, "no-functions", false, "Do not declare any functions")
	f.Float64Var(&cfg.ScreenCaptureFPS, "screen-capture-fps", 0, "Enable screen capture at the given frames per second, e.g. 1.0")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	return cmd
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func run(ctx context.Context, cfg *config.Config) error {
	var dev session.Devices

	if cfg.AudioInput || cfg.AudioOutput {
		actx, err := audio.NewContext()
		if err != nil {
			if cfg.AudioInputSet || cfg.AudioOutputSet {
				return fmt.Errorf("failed to initialize audio: %w", err)
			}
			slog.Warn("audio unavailable, continuing text-only", "error", err)
			cfg.AudioInput = false
			cfg.AudioOutput = false
			cfg.TextOutput = true
		} else {
			defer actx.Close()
			if cfg.AudioInput {
				dev.Mic = audio.NewMicrophone(actx, cfg.MicSampleRate, cfg.Channels, cfg.MicChunkMillis)
			}
			if cfg.AudioOutput {
				dev.Speaker = audio.NewSpeaker(cfg.SpeakerSampleRate, cfg.Channels)
			}
		}
	}

	if cfg.ScreenCaptureFPS > 0 {
		screen, err := capture.NewScreen()
		if err != nil {
			slog.Warn("screen capture unavailable, disabled", "error", err)
		} else {
			dev.Grabber = screen
		}
	}

	funcs := functions.NewRegistry()
	if cfg.Functions {
		funcs = functions.Demo()
	}

	transport, err := gemini.Dial(ctx, cfg.Host, cfg.APIKey)
	if err != nil {
		return err
	}
	fmt.Println("Connected to Gemini")

	registry := session.NewRegistry(cfg.RedisURL, cfg.RedisPassword)
	defer registry.Close()

	ctl := session.New(cfg, transport, funcs, registry, dev)
	return ctl.Run(ctx)
}
