// Package config holds the immutable session configuration, built once at
// startup from CLI flags and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Voices are the prebuilt speech voices the Live API accepts.
var Voices = []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede", "Leda", "Orus", "Zephyr"}

// Config is constructed once and passed by reference to every component.
// Nothing mutates it after Load.
type Config struct {
	Host   string
	Model  string
	APIKey string

	SystemInstruction   string
	InitialMessage      string
	InitialMessageDelay time.Duration
	Voice               string

	AudioInput  bool
	AudioOutput bool
	TextOutput  bool

	// AudioInputSet / AudioOutputSet record whether the user asked for the
	// modality explicitly. A device open failure is fatal only then.
	AudioInputSet  bool
	AudioOutputSet bool

	Search        bool
	CodeExecution bool
	Functions     bool

	ScreenCaptureFPS float64

	MicSampleRate     int
	SpeakerSampleRate int
	Channels          int
	MicChunkMillis    int

	LogLevel string

	RedisURL      string
	RedisPassword string
}

// Default returns the configuration before flags and env are applied.
func Default() *Config {
	return &Config{
		Voice:             "Charon",
		AudioInput:        true,
		AudioOutput:       true,
		MicSampleRate:     16000,
		SpeakerSampleRate: 24000,
		Channels:          1,
		MicChunkMillis:    50,
		LogLevel:          "info",
	}
}

// LoadEnv fills in everything that comes from the environment. A .env file is
// honored if present, missing is fine.
func (c *Config) LoadEnv() error {
	_ = godotenv.Load()

	c.APIKey = os.Getenv("GOOGLE_API_KEY")
	if c.APIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY environment variable is required")
	}

	if host := os.Getenv("GEMLIVE_HOST"); host != "" {
		c.Host = host
	}
	if model := os.Getenv("GEMLIVE_MODEL"); model != "" {
		c.Model = model
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.RedisURL = redisURL
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.RedisPassword = redisPassword
	}
	return nil
}

// Normalize resolves modality conflicts the way the CLI documents them:
// audio and text output are mutually exclusive, text wins. Returned warnings
// are for the user, not errors.
func (c *Config) Normalize() []string {
	var warnings []string
	if c.TextOutput && c.AudioOutput {
		warnings = append(warnings,
			"audio output and text output cannot be enabled at the same time; disabling audio output")
		c.AudioOutput = false
	}
	if !c.AudioOutput && !c.TextOutput {
		warnings = append(warnings, "no output modality selected; enabling text output")
		c.TextOutput = true
	}
	return warnings
}

// Validate rejects configurations the service would refuse anyway.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.ScreenCaptureFPS < 0 {
		return fmt.Errorf("invalid screen capture fps: %v", c.ScreenCaptureFPS)
	}
	if c.InitialMessageDelay < 0 {
		return fmt.Errorf("invalid initial message delay: %v", c.InitialMessageDelay)
	}
	for _, v := range Voices {
		if v == c.Voice {
			return nil
		}
	}
	return fmt.Errorf("unknown voice %q, options are %v", c.Voice, Voices)
}
