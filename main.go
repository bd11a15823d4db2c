// Command voicescreen serves a voice screening model over HTTP and analyzes
// recordings from the command line.
package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/Tutortoise/voice-screening-service/analysis"
	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/Tutortoise/voice-screening-service/spectrogram"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "voicescreen",
	Short: "Screen voice recordings for signs of Parkinson's disease",
	Long: `Extract acoustic features from .wav and .mp3 recordings and classify them
with a pretrained ONNX model.

Examples:
  # Run the HTTP service
  voicescreen serve --model parkinsons_model.onnx

  # Analyze a single file
  voicescreen analyze recording.wav

  # Render a log-mel spectrogram
  voicescreen spectrogram recording.wav -o recording.png`,
	SilenceUsage: true,
	// Without a subcommand, serve.
	RunE: runServe,
}

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path (e.g. voicescreen.yaml)")
	flags.String("log-level", "info", "logging level (debug, info, warn, error)")
	flags.String("log-style", "terminal", "logging output style (terminal, logfmt, json, noop)")
	flags.String("model", "parkinsons_model.onnx", "path to the ONNX classifier")
	flags.String("scaler", "", "path to a YAML feature scaler (mean/scale per slot)")
	flags.Int64("healthy-label", analysis.DefaultHealthyLabel, "model label code reported as Healthy")
	flags.String("onnxruntime-lib", "", "path to the ONNX Runtime shared library")

	mustBindPFlag("log.level", flags.Lookup("log-level"))
	mustBindPFlag("log.style", flags.Lookup("log-style"))
	mustBindPFlag("model.path", flags.Lookup("model"))
	mustBindPFlag("model.scaler_path", flags.Lookup("scaler"))
	mustBindPFlag("model.healthy_label", flags.Lookup("healthy-label"))
	mustBindPFlag("onnxruntime.library_path", flags.Lookup("onnxruntime-lib"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("server.addr", "127.0.0.1:5000")
	viper.SetDefault("server.read_timeout", 60*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
	viper.SetDefault("server.cors_origin", "http://localhost:8080")
	viper.SetDefault("server.max_upload_bytes", int64(32<<20))
	viper.SetDefault("server.max_concurrent", runtime.NumCPU())
	viper.SetDefault("server.admission_timeout", 5*time.Second)

	viper.SetDefault("model.pool_size", classifier.DefaultPoolSize)
	viper.SetDefault("model.acquire_timeout", classifier.DefaultAcquireTimeout)
	viper.SetDefault("model.threads", 1)

	viper.SetDefault("audio.target_sample_rate", 0)
	viper.SetDefault("audio.max_duration", 10*time.Minute)
	viper.SetDefault("spectrogram.width", spectrogram.DefaultWidth)
	viper.SetDefault("spectrogram.height", spectrogram.DefaultHeight)
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config file not found: %s\n", cfgFile)
			os.Exit(1)
		}
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName("voicescreen")
	}

	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("VOICESCREEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file [%s]: %v\n", viper.ConfigFileUsed(), err)
		os.Exit(1)
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
