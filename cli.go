package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tutortoise/voice-screening-service/analysis"
	"github.com/Tutortoise/voice-screening-service/audio"
	"github.com/Tutortoise/voice-screening-service/features"
	"github.com/Tutortoise/voice-screening-service/spectrogram"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a .wav or .mp3 recording and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var spectrogramCmd = &cobra.Command{
	Use:   "spectrogram <file>",
	Short: "Render the log-mel spectrogram of a recording as PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpectrogram,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(spectrogramCmd)

	spectrogramCmd.Flags().StringP("output", "o", "", "output PNG path (default: <file>.png)")
	spectrogramCmd.Flags().Int("width", 0, "image width in pixels")
	spectrogramCmd.Flags().Int("height", 0, "image height in pixels")
	mustBindPFlag("spectrogram.width", spectrogramCmd.Flags().Lookup("width"))
	mustBindPFlag("spectrogram.height", spectrogramCmd.Flags().Lookup("height"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !audio.Allowed(path) {
		return fmt.Errorf("%s: %s", path, MsgInvalidFileType)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	logger, err := newLogger(viper.GetString("log.level"), viper.GetString("log.style"))
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	svc, _, cleanup, err := loadService(logger, features.New())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := analysis.WithRequestID(context.Background(), uuid.NewString())
	out := svc.AnalyzeUpload(ctx, data, path)
	return printOutcome(cmd.OutOrStdout(), out)
}

// printOutcome writes the same JSON body the HTTP service would return. A
// failed analysis is also returned as an error.
func printOutcome(w io.Writer, out analysis.Outcome) error {
	var body interface{}
	if out.OK() {
		body = newAnalysisResponse(out.Result)
	} else {
		body = ErrorResponse{Error: out.Failure.Message, Code: string(out.Failure.Kind)}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(body); err != nil {
		return err
	}
	if !out.OK() {
		return out.Failure
	}
	return nil
}

func runSpectrogram(cmd *cobra.Command, args []string) error {
	path := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	}

	signal, err := audio.DecodeFile(path)
	if err != nil {
		return err
	}
	if err := audio.CheckDuration(signal, viper.GetDuration("audio.max_duration")); err != nil {
		return err
	}
	signal, err = audio.Resample(signal, viper.GetInt("audio.target_sample_rate"))
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	renderer := spectrogram.NewRenderer(nil, viper.GetInt("spectrogram.width"), viper.GetInt("spectrogram.height"))
	if err := renderer.WritePNG(f, signal); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
	return nil
}
