// Command transcribe sends one audio file to the transcription service,
// prints the result and writes the requested exports.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/codebuildervaibhav/convertanything/internal/apperr"
	"github.com/codebuildervaibhav/convertanything/internal/audio"
	"github.com/codebuildervaibhav/convertanything/internal/backend"
	"github.com/codebuildervaibhav/convertanything/internal/config"
	"github.com/codebuildervaibhav/convertanything/internal/export"
	"github.com/codebuildervaibhav/convertanything/internal/logging"
	"github.com/codebuildervaibhav/convertanything/internal/session"
	"github.com/codebuildervaibhav/convertanything/internal/storage"
	"github.com/codebuildervaibhav/convertanything/internal/types"
	"github.com/codebuildervaibhav/convertanything/internal/views"
)

type cliOptions struct {
	file         string
	model        string
	speakers     bool
	speakerCount int
	view         string
	formats      []string
	out          string
	configFile   string
	printConfig  bool
	driveAuth    bool
	upload       bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.Message(err))
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	defaults := types.DefaultOptions()
	var opts cliOptions

	flags := pflag.NewFlagSet("transcribe", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.file, "file", "f", "", "audio file to transcribe ("+strings.Join(audio.SupportedFormats(), ", ")+")")
	flags.StringVarP(&opts.model, "model", "m", defaults.Model, "model: tiny, base, small, medium or large")
	flags.BoolVar(&opts.speakers, "speakers", defaults.SpeakerSeparation, "separate speakers")
	flags.IntVar(&opts.speakerCount, "speaker-count", defaults.SpeakerCount, "expected number of speakers (1-10)")
	flags.StringVar(&opts.view, "view", string(views.ModeFormatted), "view to print: formatted, timeline or raw")
	flags.StringSliceVar(&opts.formats, "format", nil, "export format, repeatable: txt, json, csv, srt, pdf or all")
	flags.StringVarP(&opts.out, "out", "o", ".", "directory for exports")
	flags.StringVar(&opts.configFile, "config", "", "path to config.yaml")
	flags.BoolVar(&opts.printConfig, "print-config", false, "print the effective configuration and exit")
	flags.BoolVar(&opts.driveAuth, "drive-auth", false, "authorize Google Drive access and exit")
	flags.BoolVar(&opts.upload, "upload", false, "also save exports to the configured Google Drive and S3 sinks")
	flags.String("backend-url", "", "transcription service base URL")
	flags.Duration("timeout", 0, "request timeout")
	flags.String("log-level", "", "trace, debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: opts.configFile,
		Flags:      flags,
		FlagKeys: map[string]string{
			"backend-url": "backend.url",
			"timeout":     "backend.timeout",
			"log-level":   "logging.level",
		},
	})
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging, stderr, nil)

	if opts.printConfig {
		return config.Dump(stdout, cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.driveAuth {
		return storage.Authorize(ctx, cfg.Drive, promptForCode(stderr, os.Stdin))
	}

	if opts.file == "" {
		flags.Usage()
		return apperr.Validation(apperr.CodeNoFile, "Please select an audio file first.")
	}

	formats, err := parseFormats(opts.formats)
	if err != nil {
		return err
	}
	mode, err := views.ParseMode(opts.view)
	if err != nil {
		return err
	}

	client := backend.NewClient(cfg.Backend)
	checkCtx, cancelCheck := context.WithTimeout(ctx, 5*time.Second)
	if err := client.Health(checkCtx); err != nil {
		fmt.Fprintf(stderr, "Warning: transcription service at %s is not responding\n", client.URL())
	}
	cancelCheck()

	s := session.New(uuid.New().String(), client, session.WithTimeout(client.Timeout()))
	defer s.Close()

	file, err := sourceFile(opts.file)
	if err != nil {
		return err
	}
	if err := s.SelectFile(file); err != nil {
		return err
	}

	events, cancel := s.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			fmt.Fprintf(stderr, "\r%s", progressLine(ev))
			if ev.Terminal() {
				fmt.Fprintln(stderr)
				return
			}
		}
	}()

	transcript, err := s.Submit(ctx, types.Options{
		Model:             opts.model,
		SpeakerSeparation: opts.speakers,
		SpeakerCount:      opts.speakerCount,
	})
	// a rejected submission emits nothing, so cancel before waiting
	cancel()
	<-done
	if err != nil {
		return err
	}

	render, err := views.Project(transcript, mode)
	if err != nil {
		return err
	}
	stats := views.Summarize(transcript)
	fmt.Fprintf(stdout, "Duration: %s  Speakers: %d  Words: %d\n\n", stats.Duration, stats.Speakers, stats.Words)
	if err := views.Write(stdout, render); err != nil {
		return err
	}

	if len(formats) == 0 {
		return nil
	}
	return writeExports(ctx, cfg, opts, s.ID(), file.Name, transcript, formats, stderr)
}

func writeExports(ctx context.Context, cfg *config.Config, opts cliOptions, sessionID, sourceName string,
	t *types.Transcript, formats []export.Format, stderr io.Writer) error {
	if err := os.MkdirAll(opts.out, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var remote []storage.Sink
	if opts.upload {
		remote = remoteSinks(ctx, cfg)
	}

	var history *storage.MetadataDB
	if cfg.Storage.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0755); err == nil {
			history, err = storage.NewMetadataDB(cfg.Storage.Database)
			if err != nil {
				log.Warn().Err(err).Msg("export history unavailable")
			}
		}
	}
	if history != nil {
		defer history.Close()
	}

	for _, f := range formats {
		a, err := export.Encode(f, t, export.Meta{SourceName: sourceName})
		if err != nil {
			return err
		}
		path := filepath.Join(opts.out, a.Filename)
		if err := os.WriteFile(path, a.Data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(stderr, "Saved %s\n", path)

		stored := []storage.Stored{{Sink: "file", Location: path}}
		for _, st := range storage.SaveAll(ctx, remote, a) {
			if st.Error != "" {
				fmt.Fprintf(stderr, "Warning: %s upload failed: %s\n", st.Sink, st.Error)
			} else {
				fmt.Fprintf(stderr, "Uploaded %s\n", st.Location)
			}
			stored = append(stored, st)
		}

		if history != nil {
			rec := &storage.ExportRecord{
				SessionID:    sessionID,
				SourceFile:   sourceName,
				Format:       string(a.Format),
				Filename:     a.Filename,
				Bytes:        len(a.Data),
				Duration:     t.Duration,
				WordCount:    t.WordCount(),
				SpeakerCount: t.SpeakerCount(),
				Locations:    stored,
			}
			if err := history.SaveExport(ctx, rec); err != nil {
				log.Warn().Err(err).Msg("failed to record export")
			}
		}
	}
	return nil
}

func remoteSinks(ctx context.Context, cfg *config.Config) []storage.Sink {
	var sinks []storage.Sink
	if cfg.Drive.Enabled {
		dc, err := storage.NewDriveClient(ctx, cfg.Drive)
		if err != nil {
			log.Warn().Err(err).Msg("Google Drive not available, run with --drive-auth first")
		} else {
			sinks = append(sinks, dc)
		}
	}
	if cfg.S3.Enabled {
		s3s, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("S3 not available")
		} else {
			sinks = append(sinks, s3s)
		}
	}
	return sinks
}

// sourceFile describes the file at path the way a browser would
func sourceFile(path string) (types.SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.SourceFile{}, apperr.Validation(apperr.CodeNoFile, fmt.Sprintf("File %s does not exist.", path))
		}
		return types.SourceFile{}, err
	}
	if info.IsDir() {
		return types.SourceFile{}, apperr.Validation(apperr.CodeNoFile, fmt.Sprintf("%s is a directory.", path))
	}
	return types.SourceFile{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Path:        path,
		SelectedAt:  time.Now(),
	}, nil
}

// parseFormats expands "all" and removes duplicates, keeping order
func parseFormats(names []string) ([]export.Format, error) {
	var out []export.Format
	seen := make(map[export.Format]bool)
	add := func(f export.Format) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			for _, f := range export.Formats() {
				add(f)
			}
			continue
		}
		f, err := export.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		add(f)
	}
	return out, nil
}

const barWidth = 30

// progressLine renders ev as a fixed-width progress bar
func progressLine(ev session.ProgressEvent) string {
	pct := ev.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * barWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	return fmt.Sprintf("[%s] %3d%% %-40s", bar, pct, ev.Message)
}

func promptForCode(w io.Writer, r io.Reader) func(string) (string, error) {
	return func(authURL string) (string, error) {
		fmt.Fprintf(w, "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)
		code, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && code == "" {
			return "", fmt.Errorf("unable to read authorization code: %w", err)
		}
		return strings.TrimSpace(code), nil
	}
}
