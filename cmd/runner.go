package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/services"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/desertthunder/yms/internal/tasks"
	"github.com/desertthunder/yms/internal/ui"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Catalog, Source and Uploader are built from the configuration on first use unless injected.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	source     services.Source
	uploader   tasks.Uploader
	transport  http.RoundTripper
	logger     *log.Logger
	output     io.Writer
	palette    *ui.Palette
	openURL    func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Source     services.Source
	Uploader   tasks.Uploader
	Transport  http.RoundTripper // base transport of the catalog client
	Logger     *log.Logger
	Output     io.Writer
	Palette    *ui.Palette
	OpenURL    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Palette == nil {
		opts.Palette = ui.Default
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		source:     opts.Source,
		uploader:   opts.Uploader,
		transport:  opts.Transport,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    opts.Palette,
		openURL:    opts.OpenURL,
	}
}

// loadConfig replaces the runner's config with the file at path when it exists.
//
// A missing file keeps the current config; a broken one is an error.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return r.config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if level, err := shared.ParseLogLevel(config.Log.Level); err == nil {
		shared.SetLogLevel(r.logger, level)
	} else {
		r.logger.Warn("ignoring log level", "err", err)
	}

	r.config = config
	r.configPath = path
	return config, nil
}

// catalogFor returns the injected catalog or a Yandex Music client for cfg.
func (r *Runner) catalogFor(cfg shared.DestinationConfig) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	catalog, err := services.NewYandexMusic(cfg, r.logger, r.transport)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// sourceFor returns the injected source or a yt-dlp source for cfg.
func (r *Runner) sourceFor(cfg shared.SourceConfig) services.Source {
	if r.source != nil {
		return r.source
	}
	return services.NewYTDLP(cfg, r.logger)
}

// uploaderFor returns the injected uploader or a retrying uploader for cfg.
func (r *Runner) uploaderFor(cfg shared.UploadConfig) tasks.Uploader {
	if r.uploader != nil {
		return r.uploader
	}
	return services.NewUploader(cfg, r.logger)
}

// register returns all top-level commands.
func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, historyCommand, setupCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
