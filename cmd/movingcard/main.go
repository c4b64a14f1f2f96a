/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"movingcard/internal/canvas"
	"movingcard/internal/config"
	"movingcard/internal/crash"
	"movingcard/internal/domain"
	"movingcard/internal/export"
	"movingcard/internal/generate"
	applog "movingcard/internal/log"
	"movingcard/internal/server"
	"movingcard/internal/telemetry"
	"movingcard/internal/textlayout"
	"movingcard/internal/ui"
	"movingcard/internal/version"
	"movingcard/internal/wizard"
	"movingcard/internal/zipcode"
)

func usage() {
	fmt.Println("MovingCard: moving announcement postcards")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  movingcard version|-v|--version              Show version")
	fmt.Println("  movingcard serve [-addr host:port]           Run the web wizard")
	fmt.Println("  movingcard export [flags] <layout.json>      Render a saved layout (pdf/png/svg), -watch to re-render on save")
	fmt.Println("  movingcard ui [<layout.json>]                Launch desktop layout editor (build with -tags fyne)")
	fmt.Println("  movingcard config path|show|init|set-api-key Inspect or edit the user config")
}

func main() {
	args := os.Args
	if len(args) > 1 {
		var err error
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("MovingCard")
			fmt.Println(version.String())
			return
		case "serve":
			err = runServe(args[2:])
		case "export":
			err = runExport(args[2:])
		case "ui":
			err = runUI(args[2:])
		case "config":
			err = runConfig(args[2:])
		default:
			usage()
			os.Exit(2)
		}
		if err != nil {
			applog.WithComponent("cli").Error("command failed", slog.String("cmd", args[1]), slog.Any("err", err))
			fmt.Println("Error:", err)
			telemetry.Shutdown(context.Background())
			os.Exit(1)
		}
		telemetry.Shutdown(context.Background())
		return
	}
	usage()
}

// setup loads the config and initializes logging and telemetry from it. A
// broken config file is reported and the defaults are used.
func setup() (config.AppConfig, string) {
	cfg, key, err := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	if err != nil {
		applog.WithComponent("cli").Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	telemetry.NewDefault(telemetry.FromEnv(cfg.General.TelemetryOptIn))
	return cfg, key
}

// exportOptions builds exporter options from config. fontPath overrides the
// configured font when set.
func exportOptions(cfg config.ExportConfig, fontPath string) (export.Options, error) {
	fonts := textlayout.NewFontLibrary()
	if fontPath == "" {
		fontPath = cfg.FontPath
	}
	if fontPath != "" {
		if err := fonts.LoadFile("custom", fontPath); err != nil {
			return export.Options{}, fmt.Errorf("load font: %w", err)
		}
	}
	return export.Options{Fonts: fonts, Author: cfg.Author}, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (default from config)")
	_ = fs.Parse(args)

	cfg, key := setup()
	l := applog.WithComponent("cli")
	defer crash.Recover(crash.Info{Command: "serve"})
	if *addr == "" {
		*addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache *zipcode.Cache
	if dsn := strings.TrimSpace(cfg.Zipcode.CacheDSN); dsn != "" {
		c, err := zipcode.OpenCache(ctx, dsn)
		if err != nil {
			return err
		}
		defer c.Close()
		if n, err := c.Prune(ctx); err != nil {
			l.Warn("zip cache prune failed", slog.Any("err", err))
		} else if n > 0 {
			l.Info("zip cache pruned", slog.Int64("rows", n))
		}
		cache = c
	}
	zip := zipcode.NewClient(zipcode.Options{BaseURL: cfg.Zipcode.BaseURL, Timeout: cfg.Zipcode.Timeout(), Cache: cache})

	var gen generate.Generator = generate.Static{}
	if key != "" {
		g, err := generate.NewGemini(ctx, generate.GeminiOptions{
			APIKey:     key,
			TextModel:  cfg.Gemini.TextModel,
			ImageModel: cfg.Gemini.ImageModel,
			Timeout:    cfg.Gemini.Timeout(),
		})
		if err != nil {
			l.Warn("gemini unavailable, using the built-in greeting", slog.Any("err", err))
		} else {
			gen = g
		}
	} else {
		l.Warn("no Gemini API key, using the built-in greeting", slog.String("env", config.EnvGeminiAPIKey))
	}

	reg := wizard.NewRegistry(wizard.Deps{
		Generator:       gen,
		Zip:             zip,
		GenerateTimeout: cfg.Gemini.Timeout(),
		LookupTimeout:   cfg.Zipcode.Timeout(),
	}, cfg.Server.SessionTTL())
	if err := reg.Start(cfg.Server.ReapSchedule); err != nil {
		return err
	}
	defer reg.Stop(context.Background())

	exp, err := exportOptions(cfg.Export, "")
	if err != nil {
		return err
	}
	exp.DPI = cfg.Export.DPI
	srv, err := server.New(server.Options{Addr: *addr, Registry: reg, Export: exp})
	if err != nil {
		return err
	}
	l.Info("listening", slog.String("addr", *addr), slog.String("version", version.String()))
	fmt.Printf("MovingCard listening on http://%s\n", *addr)
	return srv.ListenAndServe(ctx)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	preset := fs.String("preset", string(export.PresetPrint), "export preset: print|web")
	formats := fs.String("format", "", "comma-separated formats (pdf,png,svg); default per preset")
	out := fs.String("out", ".", "output directory")
	dpi := fs.String("dpi", "", "raster DPI override, e.g. 300 or 300dpi")
	font := fs.String("font", "", "TTF/OTF font for the greeting")
	name := fs.String("name", "card", "base file name")
	paper := fs.String("paper", "", "override paper: postcard|a4")
	watch := fs.Bool("watch", false, "re-export whenever the layout file changes")
	fs.Usage = func() {
		fmt.Println("Usage: movingcard export [flags] <layout.json>")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, _ := setup()
	l := applog.WithComponent("cli")
	defer crash.Recover(crash.Info{Command: "export"})

	p := export.PresetName(strings.ToLower(*preset))
	if p != export.PresetPrint && p != export.PresetWeb {
		return fmt.Errorf("unknown preset %q", *preset)
	}
	var override int
	if *dpi != "" {
		n, err := config.ParseDPI(*dpi)
		if err != nil {
			return err
		}
		override = n
	}
	var list []string
	for _, f := range strings.Split(*formats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			list = append(list, f)
		}
	}

	opts, err := exportOptions(cfg.Export, *font)
	if err != nil {
		return err
	}
	job := exportJob{
		paper: domain.PaperKind(*paper),
		batch: export.BatchOptions{
			Preset:      p,
			Formats:     list,
			DPIOverride: override,
			OutDir:      *out,
			BaseName:    *name,
			Options:     opts,
		},
	}
	path := fs.Arg(0)
	if err := job.run(path, l); err != nil {
		if !*watch {
			return err
		}
		l.Warn("export failed, waiting for changes", slog.Any("err", err))
		fmt.Println("Error:", err)
	}
	if !*watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Println("Watching", path, "(Ctrl+C to stop)")
	return watchFile(ctx, path, watchDebounce, func() {
		if err := job.run(path, l); err != nil {
			l.Warn("re-export failed", slog.Any("err", err))
			fmt.Println("Error:", err)
		}
	})
}

// exportJob renders one layout file with fixed batch settings.
type exportJob struct {
	paper domain.PaperKind
	batch export.BatchOptions
}

func (j exportJob) run(path string, l *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := canvas.ParseDocument(data)
	if err != nil {
		return err
	}
	e := canvas.New(nil, canvas.WithLogger(l))
	if err := e.Restore(doc); err != nil {
		return err
	}
	if j.paper != "" {
		if err := e.SetPaperProfile(j.paper); err != nil {
			return err
		}
	}
	fr := e.Frame(canvas.Print)
	written, err := export.Batch(fr, j.batch)
	for _, p := range written {
		fmt.Println("Wrote", p)
	}
	preset := string(j.batch.Preset)
	if err != nil {
		telemetry.Event(telemetry.EventExportFailed, map[string]any{"preset": preset})
		return err
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"preset": preset, "files": len(written), "paper": string(fr.Paper.Kind)})
	l.Info("export done", slog.Int("files", len(written)))
	return nil
}

func runUI(args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	cfg, _ := setup()
	exp, err := exportOptions(cfg.Export, "")
	if err != nil {
		return err
	}
	exp.DPI = cfg.Export.DPI
	return ui.Run(path, exp)
}

func runConfig(args []string) error {
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	switch args[0] {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	case "show":
		cfg, key, err := config.Load()
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		state := "not set"
		if key != "" {
			state = "set"
		}
		fmt.Printf("# gemini api key: %s\n", state)
		return nil
	case "init":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
		if err := config.Save(config.Defaults(), ""); err != nil {
			return err
		}
		fmt.Println("Wrote", p)
		return nil
	case "set-api-key":
		fmt.Print("Gemini API key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		key := strings.TrimSpace(line)
		if key == "" {
			return errors.New("empty key")
		}
		if err := config.StoreAPIKey(key); err != nil {
			return fmt.Errorf("store key in keychain: %w", err)
		}
		fmt.Println("Stored the API key in the OS keychain.")
		return nil
	}
	return fmt.Errorf("unknown config command %q", args[0])
}
