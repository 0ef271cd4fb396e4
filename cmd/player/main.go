// Package main provides the soundbite player entry point.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/recoverlution/lumaplay/internal/app/playback"
	"github.com/recoverlution/lumaplay/internal/app/session"
	"github.com/recoverlution/lumaplay/internal/infra/config"
	"github.com/recoverlution/lumaplay/internal/infra/logger"
	"github.com/recoverlution/lumaplay/internal/infra/media"
	"github.com/recoverlution/lumaplay/internal/infra/telemetry"
)

var (
	app        = kingpin.New("lumaplay", "Soundbite player with session telemetry")
	configPath = app.Flag("config", "Path to config file").Short('c').Default("config.yaml").String()
	verbose    = app.Flag("verbose", "Enable debug logging").Short('v').Bool()

	// play command
	playCmd    = app.Command("play", "Play a single soundbite from the library")
	playID     = playCmd.Arg("id", "Soundbite ID").Required().String()
	playIntent = playCmd.Flag("intent", "Launch intent (settle, focus, lift...)").String()
	playBand   = playCmd.Flag("band", "Craving band at launch").Int()

	// queue command
	queueCmd   = app.Command("queue", "Play the library as a queue")
	queueIDs   = queueCmd.Arg("ids", "Soundbite IDs (defaults to the whole library)").Strings()
	queueStart = queueCmd.Flag("start", "Start index").Default("0").Int()

	// list command
	listCmd = app.Command("list", "List the soundbite library")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Log.Level
	if *verbose {
		logLevel = "debug"
	}
	if err := logger.Init(logger.Config{
		Output:     cfg.Log.Output,
		Level:      logLevel,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if command == listCmd.FullCommand() {
		listLibrary(cfg)
		return
	}

	engine, transport, err := buildEngine(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()
	defer engine.Close()

	switch command {
	case playCmd.FullCommand():
		item, ok := cfg.FindSoundbite(*playID)
		if !ok {
			fmt.Printf("Error: soundbite %q not in library\n", *playID)
			os.Exit(1)
		}
		if err := engine.PlayItem(item, launchContext()); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	case queueCmd.FullCommand():
		items := cfg.Soundbites()
		if len(*queueIDs) > 0 {
			items = nil
			for _, id := range *queueIDs {
				item, ok := cfg.FindSoundbite(id)
				if !ok {
					fmt.Printf("Error: soundbite %q not in library\n", id)
					os.Exit(1)
				}
				items = append(items, item)
			}
		}
		if err := engine.PlayQueue(items, *queueStart); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	run(engine)
}

// buildEngine wires the transport, the telemetry recorder, and the engine
// from config.
func buildEngine(cfg *config.Config) (*playback.Engine, media.Player, error) {
	transport, err := media.NewFromConfig(cfg.Transport.Type, cfg.TransportSettings())
	if err != nil {
		return nil, nil, err
	}

	recorder, err := telemetry.New(telemetry.Config{
		BaseURL:    cfg.Telemetry.BaseURL,
		Token:      cfg.Telemetry.Token,
		Device:     cfg.Telemetry.Device,
		AppVersion: cfg.Telemetry.AppVersion,
		Timeout:    cfg.Telemetry.Timeout(),
	})
	if err != nil {
		transport.Close()
		return nil, nil, err
	}

	engine := playback.NewEngine(playback.Config{
		CompletionRatio: cfg.Playback.CompletionRatio(),
		InitialVolume:   cfg.Playback.InitialVolume,
	}, transport, session.NewManager(recorder))

	return engine, transport, nil
}

func launchContext() *session.LaunchContext {
	if *playIntent == "" && *playBand == 0 {
		return nil
	}
	return &session.LaunchContext{
		Intent: *playIntent,
		Band:   *playBand,
	}
}

func listLibrary(cfg *config.Config) {
	for _, s := range cfg.Soundbites() {
		marker := " "
		if !s.Playable() {
			marker = "!"
		}
		fmt.Printf("%s %-12s %-8s %s\n", marker, s.ID, s.Tier, s.Title)
	}
}

// run prints engine events and reads control commands from stdin until
// interrupted.
func run(engine *playback.Engine) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Commands: pause, resume, next, prev, skip, save, seek <sec>, vol <0-1>, status, quit")

	inputCh := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			inputCh <- strings.TrimSpace(scanner.Text())
		}
		close(inputCh)
	}()

	for {
		select {
		case <-sigCh:
			fmt.Println("\nStopping...")
			return
		case ev, ok := <-engine.Events():
			if !ok {
				return
			}
			printEvent(ev)
		case line, ok := <-inputCh:
			if !ok {
				return
			}
			if quit := handleCommand(engine, line); quit {
				return
			}
		}
	}
}

func handleCommand(engine *playback.Engine, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "pause":
		err = engine.Pause()
	case "resume":
		err = engine.Play()
	case "next":
		err = engine.Next()
	case "prev":
		err = engine.Previous()
	case "skip":
		err = engine.Skip()
	case "save":
		engine.Save()
	case "seek":
		if len(fields) < 2 {
			fmt.Println("Usage: seek <seconds>")
			return false
		}
		sec, perr := strconv.ParseFloat(fields[1], 64)
		if perr != nil {
			fmt.Println("Usage: seek <seconds>")
			return false
		}
		engine.Seek(time.Duration(sec * float64(time.Second)))
	case "vol":
		if len(fields) < 2 {
			fmt.Println("Usage: vol <0-1>")
			return false
		}
		v, perr := strconv.ParseFloat(fields[1], 64)
		if perr != nil {
			fmt.Println("Usage: vol <0-1>")
			return false
		}
		engine.SetVolume(v)
	case "status":
		printStatus(engine.Snapshot())
	case "quit", "q":
		return true
	default:
		fmt.Printf("Unknown command: %s\n", fields[0])
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	return false
}

func printEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventItemStarted:
		fmt.Printf("▶  %s (%s)\n", ev.Item.Title, ev.Item.ID)
	case playback.EventItemEnded:
		fmt.Printf("✓  %s finished\n", ev.Item.Title)
	case playback.EventItemSkipped:
		fmt.Printf("⏭  %s skipped\n", ev.Item.Title)
	case playback.EventItemFailed:
		fmt.Printf("✗  %s could not be played\n", ev.Item.Title)
	case playback.EventStateChanged:
		fmt.Printf("•  %s\n", ev.State)
	}
}

func printStatus(s playback.Snapshot) {
	if s.Current == nil {
		fmt.Println("Nothing playing")
		return
	}
	fmt.Printf("%s (%s) [%d/%d] %s / %s state=%s saved=%v loops=%d\n",
		s.Current.Title, s.Current.ID, s.Index+1, len(s.Queue),
		s.Elapsed.Round(time.Second), s.Duration.Round(time.Second),
		s.State, s.Saved, s.LoopCount)
}
