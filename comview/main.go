package main

import (
	"context"
	"flag"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/device"
	"github.com/itohio/comview/pkg/scope"
	"github.com/itohio/comview/pkg/supervisor"
)

func main() {
	var (
		portFlag       = flag.String("p", "", "Add a channel for this serial port on startup (e.g., COM3 or /dev/ttyACM0)")
		configFlag     = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag       = flag.Bool("mock", false, "Use mocked devices instead of serial ports")
		lookBehindFlag = flag.Int("look-behind", 0, "Number of samples kept per channel (overrides config)")
		verboseFlag    = flag.Bool("v", false, "Enable debug logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *lookBehindFlag > 0 {
		cfg.LookBehind = config.ClampLookBehind(*lookBehindFlag)
	}

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		log:        log,
		useMock:    *mockFlag,
	}

	var (
		opener device.Opener
		enum   device.Enumerator
	)
	if state.useMock {
		mock := device.NewMock(&cfg.Mock)
		opener, enum = mock, mock
		log.Info("Using mocked devices")
	} else {
		opener, enum = device.Serial{}, device.Serial{}
	}

	state.sup = supervisor.New(cfg, opener, enum, log)
	if err := state.sup.Refresh(); err != nil {
		log.WithError(err).Warn("Failed to list devices")
	}
	if *portFlag != "" {
		if _, ok := state.sup.Channel(*portFlag); !ok {
			if _, err := state.sup.AddChannel(*portFlag); err != nil {
				log.WithError(err).WithField("device", *portFlag).Warn("Failed to add channel")
			}
		}
	}

	application := app.NewWithID("com.itohio.comview")

	window := application.NewWindow("Serial Telemetry Viewer")
	window.Resize(fyne.NewSize(1400, 800))
	window.CenterOnScreen()
	state.window = window

	state.scopeWidget = scope.New(state.sup.LookBehind())
	state.status = widget.NewLabel("")
	state.status.Truncation = fyne.TextTruncateEllipsis

	panel := newControlPanel(state)
	state.panel = panel

	toolbar := container.NewHBox(
		widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), panel.refreshDevices),
		widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
			showSettingsDialog(state)
		}),
	)

	content := container.NewBorder(
		toolbar,
		state.status,
		nil,
		panel.content,
		state.scopeWidget,
	)
	window.SetContent(content)

	ctx, cancel := context.WithCancel(context.Background())
	log.AddHook(newStatusHook(ctx, state.status))
	go runRenderLoop(ctx, state)
	go state.sup.Watch(ctx, cfg.LivenessInterval, func(ids []string) {
		fyne.Do(panel.syncCards)
	})

	window.SetOnClosed(func() {
		cancel()
		shutdown(state)
	})
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	log         *logrus.Logger
	sup         *supervisor.Supervisor
	scopeWidget *scope.ScopeWidget
	panel       *controlPanel
	status      *widget.Label
	window      fyne.Window
	useMock     bool
}

// shutdown stops every channel and stores the channel settings.
func shutdown(state *appState) {
	start := time.Now()
	state.sup.StopAll()
	state.log.WithField("took", time.Since(start)).Debug("All channels stopped")

	if err := saveConfig(state); err != nil {
		state.log.WithError(err).Error("Failed to save configuration")
	}
}

// saveConfig writes the current settings to the configuration file.
func saveConfig(state *appState) error {
	state.cfg.LookBehind = state.sup.LookBehind()
	state.cfg.Channels = state.sup.Configs()
	return state.cfg.Save(state.configPath)
}
