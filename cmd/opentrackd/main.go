package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("opentrackd v%s\n", version)
	fmt.Println("opentrack UDP to Linux uinput bridge (joystick / mouse emulation)")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  opentrackd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that listens for opentrack UDP-output packets (6 little-endian")
	fmt.Println("  doubles: x, y, z, yaw, pitch, roll) and injects them into the Linux")
	fmt.Println("  input subsystem through /dev/uinput as joystick axes, hats, button")
	fmt.Println("  pairs or relative mouse deltas. Per-axis low-pass smoothing keeps the")
	fmt.Println("  output moving through input gaps, and an auto-center detector can pull")
	fmt.Println("  a re-center trigger when tracking settles near the reference pose.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -listen-address string")
	fmt.Printf("        Address to listen on for the opentrack UDP feed (default %q)\n", defaultListenAddress)
	fmt.Println()
	fmt.Println("  -listen-port int")
	fmt.Printf("        UDP port for the opentrack feed (default %d)\n", defaultListenPort)
	fmt.Println()
	fmt.Println("  -wait-seconds float")
	fmt.Printf("        Max poll interval before re-feeding the last sample (default %g)\n", defaultWaitSeconds)
	fmt.Println("        The minimum send interval is half this value")
	fmt.Println()
	fmt.Println("  -smooth-window int")
	fmt.Printf("        Smooth over this many recent values; 0 or 1 disables (default %d)\n", defaultSmoothWindow)
	fmt.Println()
	fmt.Println("  -smooth-alpha float")
	fmt.Printf("        Smoothing alpha in (0,1]; smaller smooths more (default %g)\n", defaultSmoothAlpha)
	fmt.Println()
	fmt.Println("  -bindings string")
	fmt.Println("        Comma-separated output indices for x,y,z,yaw,pitch,roll plus an")
	fmt.Println("        optional 7th center-fire index; 0 discards an axis")
	fmt.Println("        (default \"1,2,3,4,5,6,0\")")
	fmt.Println("        Outputs: 1-6 stick axes RX RY RZ X Y Z, 7-8 hats, 9-12 button")
	fmt.Println("        pairs A/B X/Y TL/TR SELECT/START, 13 training dummy,")
	fmt.Println("        14-16 mouse REL_X REL_Y REL_WHEEL")
	fmt.Println()
	fmt.Println("  -dead-zone float")
	fmt.Printf("        Neutral band for hat/button quantization, source units (default %g)\n", defaultDeadZone)
	fmt.Println()
	fmt.Println("  -scale float")
	fmt.Printf("        Sensitivity for relative mouse outputs (default %g)\n", defaultScale)
	fmt.Println()
	fmt.Println("  -training")
	fmt.Println("        Log axis edges instead of writing to the device (axis mapping aid)")
	fmt.Println()
	fmt.Println("  -center-zone float")
	fmt.Printf("        Auto-center tolerance around the reference pose; 0 disables (default %g)\n", defaultCenterZone)
	fmt.Println()
	fmt.Println("  -center-dwell-seconds float")
	fmt.Printf("        Seconds all monitored axes must stay in the zone (default %g)\n", defaultCenterDwell)
	fmt.Println()
	fmt.Println("  -center-policy string")
	fmt.Println("        Center fire trigger: dwell|release (default \"dwell\")")
	fmt.Println()
	fmt.Println("  -device-name string")
	fmt.Println("        Virtual device name (default \"opentrackd\")")
	fmt.Println()
	fmt.Println("  -monitor-port int")
	fmt.Println("        Websocket state feed port; 0 disables (default 0)")
	fmt.Println()
	fmt.Println("  -debug")
	fmt.Println("        Emit per-cycle diagnostic lines (requires -log-level debug)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Full 6-axis joystick with defaults")
	fmt.Println("  opentrackd")
	fmt.Println()
	fmt.Println("  # Yaw/pitch on the main stick, auto-center firing SELECT on release")
	fmt.Println("  opentrackd -bindings 9,0,1,4,5,0,12 -center-policy release")
	fmt.Println()
	fmt.Println("  # Head-tracking mouse")
	fmt.Println("  opentrackd -bindings 0,0,16,14,15,0 -scale 10")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires write access to /dev/uinput (udev rule or root)")
	fmt.Println("  - In opentrack select Output 'UDP over network' to 127.0.0.1:5005")
	fmt.Println("  - Bind your game's re-center command to the center-fire button")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "Path to YAML config file")

		listenAddress = flag.String("listen-address", defaultListenAddress, "Address for the opentrack UDP feed")
		listenPort    = flag.Int("listen-port", defaultListenPort, "UDP port for the opentrack feed")

		waitSeconds = flag.Float64("wait-seconds", defaultWaitSeconds, "Max poll interval before re-feeding the last sample")

		smoothWindow = flag.Int("smooth-window", defaultSmoothWindow, "Smooth over this many recent values; 0 or 1 disables")
		smoothAlpha  = flag.Float64("smooth-alpha", defaultSmoothAlpha, "Smoothing alpha in (0,1]; smaller smooths more")

		bindings = flag.String("bindings", "1,2,3,4,5,6,0", "Output indices for x,y,z,yaw,pitch,roll[,center]")
		deadZone = flag.Float64("dead-zone", defaultDeadZone, "Neutral band for hat/button quantization")
		scale    = flag.Float64("scale", defaultScale, "Sensitivity for relative mouse outputs")
		training = flag.Bool("training", false, "Log axis edges instead of writing to the device")

		centerZone       = flag.Float64("center-zone", defaultCenterZone, "Auto-center tolerance; 0 disables")
		centerDwell      = flag.Float64("center-dwell-seconds", defaultCenterDwell, "Seconds axes must stay in the zone")
		centerPolicyName = flag.String("center-policy", string(centerPolicyDwell), "Center fire trigger: dwell|release")

		deviceName  = flag.String("device-name", "opentrackd", "Virtual device name")
		monitorPort = flag.Int("monitor-port", 0, "Websocket state feed port; 0 disables")

		debug       = flag.Bool("debug", false, "Emit per-cycle diagnostic lines")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags the user actually set override the file.
	overrides := FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen-address":
			overrides.ListenAddress = listenAddress
		case "listen-port":
			overrides.ListenPort = listenPort
		case "wait-seconds":
			overrides.WaitSeconds = waitSeconds
		case "smooth-window":
			overrides.SmoothWindow = smoothWindow
		case "smooth-alpha":
			overrides.SmoothAlpha = smoothAlpha
		case "bindings":
			overrides.Bindings = bindings
		case "dead-zone":
			overrides.DeadZone = deadZone
		case "scale":
			overrides.Scale = scale
		case "training":
			overrides.Training = training
		case "center-zone":
			overrides.CenterZone = centerZone
		case "center-dwell-seconds":
			overrides.CenterDwellSeconds = centerDwell
		case "center-policy":
			overrides.CenterPolicy = centerPolicyName
		case "device-name":
			overrides.DeviceName = deviceName
		case "monitor-port":
			overrides.MonitorPort = monitorPort
		case "debug":
			overrides.Debug = debug
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	set, err := buildBindings(cfg.Mapping.Bindings, mappingParams{
		window:   cfg.Smoothing.Window,
		alpha:    cfg.Smoothing.Alpha,
		deadZone: cfg.Mapping.DeadZone,
		scale:    cfg.Mapping.Scale,
		training: cfg.Mapping.Training,
		logger:   logger,
	})
	if err != nil {
		logger.Error("invalid binding table", "error", err)
		os.Exit(1)
	}

	monitored, err := cfg.monitoredFields()
	if err != nil {
		logger.Error("invalid center axes", "error", err)
		os.Exit(1)
	}
	detector := newCenterDetector(cfg.Center.Zone, cfg.Center.DwellSeconds,
		centerPolicy(cfg.Center.Policy), monitored)

	src, err := newUDPSource(cfg.Listen.Address, cfg.Listen.Port)
	if err != nil {
		logger.Error("failed to open UDP source", "error", err)
		os.Exit(1)
	}
	defer src.close()

	sink, err := newUInputDevice(cfg.Device.Name, set.capabilities())
	if err != nil {
		logger.Error("failed to create uinput device", "error", err,
			"tip", "add a udev rule for /dev/uinput or run as root")
		os.Exit(1)
	}
	defer sink.Close()

	var snapshots chan stateSnapshot
	if cfg.Monitor.Port > 0 {
		snapshots = make(chan stateSnapshot, 64)
	}

	loop := newSamplingLoop(src, sink, set, detector,
		cfg.Loop.WaitSeconds, cfg.Loop.Debug, logger, snapshots)

	logger.Info("listening",
		"udp", fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port),
		"device", cfg.Device.Name,
		"bindings", cfg.Mapping.Bindings,
		"smoothing_window", cfg.Smoothing.Window,
		"smoothing_alpha", cfg.Smoothing.Alpha,
		"center_zone", cfg.Center.Zone,
		"center_policy", cfg.Center.Policy,
		"training", cfg.Mapping.Training)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.run(ctx) })
	if snapshots != nil {
		hub := newMonitorHub(logger)
		g.Go(func() error { return hub.run(ctx, snapshots) })
		g.Go(func() error { return runMonitorServer(ctx, cfg.Monitor.Port, hub, logger) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("daemon stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}
