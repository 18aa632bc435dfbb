package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openclaw/kobo-linktap/internal/canvas"
	"github.com/openclaw/kobo-linktap/internal/eink"
	"github.com/openclaw/kobo-linktap/internal/gateway"
	"github.com/openclaw/kobo-linktap/internal/tailnet"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	var o Overrides
	flag.StringVar(&o.GatewayHost, "gateway", "", "gateway hostname")
	flag.IntVar(&o.GatewayPort, "gateway-port", 0, "gateway port")
	flag.BoolVar(&o.GatewayTLS, "gateway-tls", false, "use TLS for gateway")
	flag.StringVar(&o.GatewayPath, "gateway-path", "", "gateway websocket path")
	flag.StringVar(&o.Name, "name", "", "node name")
	flag.StringVar(&o.StateDir, "state-dir", "", "tsnet state directory")
	flag.BoolVar(&o.NoTailnet, "no-tailnet", false, "dial the gateway directly")
	flag.StringVar(&o.TouchDevice, "touch-device", "", "touch input device path")
	flag.IntVar(&o.TouchTolerance, "touch-tolerance", -1, "extra tappable radius around links, in pixels")
	flag.StringVar(&o.Framebuffer, "framebuffer", "", "framebuffer device path")
	flag.StringVar(&o.LogLevel, "log-level", "", "log level")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(&cfg, o)
	applyDefaults(&cfg, *cfgPath)
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tail := tailnet.New(tailnet.Config{
		Disabled: !*cfg.Tailnet,
		Hostname: cfg.Name,
		StateDir: cfg.StateDir,
		Logf:     log.Printf,
	})
	defer func() {
		_ = tail.Close()
	}()

	fb, err := eink.Open(cfg.Framebuffer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open framebuffer")
	}
	defer func() {
		_ = fb.Close()
	}()

	renderer := canvas.NewRenderer(fb.Width, fb.Height)

	wsURL := gatewayURL(cfg.GatewayTLS, cfg.Gateway, cfg.GatewayPort, cfg.GatewayPath)
	var handler *canvas.Handler
	client := gateway.New(gateway.Config{
		URL:      wsURL,
		Header:   http.Header{"User-Agent": {userAgent(cfg)}},
		Dialer:   tail.DialContext,
		Logger:   log.Logger,
		Register: gateway.NewRegistration(cfg.Name, *cfg.TouchTolerance),
		OnInvoke: func(ctx context.Context, req gateway.InvokeRequestParams) (interface{}, error) {
			if handler == nil {
				return nil, errors.New("handler not ready")
			}
			return handler.HandleInvokeRequest(ctx, canvas.InvokeRequest{Command: req.Command, Args: req.Args})
		},
	})
	handler = canvas.NewHandler(fb, renderer, client, log.Logger)
	if err := handler.SetTolerance(*cfg.TouchTolerance); err != nil {
		log.Fatal().Err(err).Msg("invalid touch tolerance")
	}
	handler.OnToleranceChange(func(tolerance int) {
		if err := client.SetTouchTolerance(ctx, tolerance); err != nil && !errors.Is(err, gateway.ErrNoConnection) {
			log.Warn().Err(err).Msg("failed to advertise touch tolerance")
		}
	})
	log.Info().
		Str("gateway", wsURL).
		Bool("tailnet", tail.Enabled()).
		Int("touchTolerance", *cfg.TouchTolerance).
		Msg("starting kobo-linktap")

	if cfg.TouchDevice != "" {
		taps := eink.NewTapRecognizer(cfg.TapMaxTravel, time.Duration(cfg.TapMaxDurationMs)*time.Millisecond)
		go startTouchLoop(ctx, cfg.TouchDevice, handler, taps, log.Logger, cancel)
	}

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("gateway client exited")
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if level == "" {
		level = "info"
	}
	if parsed, err := zerolog.ParseLevel(level); err == nil {
		log.Logger = log.Level(parsed)
	}
}

type tapHandler interface {
	HandleTap(ctx context.Context, x, y int) bool
}

func startTouchLoop(ctx context.Context, device string, handler tapHandler, taps *eink.TapRecognizer, logger zerolog.Logger, cancel context.CancelFunc) {
	input, err := eink.OpenInputDevice(device)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open touch device")
		return
	}
	defer func() {
		_ = input.Close()
	}()
	touchCh, powerCh, errCh := input.ReadEvents(ctx)

	var powerDownAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case touch, ok := <-touchCh:
			if !ok {
				return
			}
			dispatchTouch(ctx, touch, taps, handler, logger)
		case power, ok := <-powerCh:
			if !ok {
				return
			}
			if power.Pressed {
				powerDownAt = power.At
			} else if !powerDownAt.IsZero() {
				duration := power.At.Sub(powerDownAt)
				powerDownAt = time.Time{}
				if duration >= 3*time.Second {
					logger.Info().Msg("power long press: exiting")
					cancel()
				} else {
					if err := suspend(); err != nil {
						logger.Warn().Err(err).Msg("failed to suspend")
					}
				}
			}
		case err, ok := <-errCh:
			if ok {
				logger.Warn().Err(err).Msg("input error")
			}
			return
		}
	}
}

// dispatchTouch reports whether the event completed a tap that hit a link. A
// tap that misses every link is dropped.
func dispatchTouch(ctx context.Context, touch eink.TouchEvent, taps *eink.TapRecognizer, handler tapHandler, logger zerolog.Logger) bool {
	tap, ok := taps.Feed(touch)
	if !ok {
		return false
	}
	if handler.HandleTap(ctx, tap.X, tap.Y) {
		return true
	}
	logger.Debug().Int("x", tap.X).Int("y", tap.Y).Msg("tap ignored")
	return false
}

func suspend() error {
	return os.WriteFile("/sys/power/state", []byte("mem"), 0)
}
