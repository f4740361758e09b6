package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"pacflut/canvas"
	"pacflut/server"
	"pacflut/sprite"
)

// 内置精灵的帧数
const pacmanFrames = 8

type config struct {
	url           string
	gifPath       string
	size          int
	frameDuration time.Duration
	repeats       int
	poll          string
	controlTCP    string
	controlHTTP   string
	admin         string
	logFile       string
	logLevel      string
	noKeyboard    bool
	x, y          uint16
}

var loggerReady bool

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		if loggerReady {
			server.Log.Errorf("fatal: %v", err)
			server.SyncLogger()
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	// 可选的 .env，其中的变量与 PACFLUT_* 环境变量一样生效
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return buildCLI().ParseAndRun(ctx, os.Args[1:])
}

func buildCLI() *ffcli.Command {
	var cfg config
	fset := flag.NewFlagSet("pacflut", flag.ExitOnError)
	fset.StringVar(&cfg.url, "url", "pixelflut:1234", "pixelflut server address host:port")
	fset.StringVar(&cfg.gifPath, "gif", "", "animated GIF to draw (default: built-in pac-man)")
	fset.IntVar(&cfg.size, "size", sprite.DefaultSize, "sprite edge length in pixels")
	fset.DurationVar(&cfg.frameDuration, "frame-duration", sprite.DefaultFrameDuration, "display time of one animation frame")
	fset.IntVar(&cfg.repeats, "repeats", server.DefaultRepeats, "frames drawn per movement tick before polling input again")
	fset.StringVar(&cfg.poll, "poll", "one", "queued directions applied per tick: one|latest")
	fset.StringVar(&cfg.controlTCP, "control-tcp", "0.0.0.0:1234", "line-protocol remote control listen address (empty disables)")
	fset.StringVar(&cfg.controlHTTP, "control-http", "0.0.0.0:8080", "HTTP remote control listen address (empty disables)")
	fset.StringVar(&cfg.admin, "admin", "127.0.0.1:8081", "metrics, config and websocket listen address (empty disables)")
	fset.StringVar(&cfg.logFile, "log-file", "pacflut.log", "rotated log file (empty logs to stderr only)")
	fset.StringVar(&cfg.logLevel, "log-level", "info", "debug|info|warn|error")
	fset.BoolVar(&cfg.noKeyboard, "no-keyboard", false, "do not read w/a/s/d from the terminal")

	return &ffcli.Command{
		Name:       "pacflut",
		ShortUsage: "pacflut [flags] [x] [y]",
		ShortHelp:  "Stream an animated sprite to a pixelflut server",
		LongHelp: "Controls:\n" +
			"  w/a/s/d         on the terminal, as lines on the TCP control port,\n" +
			"                  or POST /w /a /s /d on the HTTP control port\n" +
			"Every flag can also be set as PACFLUT_<FLAG> in the environment or .env.",
		FlagSet: fset,
		Options: []ff.Option{ff.WithEnvVarPrefix("PACFLUT")},
		Exec: func(ctx context.Context, args []string) error {
			if err := parseStart(&cfg, args); err != nil {
				return err
			}
			return execStream(ctx, cfg)
		},
	}
}

// parseStart 位置参数 x y，缺省为 0 0
func parseStart(cfg *config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("too many arguments: %v", args)
	}
	vals := []*uint16{&cfg.x, &cfg.y}
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid start coordinate %q: %w", a, err)
		}
		*vals[i] = uint16(v)
	}
	return nil
}

func execStream(ctx context.Context, cfg config) error {
	if err := server.InitLogger(cfg.logFile, cfg.logLevel); err != nil {
		return err
	}
	loggerReady = true
	defer server.SyncLogger()

	policy, err := server.ParsePollPolicy(cfg.poll)
	if err != nil {
		return err
	}
	tuning, err := server.NewTuning(cfg.repeats, cfg.frameDuration)
	if err != nil {
		return err
	}

	bank, err := loadBank(cfg)
	if err != nil {
		return err
	}
	server.Log.Infof("frame bank ready: %d frames at %dx%d", bank.Len(), bank.Size, bank.Size)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := canvas.Dial(ctx, cfg.url)
	if err != nil {
		return err
	}
	defer conn.Close()
	// 服务端卡住时写会一直阻塞；退出信号通过关闭连接打断它
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()
	size, err := conn.QuerySize()
	if err != nil {
		return fmt.Errorf("canvas size: %w", err)
	}
	server.Log.Infof("connected to %s, canvas %v", cfg.url, size)

	metrics := &server.Metrics{}
	controls := server.NewControls(server.DefaultQueueSize, metrics)
	streamer, err := server.NewStreamer(conn, controls, server.StreamConfig{
		Bank:    bank,
		Size:    size,
		StartX:  int(cfg.x),
		StartY:  int(cfg.y),
		Policy:  policy,
		Tuning:  tuning,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	if !cfg.noKeyboard {
		if restore := startKeyboard(ctx, cancel, controls); restore != nil {
			defer restore()
		}
	}
	startTCPControl(ctx, cfg.controlTCP, controls, metrics)
	startHTTP(ctx, "web based control", cfg.controlHTTP, server.NewControlHandler(controls))
	if cfg.admin != "" {
		admin := &server.Admin{Tuning: tuning, Metrics: metrics, Controls: controls, Status: streamer.Status}
		startHTTP(ctx, "admin endpoint", cfg.admin, admin.Mux(ctx))
	}

	err = streamer.Run(ctx)
	if ctx.Err() != nil {
		server.Log.Info("shutting down...")
		return nil
	}
	return fmt.Errorf("canvas stream: %w", err)
}

func loadBank(cfg config) (*sprite.Bank, error) {
	var frames []image.Image
	if cfg.gifPath == "" {
		frames = sprite.Pacman(cfg.size, pacmanFrames)
	} else {
		var err error
		frames, err = sprite.LoadGIF(cfg.gifPath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.gifPath, err)
		}
	}
	return sprite.NewBank(frames, cfg.size)
}

// startKeyboard 终端不可用时只告警，进程继续运行
func startKeyboard(ctx context.Context, cancel context.CancelFunc, controls *server.Controls) (restore func()) {
	restore, err := server.OpenTerminal()
	if err != nil {
		server.Log.Warnf("keyboard control is unavailable: %v", err)
		return nil
	}
	go func() {
		err := server.RunKeyboard(ctx, os.Stdin, controls)
		switch {
		case errors.Is(err, server.ErrInterrupted):
			cancel()
		case err != nil && ctx.Err() == nil:
			server.Log.Warnf("keyboard control stopped: %v", err)
		}
	}()
	return restore
}

func startTCPControl(ctx context.Context, addr string, controls *server.Controls, metrics *server.Metrics) {
	if addr == "" {
		return
	}
	tc, err := server.ListenTCP(addr, controls, metrics)
	if err != nil {
		server.Log.Warnf("socket based control is unavailable: %v", err)
		return
	}
	server.Log.Infof("socket based control listening on %s", tc.Addr())
	go func() {
		if err := tc.Serve(ctx); err != nil {
			server.Log.Warnf("socket based control stopped: %v", err)
		}
	}()
}

func startHTTP(ctx context.Context, name, addr string, h http.Handler) {
	if addr == "" {
		return
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		server.Log.Warnf("%s is unavailable: %v", name, err)
		return
	}
	server.Log.Infof("%s listening on http://%s/", name, ln.Addr())
	go func() {
		if err := server.Serve(ctx, ln, h); err != nil {
			server.Log.Warnf("%s stopped: %v", name, err)
		}
	}()
}
