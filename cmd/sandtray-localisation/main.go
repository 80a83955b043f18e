// Package main runs the sandtray localisation as a standalone HTTP process.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/fiducial"
	"github.com/freeplay-sandbox/sandtray-localisation/localisation"
	"github.com/freeplay-sandbox/sandtray-localisation/notify"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/web"
)

const defaultPort = 8080

var logger = golog.NewDevelopmentLogger("sandtray_localisation")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile   string            `flag:"0,usage=config file"`
	Port         utils.NetPortFlag `flag:"port,usage=port to listen on"`
	PrintMarkers bool              `flag:"print-markers,usage=print the chilitags marker configuration and exit"`
	LogFile      string            `flag:"log-file,usage=also write logs to this file; it is rotated as it grows"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Port == 0 {
		argsParsed.Port = defaultPort
	}
	if argsParsed.LogFile != "" {
		var closeLog func() error
		logger, closeLog = addFileLogger(logger, argsParsed.LogFile)
		defer func() {
			err = multierr.Combine(err, closeLog())
		}()
	}

	if argsParsed.PrintMarkers {
		data, err := fiducial.DefaultLayout().MarshalChilitags()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		cfg, err = config.Read(argsParsed.ConfigFile)
		if err != nil {
			return err
		}
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", argsParsed.Port))
	if err != nil {
		return err
	}
	return runServer(ctx, cfg, listener, logger)
}

// runServer serves the localisation on listener until ctx is done.
func runServer(ctx context.Context, cfg *config.Config, listener net.Listener, logger golog.Logger) (err error) {
	clk := clock.New()

	graph := referenceframe.NewMemoryGraph(clk, cfg.MaxTransformAge())
	static := make([]*referenceframe.Transform, 0, len(cfg.StaticTransforms))
	for i := range cfg.StaticTransforms {
		static = append(static, cfg.StaticTransforms[i].ParseConfig(clk.Now()))
	}
	if err := graph.AddStaticTransforms(static...); err != nil {
		return errors.Wrap(err, "cannot add the static transforms")
	}

	speech := notify.NewChannel(cfg.SpeechChannel, clk, logger.Named(cfg.SpeechChannel))
	layout := fiducial.DefaultLayout()
	relay := fiducial.NewRelay(layout, logger.Named("detector"))
	svc, err := localisation.NewService(cfg, localisation.Deps{
		Graph: graph,
		NewDetector: func(ctx context.Context, layout fiducial.Layout) (fiducial.Detector, error) {
			return relay, nil
		},
		Notifier: speech,
		Layout:   layout,
		Clock:    clk,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, svc.Close(context.Background()))
	}()

	handler, err := web.NewHandler(cfg, web.Deps{
		Localiser: svc,
		Status:    speech,
		Relay:     relay,
		Graph:     graph,
		Clock:     clk,
	}, logger.Named("web"))
	if err != nil {
		return err
	}
	httpServer, err := utils.NewPossiblySecureHTTPServer(handler, utils.HTTPServerOptions{
		Addr: listener.Addr().String(),
	})
	if err != nil {
		return err
	}

	serveDone := make(chan error, 1)
	utils.PanicCapturingGo(func() {
		logger.Infow("serving", "address", listener.Addr().String())
		serveDone <- httpServer.Serve(listener)
	})
	defer func() {
		err = multierr.Combine(err, httpServer.Shutdown(context.Background()))
		if serveErr := <-serveDone; !errors.Is(serveErr, http.ErrServerClosed) {
			err = multierr.Combine(err, serveErr)
		}
	}()

	// frames can be published over HTTP, so the server has to be up while this waits
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	utils.ContextMainReadyFunc(ctx)()

	<-ctx.Done()
	return nil
}
