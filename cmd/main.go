package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"
	"github.com/collabodraw/live/internal/api/eventbridge"
	"github.com/collabodraw/live/internal/api/rest"
	"github.com/collabodraw/live/internal/api/ws"
	"github.com/collabodraw/live/internal/configure"
	"github.com/collabodraw/live/internal/dispatch"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/health"
	"github.com/collabodraw/live/internal/monitoring"
	"github.com/collabodraw/live/internal/pprof"
	"github.com/collabodraw/live/internal/svc/access"
	"github.com/collabodraw/live/internal/svc/auth"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/collabodraw/live/internal/svc/cursors"
	"github.com/collabodraw/live/internal/svc/eventlog"
	"github.com/collabodraw/live/internal/svc/prometheus"
	"github.com/collabodraw/live/internal/svc/sessions"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	debug.SetGCPercent(2000)
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func main() {
	config := configure.New()

	exitStatus, err := panicwrap.BasicWrap(func(s string) {
		zap.S().Errorw("panic detected",
			"panic", s,
		)
	})
	if err != nil {
		zap.S().Errorw("failed to setup panic handler",
			"error", err,
		)
		os.Exit(2)
	}

	if exitStatus >= 0 {
		os.Exit(exitStatus)
	}

	if !config.NoHeader {
		zap.S().Info("Collabodraw Live")
		zap.S().Infof("Version: %s", Version)
		zap.S().Infof("build.Time: %s", Time)
		zap.S().Infof("build.User: %s", User)
	}

	zap.S().Debugf("MaxProcs: %d", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))

	{
		gCtx.Inst().Prometheus = prometheus.New(prometheus.Options{
			Labels: config.Monitoring.Labels.ToPrometheus(),
		})
	}

	{
		gCtx.Inst().Sessions = sessions.New(sessions.Options{
			StalenessWindow: config.Realtime.StalenessWindow,
		})
		gCtx.Inst().Cursors = cursors.New(cursors.Options{})
		gCtx.Inst().EventLog = eventlog.New(eventlog.Options{
			Capacity: config.Realtime.EventLogCap,
		})
	}

	{
		gCtx.Inst().Hub = broadcast.NewHub()
		gCtx.Inst().Broadcast = gCtx.Inst().Hub

		if config.Nats.Enabled {
			gCtx.Inst().Nats, err = broadcast.NewNats(gCtx, broadcast.NatsOptions{
				URL:           config.Nats.URL,
				Name:          config.Nats.Name,
				SubjectPrefix: config.Nats.SubjectPrefix,
			})
			if err != nil {
				zap.S().Fatalw("failed to setup nats",
					"error", err,
				)
			}

			gCtx.Inst().Broadcast = broadcast.Fanout(gCtx.Inst().Hub, gCtx.Inst().Nats)
		}
	}

	{
		switch config.Access.Mode {
		case configure.AccessModeHTTP:
			gCtx.Inst().Access = access.NewHTTP(access.HTTPOptions{
				URL:      config.Access.URL,
				CacheTTL: config.Access.CacheTTL,
				Timeout:  config.Access.Timeout,
			})
		default:
			gCtx.Inst().Access = access.NewOpen()
		}
	}

	{
		if config.Credentials.JWTSecret == "" {
			zap.S().Warn("no jwt secret configured, every caller will be a guest")
		} else {
			gCtx.Inst().Auth = auth.New(auth.AuthorizerOptions{
				JWTSecret: config.Credentials.JWTSecret,
				Issuer:    config.Credentials.JWTIssuer,
			})
		}
	}

	{
		gCtx.Inst().Dispatch, err = dispatch.New(dispatch.Options{
			Sessions:        gCtx.Inst().Sessions,
			Cursors:         gCtx.Inst().Cursors,
			EventLog:        gCtx.Inst().EventLog,
			Broadcast:       gCtx.Inst().Broadcast,
			Local:           gCtx.Inst().Hub,
			Access:          gCtx.Inst().Access,
			Prometheus:      gCtx.Inst().Prometheus,
			ChannelTemplate: config.Realtime.ChannelTemplate,
			GuestPrefix:     config.Realtime.GuestPrefix,
			LogVersions:     config.Realtime.LogVersions,
		})
		if err != nil {
			zap.S().Fatalw("failed to setup dispatcher",
				"error", err,
			)
		}
	}

	wg := sync.WaitGroup{}

	var (
		exitMx  sync.Mutex
		exitErr error
	)

	exited := func(err error) {
		exitMx.Lock()
		exitErr = multierr.Append(exitErr, err)
		exitMx.Unlock()
	}

	if gCtx.Config().Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-health.New(gCtx)
		}()
	}
	if gCtx.Config().Monitoring.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-monitoring.New(gCtx)
		}()
	}

	if gCtx.Config().PProf.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-pprof.New(gCtx)
		}()
	}

	if config.Realtime.Reaper.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions.RunReaper(gCtx, gCtx.Inst().Sessions, config.Realtime.Reaper.Interval, config.Realtime.Reaper.MaxIdle)
		}()
	}

	if gCtx.Inst().Nats != nil {
		bridge, err := eventbridge.New(gCtx)
		if err != nil {
			zap.S().Fatalw("failed to setup event bridge",
				"error", err,
			)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-bridge
		}()
	}

	done := make(chan struct{})
	go func() {
		<-sig
		cancel()
		go func() {
			select {
			case <-time.After(time.Minute):
			case <-sig:
			}
			zap.S().Fatal("force shutdown")
		}()

		zap.S().Info("shutting down")

		wg.Wait()

		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rest.New(gCtx); err != nil {
			if gCtx.Err() == nil {
				zap.S().Fatalw("rest failed",
					"error", err,
				)
			}

			exited(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.New(gCtx); err != nil {
			if gCtx.Err() == nil {
				zap.S().Fatalw("websocket gateway failed",
					"error", err,
				)
			}

			exited(err)
		}
	}()

	zap.S().Info("running")

	<-done

	if exitErr != nil {
		zap.S().Warnw("unclean shutdown",
			"error", exitErr,
		)
	}

	zap.S().Info("shutdown")
	os.Exit(0)
}
