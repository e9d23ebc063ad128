package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"remhind/internal/config"
	"remhind/internal/events"
	"remhind/internal/ics"
	appLog "remhind/internal/log"
	"remhind/internal/notify"
	"remhind/internal/scheduler"
	"remhind/internal/web"
)

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "remhind"
	app.Usage = "Reminders for the events and tasks in your iCalendar files."
	app.Version = version
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path of the YAML configuration file",
			Value:  config.DefaultPath(),
			EnvVar: "REMHIND_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "poll calendars and deliver reminders until interrupted",
			Action: runDaemon,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "listen, l",
					Usage: "serve the alarm agenda over HTTP on this address (overrides config)",
				},
				cli.BoolFlag{
					Name:  "once",
					Usage: "run a single delivery pass and exit",
				},
				cli.DurationFlag{
					Name:  "since",
					Usage: "with --once, deliver event alarms from this far back (default: one poll interval)",
				},
			},
		},
		{
			Name:   "agenda",
			Usage:  "print the upcoming alarms",
			Action: printAgenda,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "days, d",
					Usage: "how many days ahead to show (default: agenda_days from config)",
				},
			},
		},
	}
	return app
}

// setup loads the configuration and builds a collection whose refresh
// function rescans calendar directories and subscriptions.
func setup(ctx *cli.Context) (*config.Config, *events.Collection, scheduler.RefreshFunc, error) {
	path := ctx.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, nil, err
	}
	lookback, err := cfg.Lookback()
	if err != nil {
		return nil, nil, nil, err
	}

	coll := events.NewCollection(events.Options{
		Location:        loc,
		AllDayHour:      cfg.AllDayHour,
		MaxSteps:        cfg.MaxExpansion,
		MaxBacklog:      cfg.MaxBacklog,
		BacklogLookback: lookback,
	})

	fs := afero.NewOsFs()
	loader := ics.NewLoader(fs)
	fetcher := ics.NewFetcher(fs, cfg.CacheRoot())
	dirs := cfg.CalendarDirs()
	subs := make([]ics.Subscription, 0, len(cfg.Subscriptions))
	for _, s := range cfg.Subscriptions {
		subs = append(subs, ics.Subscription{ID: s.ID, URL: s.URL})
	}

	refresh := func(rctx context.Context) error {
		local, lerr := loader.LoadDirs(dirs, coll)
		remote, ferr := fetcher.Sync(rctx, subs, coll)
		if local.Files+remote.Files > 0 {
			appLog.Info("calendars loaded",
				"files", local.Files+remote.Files,
				"components", local.Components+remote.Components,
				"rejected", local.Rejected+remote.Rejected,
				"total", coll.Len(),
			)
		}
		return errors.Join(lerr, ferr)
	}

	appLog.Info("effective config",
		"config_path", path,
		"timezone", loc.String(),
		"calendars", len(dirs),
		"subscriptions", len(subs),
		"poll", cfg.Poll,
		"max_backlog", cfg.MaxBacklog,
		"backlog_lookback", lookback.String(),
	)
	return cfg, coll, refresh, nil
}

func runDaemon(ctx *cli.Context) error {
	cfg, coll, refresh, err := setup(ctx)
	if err != nil {
		return err
	}
	if l := ctx.String("listen"); l != "" {
		cfg.Listen = l
	}

	loc, _ := cfg.Location()
	sched := scheduler.New(coll, notify.LogDispatcher{}, scheduler.Options{
		Refresh:  refresh,
		Location: loc,
	})

	if ctx.Bool("once") {
		now := time.Now().In(loc)
		since := ctx.Duration("since")
		if since <= 0 {
			if since, err = cfg.PollInterval(now); err != nil {
				return err
			}
		}
		// A fresh process has no delivery history: event alarms older than
		// the previous pass were delivered by it.
		if err := refresh(context.Background()); err != nil {
			appLog.Warn("some calendars could not be loaded", "err", err)
		}
		coll.MarkDeliveredThrough(now.Add(-since))
		_, err = sched.Tick(context.Background(), now)
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog.Info("remhind starting", "version", version)
	if err := sched.Start(root, cfg.Poll); err != nil {
		return err
	}
	defer sched.Stop()

	if cfg.Listen != "" {
		srv := web.NewServer(cfg, coll, nil)
		go func() {
			if err := srv.Serve(root); err != nil {
				appLog.Error("HTTP server stopped", err)
				stop()
			}
		}()
	}

	<-root.Done()
	appLog.Info("remhind exiting")
	return nil
}

func printAgenda(ctx *cli.Context) error {
	cfg, coll, refresh, err := setup(ctx)
	if err != nil {
		return err
	}
	if err := refresh(context.Background()); err != nil {
		appLog.Warn("some calendars could not be loaded", "err", err)
	}

	days := ctx.Int("days")
	if days <= 0 {
		days = cfg.AgendaDays
	}
	loc, _ := cfg.Location()
	now := time.Now().In(loc)

	w := ctx.App.Writer
	alarms := coll.GetAlarms(now, now.AddDate(0, 0, days))
	if len(alarms) == 0 {
		fmt.Fprintf(w, "remhind: no alarms in the next %d days\n", days)
		return nil
	}
	for _, a := range alarms {
		line := fmt.Sprintf("%s  %s", a.Date.In(loc).Format("Mon 2006-01-02 15:04"), a.Message)
		if !a.Primary() {
			line += fmt.Sprintf(" (due %s)", a.DueDate.In(loc).Format("15:04"))
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
