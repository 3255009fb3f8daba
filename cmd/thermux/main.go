package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/thermux/helpers/cli"
	"github.com/temoto/thermux/internal/config"
	"github.com/temoto/thermux/internal/csvlog"
	"github.com/temoto/thermux/internal/display"
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/internal/session"
	"github.com/temoto/thermux/internal/tele"
	"github.com/temoto/thermux/log2"
)

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "thermux.hcl", "config file, optional unless set explicitly")
	flagBroker := cmdline.String("broker", "", "MQTT broker url, e.g. tcp://host:1883")
	flagModule := cmdline.Int("module", 0, "Thermistor Mux module number")
	flagShow := cmdline.String("show", "", "none|errors|topic|changed|all")
	flagLog := cmdline.Bool("log", false, "log data messages to CSV file")
	flagReboot := cmdline.Bool("reboot", false, "send Reboot command to the module")
	flagExit := cmdline.Bool("exit", false, "exit after startup commands are issued")
	flagDebug := cmdline.Bool("debug", false, "debug logging")
	_ = cmdline.Parse(os.Args[1:])
	flagSet := make(map[string]bool)
	cmdline.Visit(func(f *flag.Flag) { flagSet[f.Name] = true })

	if sdnotify("start") {
		// under systemd, journal adds timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	var conf *config.Config
	if _, err := os.Stat(*flagConfig); err != nil && os.IsNotExist(err) && !flagSet["config"] {
		conf = config.New()
	} else {
		conf = config.MustReadConfig(log, config.NewOsFullReader("."), *flagConfig)
	}
	if flagSet["broker"] {
		conf.Broker.BrokerURL = *flagBroker
	}
	if flagSet["module"] {
		conf.Sparkplug.ModuleID = *flagModule
	}
	if flagSet["show"] {
		conf.Show = *flagShow
	}
	if flagSet["log"] {
		conf.Log.Enable = *flagLog
	}
	if flagSet["debug"] {
		conf.LogDebug = *flagDebug
	}
	if err := conf.Validate(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if conf.LogDebug {
		log.SetLevel(log2.LDebug)
	}
	log.Debugf("config=%+v", conf)

	registry, err := metric.NewRegistry(metric.ThermistorMuxCatalog())
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	// session anomalies are printed by display, filtered by show mode
	var sessLog *log2.Log
	if conf.LogDebug {
		sessLog = log
	}
	sess := session.New(sessLog, registry, conf.SessionOptions())
	if _, err = sess.SwitchModule(conf.Sparkplug.ModuleID); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	showMode, _ := display.ParseShowMode(conf.Show)
	logPath := conf.Log.Path
	if logPath == "" {
		logPath = csvlog.DefaultPath(time.Now())
	}
	sh := &shell{
		log:     log,
		printer: display.NewPrinter(os.Stdout, showMode),
		csv:     csvlog.New(logPath),
		out:     os.Stdout,
	}
	sh.setLogging(conf.Log.Enable)
	client := tele.NewClient(log, conf.Broker, sess, sh.observe(registry))
	sh.ctl = client
	sh.quit = func() {
		client.Stop()
		os.Exit(0)
	}

	ctx := context.Background()
	ctx = log2.ContextWithLogger(ctx, log)
	if err = client.Start(ctx); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if *flagReboot {
		if err = client.Reboot(); err != nil {
			log.Error(errors.ErrorStack(err))
		}
	}
	if *flagExit {
		client.Stop()
		return
	}
	sdnotify(daemon.SdNotifyReady)

	sh.printer.Reportf("Thermistor Mux client connecting to %s, module %d", conf.Broker.BrokerURL, conf.Sparkplug.ModuleID)
	cli.MainLoop("thermux", sh.exec, sh.complete)
	client.Stop()
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
