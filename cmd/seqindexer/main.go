package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

var (
	appName = "seqindexer"
	appSHA  = "latest-app-git-sha" // Populated by the compiler at the linking stage.
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSHA,
		"host": host,
	})

	if err := newApp(rootLogger).Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		_ = os.Stderr.Sync()

		os.Exit(1)
	}
}

func newApp(rootLogger *logrus.Logger) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSHA
	app.Usage = "load specimen sequence records from a relational database into a search index"
	// Session statements and filter values may contain commas.
	app.DisableSliceFlagSeparator = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"SEQINDEXER_CONFIG"},
			Usage:   "YAML file providing values for any of the flags below",
		},
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
			Usage:   "Minimum level of the emitted log entries",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "index-uri",
			Value:   "in-memory://",
			EnvVars: []string{"INDEX_URI"},
			Usage: "URI for connecting to the search index." +
				" [supported URI's: in-memory://, es://node1:9200,...,nodeN:9200, es+https://node1:9200]",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "index-name",
			Value:   "sequence",
			EnvVars: []string{"INDEX_NAME"},
			Usage:   "Name of the target index",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "doc-type",
			EnvVars: []string{"INDEX_DOC_TYPE"},
			Usage:   "Mapping type of the documents. Only needed by clusters that still use mapping types",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "index-username",
			EnvVars: []string{"INDEX_USERNAME"},
			Usage:   "Username for basic authentication against the index",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "index-password",
			EnvVars: []string{"INDEX_PASSWORD"},
			Usage:   "Password for basic authentication against the index",
		}),
	}
	app.Before = func(appCtx *cli.Context) error {
		if err := loadConfigFile(appCtx.App.Flags)(appCtx); err != nil {
			return err
		}

		level, err := logrus.ParseLevel(appCtx.String("log-level"))
		if err != nil {
			return err
		}
		rootLogger.SetLevel(level)

		return nil
	}
	app.Commands = []*cli.Command{
		provisionCommand(),
		syncCommand(),
		analyzeCommand(),
	}

	return app
}

// loadConfigFile fills the flags that were not set on the command line or
// through the environment from the file named by --config.
func loadConfigFile(flags []cli.Flag) cli.BeforeFunc {
	return altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config"))
}
