package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/bacembenakkari/TalentCloud/internal/config"
	"github.com/bacembenakkari/TalentCloud/internal/database"
)

func main() {
	log := logrus.New()

	app := &cli.App{
		Name:  "migrate",
		Usage: "apply or roll back the TalentCloud schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Usage:   "migrations source URL",
				Value:   database.DefaultMigrationsSource,
				EnvVars: []string{"MIGRATIONS_SOURCE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: func(c *cli.Context) error { return run(c, "up", log) },
			},
			{
				Name:   "down",
				Usage:  "roll back every migration",
				Action: func(c *cli.Context) error { return run(c, "down", log) },
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}
}

func run(c *cli.Context, direction string, log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	log.WithField("direction", direction).Info("Running database migrations...")
	return db.Migrate(direction, c.String("source"), log)
}
