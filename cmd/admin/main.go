package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/bacembenakkari/TalentCloud/internal/config"
	"github.com/bacembenakkari/TalentCloud/internal/database"
	"github.com/bacembenakkari/TalentCloud/internal/guard"
	"github.com/bacembenakkari/TalentCloud/internal/identity"
	"github.com/bacembenakkari/TalentCloud/internal/kafka"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
	"github.com/bacembenakkari/TalentCloud/internal/models"
	"github.com/bacembenakkari/TalentCloud/internal/service"
)

// services is everything a command needs; close releases it.
type services struct {
	profiles     *service.ProfileService
	applications *service.ApplicationService
	jobs         *service.JobOfferService
	close        func()
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	app := &cli.App{
		Name:  "admin",
		Usage: "run TalentCloud lifecycle operations against the live database and brokers",
		Commands: []*cli.Command{
			{
				Name:  "create-profile",
				Usage: "create a PENDING profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Required: true},
					&cli.StringFlag{Name: "kind", Value: string(models.KindCandidate), Usage: "CANDIDATE or CLIENT"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.StringFlag{Name: "job-title"},
				},
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					return s.profiles.CreateProfile(ctx, service.CreateProfileInput{
						UserID:    c.String("user-id"),
						Kind:      models.ProfileKind(strings.ToUpper(c.String("kind"))),
						Email:     c.String("email"),
						FirstName: c.String("first-name"),
						LastName:  c.String("last-name"),
						JobTitle:  c.String("job-title"),
					})
				}),
			},
			{
				Name:      "approve",
				Usage:     "approve a pending profile",
				ArgsUsage: "<profile-id>",
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					id, err := idArg(c, 0)
					if err != nil {
						return nil, err
					}
					return s.profiles.Approve(ctx, id)
				}),
			},
			{
				Name:      "reject",
				Usage:     "reject a pending profile",
				ArgsUsage: "<profile-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Required: true},
				},
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					id, err := idArg(c, 0)
					if err != nil {
						return nil, err
					}
					return s.profiles.Reject(ctx, id, c.String("reason"))
				}),
			},
			{
				Name:      "reset",
				Usage:     "put a reviewed profile back to PENDING",
				ArgsUsage: "<profile-id>",
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					id, err := idArg(c, 0)
					if err != nil {
						return nil, err
					}
					return s.profiles.ResetToPending(ctx, id)
				}),
			},
			{
				Name:      "visibility",
				Usage:     "set profile visibility (PUBLIC, PRIVATE, RESTRICTED)",
				ArgsUsage: "<profile-id> <setting>",
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					id, err := idArg(c, 0)
					if err != nil {
						return nil, err
					}
					return s.profiles.SetVisibility(ctx, id, c.Args().Get(1))
				}),
			},
			{
				Name:      "block",
				Usage:     "block or unblock a profile",
				ArgsUsage: "<profile-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "unblock"},
				},
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					id, err := idArg(c, 0)
					if err != nil {
						return nil, err
					}
					return s.profiles.Block(ctx, id, !c.Bool("unblock"))
				}),
			},
			{
				Name:  "create-job",
				Usage: "post a job offer for a client",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client-id", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "location"},
					&cli.StringFlag{Name: "employment-type"},
				},
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					return s.jobs.Create(ctx, service.CreateJobOfferInput{
						ClientID:       c.String("client-id"),
						Title:          c.String("title"),
						Description:    c.String("description"),
						Location:       c.String("location"),
						EmploymentType: c.String("employment-type"),
					})
				}),
			},
			{
				Name:  "apply",
				Usage: "submit an application on behalf of an approved candidate",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "candidate-id", Required: true},
					&cli.Int64Flag{Name: "job-offer-id", Required: true},
				},
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					return s.applications.Apply(ctx, c.String("candidate-id"), c.Int64("job-offer-id"))
				}),
			},
			{
				Name:      "application-status",
				Usage:     "set an application's status (SUBMITTED, UNDER_REVIEW, ACCEPTED, REFUSED)",
				ArgsUsage: "<application-id> <status>",
				Action: withServices(log, func(ctx context.Context, c *cli.Context, s *services) (interface{}, error) {
					id, err := idArg(c, 0)
					if err != nil {
						return nil, err
					}
					status := models.ApplicationStatus(strings.ToUpper(c.Args().Get(1)))
					return s.applications.UpdateStatus(ctx, id, status)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("Command failed")
	}
}

func idArg(c *cli.Context, n int) (int64, error) {
	raw := c.Args().Get(n)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

type action func(ctx context.Context, c *cli.Context, s *services) (interface{}, error)

// withServices wires the services, runs fn and prints its result as JSON.
func withServices(log *logrus.Logger, fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newServices(log)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
		defer cancel()

		result, err := fn(ctx, c, s)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

func newServices(log *logrus.Logger) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}

	// Metrics go to stderr; stdout carries the command result.
	var rec metrics.Recorder = metrics.Noop{}
	shutdownMetrics := func() {}
	if cfg.Metrics.Enabled {
		provider, err := metrics.NewProvider(os.Stderr, cfg.Metrics.Interval)
		if err != nil {
			db.Close()
			return nil, err
		}
		shutdownMetrics = func() { provider.Shutdown(context.Background()) }
		if rec, err = metrics.New(provider); err != nil {
			shutdownMetrics()
			db.Close()
			return nil, err
		}
	}

	producer, err := kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID + "-admin",
	}, log, rec)
	if err != nil {
		shutdownMetrics()
		db.Close()
		return nil, err
	}

	repo := database.NewRepository(db.DB)
	g := guard.New(producer, log, rec)
	resolver := identity.NewResolver(
		identity.NewHTTPClient(cfg.Identity.BaseURL, cfg.Identity.Timeout),
		cfg.Identity.FallbackDomain,
		log,
		rec,
	)

	return &services{
		profiles:     service.NewProfileService(repo, g, resolver, log),
		applications: service.NewApplicationService(repo, repo, repo, g, resolver, log),
		jobs:         service.NewJobOfferService(repo, g, log),
		close: func() {
			// Producer first: its Close waits for delivery reports.
			producer.Close()
			shutdownMetrics()
			db.Close()
		},
	}, nil
}
