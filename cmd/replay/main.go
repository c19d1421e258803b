package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/bacembenakkari/TalentCloud/internal/config"
	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/kafka"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	app := &cli.App{
		Name:      "replay",
		Usage:     "republish events that were logged as unpublished",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "topic", Usage: "publish every event to this topic"},
			&cli.StringFlag{Name: "key", Usage: "partition key for every event"},
			&cli.StringFlag{Name: "event-type", Usage: "event type for lines that do not name one"},
			&cli.BoolFlag{Name: "dry-run", Usage: "show where events would land without publishing"},
			&cli.IntFlag{Name: "partitions", Value: 3, Usage: "partition count assumed by --dry-run"},
		},
		Action: func(c *cli.Context) error {
			return run(c, log)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("Replay failed")
	}
}

func run(c *cli.Context, log *logrus.Logger) error {
	var fallback events.EventType
	if s := c.String("event-type"); s != "" {
		t, err := events.ParseEventType(s)
		if err != nil {
			return err
		}
		fallback = t
	}

	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	records, err := readRecords(in, fallback, c.String("topic"), c.String("key"))
	if err != nil {
		return err
	}
	log.WithField("events", len(records)).Info("Loaded events for replay")

	if c.Bool("dry-run") {
		analyzer := kafka.NewPartitionAnalyzer(int32(c.Int("partitions")))
		for _, r := range records {
			partition, err := analyzer.Add(r.Topic, r.Key)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"event_id":   r.Envelope.EventID,
				"event_type": r.Envelope.EventType,
				"topic":      r.Topic,
				"key":        r.Key,
				"partition":  partition,
			}).Info("Would publish event")
		}
		fmt.Print(analyzer.Summary())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := kafka.HealthCheck(cfg.Kafka.Brokers); err != nil {
		return err
	}

	producer, err := kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: "talentcloud-replay",
	}, log, metrics.Noop{})
	if err != nil {
		return err
	}

	return publishAll(context.Background(), producer, records)
}

type publisher interface {
	Publish(ctx context.Context, topic, key string, env *events.Envelope) error
	Close() error
	Failed() int64
}

// publishAll sends records in order and fails if the brokers rejected any
// of them.
func publishAll(ctx context.Context, p publisher, records []*record) error {
	for _, r := range records {
		if err := p.Publish(ctx, r.Topic, r.Key, r.Envelope); err != nil {
			p.Close()
			return fmt.Errorf("failed to replay event %s: %w", r.Envelope.EventID, err)
		}
	}

	// Close waits for every delivery report, failures included.
	if err := p.Close(); err != nil {
		return err
	}
	if failed := p.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d events were rejected by the broker", failed, len(records))
	}
	return nil
}

func readRecords(in io.Reader, fallback events.EventType, topic, key string) ([]*record, error) {
	var records []*record

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		r, err := parseLine(scanner.Bytes(), fallback)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if r == nil {
			continue
		}
		if topic != "" {
			r.Topic = topic
		}
		if key != "" {
			r.Key = key
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return records, nil
}
