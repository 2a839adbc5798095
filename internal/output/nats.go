package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
)

const (
	streamResolveResults  = "RESOLVE_RESULTS"
	subjectResolveResults = "resolve.results"
)

// NatsSink publishes result records to JetStream for downstream consumers.
type NatsSink struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewNatsSink(url string, log zerolog.Logger) (*NatsSink, error) {
	opts := []nats.Option{
		nats.Name("kuaishou-resolver"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Warn().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("nats disconnected")
			}
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamResolveResults,
		Subjects:    []string{subjectResolveResults},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxMsgs:     100000,
		Description: "Resolved media records",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	log.Info().Str("url", url).Msg("nats connected")
	return &NatsSink{nc: nc, js: js}, nil
}

func (s *NatsSink) Append(ctx context.Context, rec model.ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if _, err := s.js.Publish(ctx, subjectResolveResults, data); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

func (s *NatsSink) Close() {
	s.nc.Close()
}
