// Package output owns everything that leaves the pipeline: result records,
// diagnostic artifacts and downloaded media bytes.
package output

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
)

// Sink accepts result records, append-only. One record per processed detail
// page, in completion order.
type Sink interface {
	Append(ctx context.Context, rec model.ResultRecord) error
}

// StdoutSink writes records as JSON lines. Default sink when no store is
// configured.
type StdoutSink struct{}

func (StdoutSink) Append(_ context.Context, rec model.ResultRecord) error {
	return json.NewEncoder(os.Stdout).Encode(rec)
}

// MultiSink fans records out to several sinks; an error in one does not
// stop the others.
type MultiSink struct {
	sinks []Sink
	log   zerolog.Logger
}

func NewMultiSink(log zerolog.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, log: log}
}

func (m *MultiSink) Append(ctx context.Context, rec model.ResultRecord) error {
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil {
			m.log.Warn().Err(err).Str("page_url", rec.PageURL).Msg("sink append failed")
		}
	}
	return nil
}
