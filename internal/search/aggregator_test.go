package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeBackend struct {
	name    string
	results []Result
	err     error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func detail(id string) string {
	return "https://www.kuaishou.com/short-video/" + id
}

func TestAggregatorMergePreservesBackendOrder(t *testing.T) {
	a := NewAggregator([]Backend{
		&fakeBackend{name: "A", results: []Result{{URL: detail("x")}, {URL: detail("y")}}},
		&fakeBackend{name: "B", results: []Result{{URL: detail("y")}, {URL: detail("z")}}},
	}, "kuaishou.com/short-video", zerolog.Nop())

	got := a.Query(context.Background(), "cat")
	assert.Equal(t, []string{detail("x"), detail("y"), detail("z")}, got)
}

func TestAggregatorToleratesBackendFailure(t *testing.T) {
	a := NewAggregator([]Backend{
		&fakeBackend{name: "A", results: []Result{{URL: detail("x")}, {URL: detail("y")}}},
		&fakeBackend{name: "B", err: errors.New("boom")},
	}, "kuaishou.com/short-video", zerolog.Nop())

	got := a.Query(context.Background(), "cat")
	assert.Equal(t, []string{detail("x"), detail("y")}, got)
}

func TestAggregatorFiltersNonDetailURLs(t *testing.T) {
	a := NewAggregator([]Backend{
		&fakeBackend{name: "A", results: []Result{
			{URL: "https://www.kuaishou.com/profile/someone"},
			{URL: detail("ok")},
			{URL: "https://other-site.com/short-video/nope"},
		}},
	}, "kuaishou.com/short-video", zerolog.Nop())

	got := a.Query(context.Background(), "cat")
	assert.Equal(t, []string{detail("ok")}, got)
}

func TestAggregatorCapsResults(t *testing.T) {
	results := make([]Result, 0, 300)
	for i := 0; i < 300; i++ {
		results = append(results, Result{URL: detail(fmt.Sprintf("id%03d", i))})
	}
	a := NewAggregator([]Backend{&fakeBackend{name: "A", results: results}}, "kuaishou.com/short-video", zerolog.Nop())

	got := a.Query(context.Background(), "cat")
	assert.LessOrEqual(t, len(got), defaultMaxResults)
}

func TestAggregatorEmptyKeyword(t *testing.T) {
	a := NewAggregator([]Backend{&fakeBackend{name: "A", results: []Result{{URL: detail("x")}}}}, "kuaishou.com/short-video", zerolog.Nop())
	assert.Nil(t, a.Query(context.Background(), ""))
}
