package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
	"github.com/kumma49/kuaishou-topn-downloader/internal/search"
)

type fakeSession struct {
	navigated []string
	navErr    error
	// linksPerStep is consumed one call at a time; the last entry repeats.
	linksPerStep [][]model.CandidateLink
	linksCall    int
	html         string
	closed       bool
}

func (f *fakeSession) Navigate(_ context.Context, url string, relaxed bool) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeSession) WaitAny(context.Context, []string, time.Duration) error { return nil }
func (f *fakeSession) ScrollStep(context.Context) error                       { return nil }

func (f *fakeSession) Links(context.Context) ([]model.CandidateLink, error) {
	if len(f.linksPerStep) == 0 {
		return nil, nil
	}
	i := f.linksCall
	if i >= len(f.linksPerStep) {
		i = len(f.linksPerStep) - 1
	}
	f.linksCall++
	return f.linksPerStep[i], nil
}

func (f *fakeSession) HTML(context.Context) (string, error)        { return f.html, nil }
func (f *fakeSession) Screenshot(context.Context) ([]byte, error)  { return []byte{1}, nil }
func (f *fakeSession) Close()                                      { f.closed = true }

type fakeStore struct {
	saved map[string]string // key -> content type
}

func (f *fakeStore) Save(_ context.Context, key string, _ []byte, contentType string) error {
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = contentType
	return nil
}

type fakeBackend struct {
	results []search.Result
	calls   int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(context.Context, string, int) ([]search.Result, error) {
	f.calls++
	return f.results, nil
}

func detail(id string) string {
	return "https://www.kuaishou.com/short-video/" + id
}

func openerFor(t *testing.T, sessions ...*fakeSession) OpenSession {
	i := 0
	return func(context.Context) (Session, error) {
		require.Less(t, i, len(sessions), "more sessions opened than expected")
		s := sessions[i]
		i++
		return s, nil
	}
}

func TestWaterfallShortCircuitsOnPrimary(t *testing.T) {
	primary := &fakeSession{
		linksPerStep: [][]model.CandidateLink{{
			{URL: detail("a"), ContextText: "1.2w"},
			{URL: "https://www.kuaishou.com/profile/x", ContextText: "ignored"},
		}},
	}
	serp := &fakeBackend{results: []search.Result{{URL: detail("serp")}}}
	agg := search.NewAggregator([]search.Backend{serp}, "kuaishou.com/short-video", zerolog.Nop())

	w := NewWaterfall(openerFor(t, primary), agg, "www.kuaishou.com", "m.kuaishou.com", 2, nil, zerolog.Nop())
	out := w.Discover(context.Background(), "cat")

	assert.Equal(t, StrategyPrimaryHost, out.Strategy)
	require.Len(t, out.Links, 1)
	assert.Equal(t, detail("a"), out.Links[0].URL)
	assert.Equal(t, 0, serp.calls, "external aggregator must not run after a primary yield")
	assert.True(t, primary.closed)
	assert.Contains(t, primary.navigated[0], "www.kuaishou.com/search/video?searchKey=cat")
}

func TestWaterfallFallsBackToMirror(t *testing.T) {
	primary := &fakeSession{}
	mirror := &fakeSession{
		linksPerStep: [][]model.CandidateLink{{{URL: detail("m"), ContextText: "300"}}},
	}

	w := NewWaterfall(openerFor(t, primary, mirror), nil, "www.kuaishou.com", "m.kuaishou.com", 2, nil, zerolog.Nop())
	out := w.Discover(context.Background(), "cat")

	assert.Equal(t, StrategyMirrorHost, out.Strategy)
	require.Len(t, out.Links, 1)
	assert.Contains(t, mirror.navigated[0], "m.kuaishou.com")
}

func TestWaterfallFallsBackToSerpWithoutContext(t *testing.T) {
	primary := &fakeSession{}
	mirror := &fakeSession{}
	serp := &fakeBackend{results: []search.Result{{URL: detail("s1")}, {URL: detail("s2")}}}
	agg := search.NewAggregator([]search.Backend{serp}, "kuaishou.com/short-video", zerolog.Nop())

	w := NewWaterfall(openerFor(t, primary, mirror), agg, "www.kuaishou.com", "m.kuaishou.com", 2, nil, zerolog.Nop())
	out := w.Discover(context.Background(), "cat")

	assert.Equal(t, StrategySerp, out.Strategy)
	require.Len(t, out.Links, 2)
	assert.Equal(t, detail("s1"), out.Links[0].URL)
	assert.Empty(t, out.Links[0].ContextText)
	assert.Equal(t, detail("s2"), out.Links[1].URL)
}

func TestWaterfallExhaustedCapturesSnapshot(t *testing.T) {
	primary := &fakeSession{html: "<html>primary shell</html>"}
	mirror := &fakeSession{html: "<html>mirror shell</html>"}
	store := &fakeStore{}

	w := NewWaterfall(openerFor(t, primary, mirror), nil, "www.kuaishou.com", "m.kuaishou.com", 2, store, zerolog.Nop())
	out := w.Discover(context.Background(), "nothing")

	assert.Equal(t, StrategyExhausted, out.Strategy)
	assert.Empty(t, out.Links)

	var htmlSaved, shotSaved bool
	for _, ct := range store.saved {
		switch ct {
		case "text/html":
			htmlSaved = true
		case "image/png":
			shotSaved = true
		}
	}
	assert.True(t, htmlSaved, "exhaustion must save rendered markup")
	assert.True(t, shotSaved, "exhaustion must save a visual capture")
}

func TestWaterfallHarvestIsCumulative(t *testing.T) {
	primary := &fakeSession{
		linksPerStep: [][]model.CandidateLink{
			{{URL: detail("a"), ContextText: "100"}},
			{{URL: detail("a"), ContextText: "100"}, {URL: detail("b"), ContextText: "200"}},
			{{URL: detail("c"), ContextText: "300"}},
		},
	}

	w := NewWaterfall(openerFor(t, primary), nil, "www.kuaishou.com", "", 3, nil, zerolog.Nop())
	out := w.Discover(context.Background(), "cat")

	require.Len(t, out.Links, 3)
	assert.Equal(t, detail("a"), out.Links[0].URL)
	assert.Equal(t, detail("b"), out.Links[1].URL)
	assert.Equal(t, detail("c"), out.Links[2].URL)
}

func TestWaterfallSmallHarvestUnionsRawScan(t *testing.T) {
	primary := &fakeSession{
		linksPerStep: [][]model.CandidateLink{{{URL: detail("anchor"), ContextText: "5"}}},
		html:         `<script>var feed = ["` + detail("embedded1") + `","` + detail("embedded2") + `"];</script>`,
	}

	w := NewWaterfall(openerFor(t, primary), nil, "www.kuaishou.com", "", 1, nil, zerolog.Nop())
	out := w.Discover(context.Background(), "cat")

	require.Len(t, out.Links, 3)
	assert.Equal(t, detail("anchor"), out.Links[0].URL)
	assert.Equal(t, detail("embedded1"), out.Links[1].URL)
	assert.Equal(t, detail("embedded2"), out.Links[2].URL)
}
