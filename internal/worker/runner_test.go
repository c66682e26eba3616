package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"signalchat/internal/config"
	"signalchat/internal/domain"
	"signalchat/internal/fetcher"
	"signalchat/internal/notifier"
)

type mockFetcher struct {
	result *fetcher.Result
	err    error
	since  []string
}

func (m *mockFetcher) Fetch(_ context.Context, since string) (*fetcher.Result, error) {
	m.since = append(m.since, since)
	if m.err != nil {
		return nil, m.err
	}
	records := make([]domain.Record, len(m.result.Records))
	copy(records, m.result.Records)
	return &fetcher.Result{Records: records, Total: m.result.Total}, nil
}

type mockNotifier struct {
	mu     sync.Mutex
	texts  []string
	failOn string
}

func (m *mockNotifier) Publish(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return &notifier.PublishError{Chunk: 1, Err: errors.New("network error")}
	}
	m.texts = append(m.texts, text)
	return nil
}

type mockStore struct {
	mu      sync.Mutex
	value   string
	readErr error
	writes  []time.Time
}

func (m *mockStore) Read(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", m.readErr
	}
	if m.value == "" {
		return domain.DefaultWatermark, nil
	}
	return m.value, nil
}

func (m *mockStore) Write(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, now)
	m.value = now.Format(domain.WatermarkLayout)
	return nil
}

var fixedNow = time.Date(2022, 2, 3, 14, 5, 0, 0, time.Local)

func newTestRunner(f fetcher.Fetcher, n notifier.Notifier, s *mockStore) *Runner {
	r := NewRunner(f, n, s, config.RunConfig{}, zap.NewNop())
	r.now = func() time.Time { return fixedNow }
	return r
}

func record(id int64, tlp string) domain.Record {
	return domain.Record{
		ID:        id,
		Subject:   fmt.Sprintf("subject-%d", id),
		Body:      "body",
		CreatedAt: "2022/02/01 10:00",
		UpdatedAt: "2022/02/01 10:00",
		TLP:       tlp,
	}
}

func TestRunOncePublishesInIDOrder(t *testing.T) {
	f := &mockFetcher{result: &fetcher.Result{
		Records: []domain.Record{record(3, "GREEN"), record(1, "AMBER"), record(2, "")},
		Total:   3,
	}}
	n := &mockNotifier{}
	s := &mockStore{}

	if err := newTestRunner(f, n, s).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(n.texts) != 3 {
		t.Fatalf("got %d publishes, want 3", len(n.texts))
	}
	for i, want := range []string{"*subject-1*", "*subject-2*", "*subject-3*"} {
		if !strings.HasPrefix(n.texts[i], want) {
			t.Errorf("publish %d = %q, want prefix %q", i, n.texts[i], want)
		}
	}
	if f.since[0] != domain.DefaultWatermark {
		t.Errorf("fetched since %q, want default watermark", f.since[0])
	}
	if len(s.writes) != 1 || !s.writes[0].Equal(fixedNow) {
		t.Errorf("writes = %v, want [%v]", s.writes, fixedNow)
	}
}

func TestRunOnceSkipsRestricted(t *testing.T) {
	f := &mockFetcher{result: &fetcher.Result{
		Records: []domain.Record{record(1, domain.TLPRed)},
		Total:   1,
	}}
	n := &mockNotifier{}
	s := &mockStore{}

	if err := newTestRunner(f, n, s).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(n.texts) != 0 {
		t.Errorf("got %d publishes, want 0", len(n.texts))
	}
	// RED records still count towards the window.
	if len(s.writes) != 1 {
		t.Errorf("got %d writes, want 1", len(s.writes))
	}
}

func TestRunOnceNoUpdatesKeepsWatermark(t *testing.T) {
	f := &mockFetcher{result: &fetcher.Result{Total: 0}}
	n := &mockNotifier{}
	s := &mockStore{value: "2022/02/01 00:00"}
	r := newTestRunner(f, n, s)

	for i := 0; i < 2; i++ {
		if err := r.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
	}

	if len(n.texts) != 0 {
		t.Errorf("got %d publishes, want 0", len(n.texts))
	}
	if len(s.writes) != 0 {
		t.Errorf("got %d writes, want 0", len(s.writes))
	}
	for _, since := range f.since {
		if since != "2022/02/01 00:00" {
			t.Errorf("fetched since %q, want stored watermark", since)
		}
	}
}

func TestRunOnceFetchErrorKeepsWatermark(t *testing.T) {
	fetchErr := &fetcher.Error{Source: "threads", Err: errors.New("HTTP 502")}
	f := &mockFetcher{err: fetchErr}
	s := &mockStore{}

	err := newTestRunner(f, &mockNotifier{}, s).RunOnce(context.Background())

	var target *fetcher.Error
	if !errors.As(err, &target) {
		t.Fatalf("expected fetcher.Error, got %T: %v", err, err)
	}
	if len(s.writes) != 0 {
		t.Errorf("got %d writes, want 0", len(s.writes))
	}
}

func TestRunOncePublishErrorStopsRun(t *testing.T) {
	f := &mockFetcher{result: &fetcher.Result{
		Records: []domain.Record{record(1, ""), record(2, ""), record(3, "")},
		Total:   3,
	}}
	n := &mockNotifier{failOn: "subject-2"}
	s := &mockStore{}

	err := newTestRunner(f, n, s).RunOnce(context.Background())

	var pubErr *notifier.PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Errorf("error %q does not name the record", err)
	}
	if len(n.texts) != 1 {
		t.Errorf("got %d publishes, want 1", len(n.texts))
	}
	if len(s.writes) != 0 {
		t.Errorf("got %d writes, want 0", len(s.writes))
	}
}

func TestRunOnceCheckpointReadError(t *testing.T) {
	f := &mockFetcher{result: &fetcher.Result{}}
	s := &mockStore{readErr: errors.New("permission denied")}

	if err := newTestRunner(f, &mockNotifier{}, s).RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() expected error")
	}
	if len(f.since) != 0 {
		t.Error("fetch should not run without a watermark")
	}
}

func TestStartWatchModeRetriesUntilCancelled(t *testing.T) {
	f := &mockFetcher{err: &fetcher.Error{Source: "threads", Err: errors.New("HTTP 503")}}
	s := &mockStore{}
	r := NewRunner(f, &mockNotifier{}, s, config.RunConfig{Interval: 10 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := r.Start(ctx)

	var fetchErr *fetcher.Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Start() = %v, want the last run's fetch error", err)
	}
	if len(f.since) < 2 {
		t.Errorf("got %d fetches, want retries on each tick", len(f.since))
	}
}

func TestStartWatchModeCleanExitAfterSuccess(t *testing.T) {
	f := &mockFetcher{result: &fetcher.Result{Total: 0}}
	r := NewRunner(f, &mockNotifier{}, &mockStore{}, config.RunConfig{Interval: 10 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestStartSingleRunReturnsError(t *testing.T) {
	f := &mockFetcher{err: &fetcher.Error{Source: "threads", Err: errors.New("HTTP 503")}}
	r := newTestRunner(f, &mockNotifier{}, &mockStore{})

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("Start() expected error in single-run mode")
	}
}

func TestProperty_PublishOrderAndRestriction(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("publishes non-RED records in ascending id order", prop.ForAll(
		func(ids []int64, red []bool) bool {
			var records []domain.Record
			var want []string
			seen := map[int64]bool{}
			for i, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				tlp := ""
				if i < len(red) && red[i] {
					tlp = domain.TLPRed
				}
				records = append(records, record(id, tlp))
			}

			sorted := make([]domain.Record, len(records))
			copy(sorted, records)
			domain.SortByID(sorted)
			for _, rec := range sorted {
				if !rec.Restricted() {
					want = append(want, fmt.Sprintf("*subject-%d*", rec.ID))
				}
			}

			f := &mockFetcher{result: &fetcher.Result{Records: records, Total: len(records)}}
			n := &mockNotifier{}
			s := &mockStore{}
			if err := newTestRunner(f, n, s).RunOnce(context.Background()); err != nil {
				return false
			}

			if len(n.texts) != len(want) {
				return false
			}
			for i := range want {
				if !strings.HasPrefix(n.texts[i], want[i]+"\n") {
					return false
				}
			}
			wantWrites := 0
			if len(records) > 0 {
				wantWrites = 1
			}
			return len(s.writes) == wantWrites
		},
		gen.SliceOf(gen.Int64Range(1, 1000)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
