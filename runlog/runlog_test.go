package runlog_test

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/mdbatch/batch"
	"github.com/hazyhaar/mdbatch/convert"
	"github.com/hazyhaar/mdbatch/runlog"
)

func openLog(t *testing.T) *runlog.Log {
	t.Helper()
	l, err := runlog.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	finished := time.Now().Truncate(time.Second)

	id, err := l.Record(ctx, runlog.Run{
		StartedAt:            started,
		FinishedAt:           finished,
		SourceDir:            "/data/docs",
		Total:                10,
		Success:              7,
		Cached:               2,
		Resumed:              1,
		Failed:               1,
		Filtered:             2,
		CompletionPercentage: 70.0,
		AverageConfidence:    0.85,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 {
		t.Fatalf("id = %d", id)
	}

	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.SourceDir != "/data/docs" || r.Total != 10 || r.Success != 7 {
		t.Errorf("run = %+v", r)
	}
	if !r.StartedAt.Equal(started) {
		t.Errorf("started = %v, want %v", r.StartedAt, started)
	}
	if r.CompletionPercentage != 70.0 || r.AverageConfidence != 0.85 {
		t.Errorf("percentages = %g / %g", r.CompletionPercentage, r.AverageConfidence)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		_, err := l.Record(ctx, runlog.Run{
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Total:      i + 1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Total != 3 || runs[1].Total != 2 {
		t.Errorf("order wrong: totals %d, %d", runs[0].Total, runs[1].Total)
	}
}

func TestFromResult(t *testing.T) {
	res := &batch.Result{
		SourceDir: "/src",
		Items: []batch.Item{
			{SourcePath: "/src/a.txt", Status: batch.StatusSuccess,
				Result: &convert.Result{Quality: convert.NewQuality("TextConverter")}},
			{SourcePath: "/src/b.txt", Status: batch.StatusCached,
				Result: &convert.Result{Quality: convert.NewQuality("TextConverter")}},
			{SourcePath: "/src/c.bad", Status: batch.StatusFailed, Error: "broken"},
		},
	}
	started := time.Now().Add(-time.Second)
	finished := time.Now()

	r := runlog.FromResult(res, started, finished)
	if r.Total != 3 || r.Success != 2 || r.Cached != 1 || r.Failed != 1 {
		t.Errorf("run = %+v", r)
	}
	if r.SourceDir != "/src" {
		t.Errorf("source dir = %q", r.SourceDir)
	}

	l := openLog(t)
	if _, err := l.Record(context.Background(), r); err != nil {
		t.Fatal(err)
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	l, err := runlog.Open(dir + "/deep/nested/runs.db")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if _, err := l.Record(context.Background(), runlog.Run{
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Total:      1,
	}); err != nil {
		t.Fatal(err)
	}
}
