package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, task *Task) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, task *Task) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, task)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func newTestTask() *Task {
	return NewTask(model.Page{URL: "https://cafe.example/", State: model.StateProcessing}, extract.SiteContext{})
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	task := newTestTask()
	if task.Outcome.State != model.StateSuccess {
		t.Errorf("expected initial outcome success, got %v", task.Outcome.State)
	}
	if task.Outcome.CanonicalURL != task.Page.URL {
		t.Errorf("expected canonical URL %q, got %q", task.Page.URL, task.Outcome.CanonicalURL)
	}
	if task.Halted() || task.Body() != nil || task.IsHTML() {
		t.Error("expected a fresh task without response")
	}
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	if got := p.StepNames(); len(got) != 0 {
		t.Errorf("expected no steps, got %v", got)
	}
	p.AddStep(&mockStep{name: "a"})
	p.AddSteps(&mockStep{name: "b"}, &mockStep{name: "c"})

	if got := p.StepNames(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected step names %v", got)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Task) error {
				order = append(order, name)
				return nil
			}}
		}
		p := New()
		p.AddSteps(record("fetch"), record("discover"), record("extract"))

		if err := p.Execute(context.Background(), newTestTask()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(order, []string{"fetch", "discover", "extract"}) {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("halt skips remaining steps", func(t *testing.T) {
		t.Parallel()

		halting := &mockStep{name: "fetch", doFunc: func(_ context.Context, task *Task) error {
			task.Fail(errors.New("boom"))
			return nil
		}}
		after := &mockStep{name: "extract"}
		p := New()
		p.AddSteps(halting, after)

		task := newTestTask()
		if err := p.Execute(context.Background(), task); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected step after halt to be skipped")
		}
		if task.Outcome.State != model.StateFailed || task.HaltReason() != "failed" {
			t.Errorf("unexpected outcome %+v", task.Outcome)
		}
	})

	t.Run("step error stops pipeline and is wrapped", func(t *testing.T) {
		t.Parallel()

		errStep := errors.New("step failed")
		p := New()
		after := &mockStep{name: "after"}
		p.AddSteps(&mockStep{name: "broken", doFunc: func(context.Context, *Task) error { return errStep }}, after)

		err := p.Execute(context.Background(), newTestTask())
		if !errors.Is(err, errStep) {
			t.Fatalf("expected wrapped step error, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected step after error to be skipped")
		}
	})

	t.Run("cancelled context stops before next step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *Task) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}
		p := New()
		p.AddSteps(first, second)

		if err := p.Execute(ctx, newTestTask()); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("expected second step to be skipped")
		}
	})
}
