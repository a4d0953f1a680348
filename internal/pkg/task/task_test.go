package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/gymmap/internal/pkg/task"
)

func TestRun_Resolves(t *testing.T) {
	tk := task.Run(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})

	v, err := tk.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if tk.State() != task.Resolved {
		t.Errorf("expected resolved, got %s", tk.State())
	}
}

func TestRun_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	tk := task.Run(context.Background(), func(ctx context.Context) (int, error) {
		return 0, boom
	})

	_, err := tk.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if errors.Is(err, task.ErrCancelled) {
		t.Error("a plain failure must not look like a cancellation")
	}
	if tk.State() != task.Rejected {
		t.Errorf("expected rejected, got %s", tk.State())
	}
}

func TestCancel_DropsLateResult(t *testing.T) {
	release := make(chan struct{})
	returned := make(chan struct{})
	tk := task.Run(context.Background(), func(ctx context.Context) (int, error) {
		defer close(returned)
		<-release
		return 7, nil // ignores ctx on purpose: cancellation is cooperative
	})

	cause := errors.New("user interaction")
	if !tk.Cancel(cause) {
		t.Fatal("expected Cancel to report a pending task")
	}

	close(release)
	<-returned

	v, err := tk.Await(context.Background())
	if !errors.Is(err, task.ErrCancelled) || !errors.Is(err, cause) {
		t.Fatalf("expected cancellation wrapping cause, got %v", err)
	}
	if v != 0 {
		t.Errorf("cancelled task leaked result %d", v)
	}
	if tk.State() != task.Cancelled {
		t.Errorf("expected cancelled, got %s", tk.State())
	}
	if tk.Cancel(cause) {
		t.Error("second Cancel must be a no-op")
	}
}

func TestCancel_SignalsContext(t *testing.T) {
	seen := make(chan error, 1)
	tk := task.Run(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		seen <- context.Cause(ctx)
		return 0, ctx.Err()
	})

	tk.Cancel(nil)

	select {
	case cause := <-seen:
		if !errors.Is(cause, task.ErrCancelled) {
			t.Errorf("expected ErrCancelled cause, got %v", cause)
		}
	case <-time.After(time.Second):
		t.Fatal("op context was not cancelled")
	}
}

func TestCancel_AfterResolveIsNoop(t *testing.T) {
	tk := task.Run(context.Background(), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	<-tk.Done()

	if tk.Cancel(nil) {
		t.Error("Cancel on a resolved task must report false")
	}
	v, err := tk.Await(context.Background())
	if err != nil || v != "done" {
		t.Errorf("expected resolved value, got %q, %v", v, err)
	}
}

func TestRun_ParentCancellationIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := task.Run(ctx, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	cancel()

	_, err := tk.Await(context.Background())
	if !errors.Is(err, task.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestAwait_ContextDone(t *testing.T) {
	tk := task.Run(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	defer tk.Cancel(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := tk.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if tk.State() != task.Pending {
		t.Errorf("Await timing out must not settle the task, got %s", tk.State())
	}
}

func TestSlot_StartCancelsPrevious(t *testing.T) {
	var slot task.Slot[int]
	block := func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	first := slot.Start(context.Background(), block)
	second := slot.Start(context.Background(), block)
	defer slot.Cancel(nil)

	_, err := first.Await(context.Background())
	if !errors.Is(err, task.ErrSuperseded) {
		t.Fatalf("expected first task superseded, got %v", err)
	}
	if second.State() != task.Pending {
		t.Errorf("expected second task pending, got %s", second.State())
	}
	if slot.Finish(first) {
		t.Error("superseded task must not be claimable")
	}
}

func TestSlot_FinishClaimsOnce(t *testing.T) {
	var slot task.Slot[int]
	tk := slot.Start(context.Background(), func(ctx context.Context) (int, error) {
		return 1, nil
	})
	<-tk.Done()

	if !slot.Finish(tk) {
		t.Fatal("expected current task to be claimable")
	}
	if slot.Finish(tk) {
		t.Error("a task can only be claimed once")
	}
	if slot.Busy() {
		t.Error("slot should be empty after Finish")
	}
}

func TestSlot_CancelForgetsSettledTask(t *testing.T) {
	var slot task.Slot[int]
	tk := slot.Start(context.Background(), func(ctx context.Context) (int, error) {
		return 1, nil
	})
	<-tk.Done()

	if !slot.Cancel(errors.New("pan")) {
		t.Fatal("expected Cancel to find the settled task")
	}
	if slot.Finish(tk) {
		t.Error("a task forgotten by Cancel must not be applied")
	}
}

func TestSlot_CancelEmpty(t *testing.T) {
	var slot task.Slot[int]
	if slot.Cancel(nil) {
		t.Error("Cancel on an empty slot must report false")
	}
}
