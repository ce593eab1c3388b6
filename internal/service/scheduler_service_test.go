package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestScheduler_PeriodicallyCompactsListedFiles(t *testing.T) {
	fs := &fakeFileSystem{
		listing: []model.FileStatus{
			{Path: "/src/d20260110_ab12", IsFile: true, Length: 100},
			{Path: "/src/not-a-dir", IsFile: false},
		},
	}
	bulk := &fakeBulkLoad{}
	svc := newTestService(fs, nil, &fakeWriterFactory{mobPath: "/tmp/m", refPath: "/staging/r"}, &fakeArchival{}, bulk, defaultTestConfig())

	sched := service.NewScheduler(fs, svc, "/src", 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	deadline := time.Now().Add(200 * time.Millisecond)
	for atomic.LoadInt32(&fs.listCalls) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	sched.Stop()

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&fs.listCalls)), 1, "scheduler must list the source directory at least once before being stopped")
}

func TestScheduler_EmptyDirectoryIsANoOp(t *testing.T) {
	fs := &fakeFileSystem{listing: nil}
	svc := newTestService(fs, nil, &fakeWriterFactory{}, &fakeArchival{}, &fakeBulkLoad{}, defaultTestConfig())

	sched := service.NewScheduler(fs, svc, "/src", 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	deadline := time.Now().Add(100 * time.Millisecond)
	for atomic.LoadInt32(&fs.listCalls) < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	sched.Stop()

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&fs.listCalls)), 1)
}

func TestScheduler_StopWaitsForLoopExit(t *testing.T) {
	fs := &fakeFileSystem{}
	svc := newTestService(fs, nil, &fakeWriterFactory{}, &fakeArchival{}, &fakeBulkLoad{}, defaultTestConfig())

	sched := service.NewScheduler(fs, svc, "/src", time.Hour, zap.NewNop())

	ctx := context.Background()
	sched.Start(ctx)

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}
}
