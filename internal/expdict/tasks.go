package expdict

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// taskGroup runs background tasks and lets Close wait for them.
type taskGroup struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Go starts fn unless the group is closed.
func (g *taskGroup) Go(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}

	g.wg.Add(1)

	go func() {
		defer g.wg.Done()

		fn()
	}()

	return true
}

func (g *taskGroup) wait() {
	g.wg.Wait()
}

func (g *taskGroup) closeAndWait() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()
}

// writeTask is the single pending slot of the debounced writer.
type writeTask struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// AsyncWriteBinary serializes the writer to the dictionary file in the
// background.
//
// A newer call cancels a task still waiting for the locks. A task that
// already holds them runs to completion. The written file is not mapped
// and no timestamps change.
func (d *Dictionary) AsyncWriteBinary() {
	if d.closed.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &writeTask{ctx: ctx, cancel: cancel}

	if prev := d.pendingWrite.Swap(task); prev != nil {
		prev.cancel()
		d.metrics.writeSuperseded(d.dictType)
	}

	if !d.tasks.Go(func() { d.runWriteTask(task) }) {
		d.pendingWrite.CompareAndSwap(task, nil)
		cancel()
	}
}

func (d *Dictionary) runWriteTask(task *writeTask) {
	defer task.cancel()
	defer d.pendingWrite.CompareAndSwap(task, nil)

	unlockShared, err := d.lockShared()
	if err != nil {
		d.fail(StageLock, err)

		return
	}

	d.local.lock()

	start := time.Now()
	wrote := false

	// Cancellation is only observed here, before any work.
	err = task.ctx.Err()
	if err == nil && !d.closed.Load() {
		err = d.writeLocked()
		wrote = err == nil
	}

	d.local.unlock()
	unlockShared()

	switch {
	case wrote:
		d.metrics.rebuild(d.dictType, ReasonWriteTask, time.Since(start).Seconds())
		d.log.Debug("dictionary file written")
	case errors.Is(err, context.Canceled):
		d.log.Debug("write task superseded")
	case err != nil:
		d.fail(StageWrite, err)
	}
}

// AsyncLoadToMemory populates the writer from the source in the
// background. The snapshot is left alone.
func (d *Dictionary) AsyncLoadToMemory() {
	d.tasks.Go(func() {
		_ = d.LoadToMemory()
	})
}

// LoadToMemory populates the writer from the source. It holds the shared
// lock in read mode so siblings may map the file meanwhile.
func (d *Dictionary) LoadToMemory() error {
	unlockShared, err := d.rlockShared()
	if err != nil {
		d.fail(StageLock, err)

		return err
	}

	defer unlockShared()

	d.local.lock()
	defer d.local.unlock()

	if d.closed.Load() {
		return ErrClosed
	}

	err = d.source.LoadInto(d.writer)
	if err != nil {
		err = fmt.Errorf("loading %s into memory: %w", d.filename, err)
		d.fail(StageLoad, err)

		return err
	}

	return nil
}
