package mailmux

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
)

// A Postmaster multiplexes reader and writer work for many mailboxes across
// a bounded pool of goroutines. At most one reader and one writer may be
// active on a given mailbox at a time; concurrent signals for the same
// mailbox coalesce into a single pending wakeup instead of queueing
// duplicate work.
type Postmaster struct {
	cfg     Config
	metrics *postmasterMetrics

	ctx    context.Context
	cancel context.CancelFunc
	tasks  *taskgroup.Group

	readReady  chan *Mailbox
	writeReady chan *Mailbox

	ongoingMu    sync.Mutex
	ongoingRead  map[*Mailbox]struct{}
	ongoingWrite map[*Mailbox]struct{}

	readWorkers  int32
	writeWorkers int32
	idleMu       sync.Mutex
	readIdle     time.Duration
	readBusy     time.Duration
	writeIdle    time.Duration
	writeBusy    time.Duration

	poolMu sync.Mutex // guards growth of readWorkers/writeWorkers
}

// NewPostmaster constructs a Postmaster and starts its initial worker pools.
// Call Stop to shut it down.
func NewPostmaster(cfg Config) *Postmaster {
	ctx, cancel := context.WithCancel(context.Background())
	pm := &Postmaster{
		cfg:          cfg,
		metrics:      newPostmasterMetrics(),
		ctx:          ctx,
		cancel:       cancel,
		tasks:        taskgroup.New(nil),
		readReady:    make(chan *Mailbox, cfg.MaxConnections),
		writeReady:   make(chan *Mailbox, cfg.MaxConnections),
		ongoingRead:  make(map[*Mailbox]struct{}),
		ongoingWrite: make(map[*Mailbox]struct{}),
	}

	initial := cfg.MaxReadWriteWorkers/4 + 1
	if initial > cfg.MaxReadWriteWorkers {
		initial = cfg.MaxReadWriteWorkers
	}
	for i := 0; i < initial; i++ {
		pm.spawnReader()
		pm.spawnWriter()
	}
	if cfg.SupervisorEnabled {
		pm.tasks.Go(pm.superviseLoop)
	}
	return pm
}

// Stop cancels every worker and blocks until they have exited.
func (pm *Postmaster) Stop() {
	pm.cancel()
	pm.tasks.Wait()
}

// signalRead marks mb as having read work pending. If a reader is already
// scheduled or running for mb, the signal coalesces into a no-op; the
// running (or about-to-run) pass will observe the new bytes when it drains
// inboxBytes.
func (pm *Postmaster) signalRead(mb *Mailbox) {
	pm.ongoingMu.Lock()
	if _, busy := pm.ongoingRead[mb]; busy {
		pm.ongoingMu.Unlock()
		return
	}
	pm.ongoingRead[mb] = struct{}{}
	pm.ongoingMu.Unlock()
	pm.readReady <- mb
}

// signalWrite is the write-side counterpart of signalRead.
func (pm *Postmaster) signalWrite(mb *Mailbox) {
	pm.ongoingMu.Lock()
	if _, busy := pm.ongoingWrite[mb]; busy {
		pm.ongoingMu.Unlock()
		return
	}
	pm.ongoingWrite[mb] = struct{}{}
	pm.ongoingMu.Unlock()
	pm.writeReady <- mb
}

// releaseRead clears mb's single-flight read marker and, if bytes arrived
// while the pass was running, immediately resignals so no wakeup is lost.
func (pm *Postmaster) releaseRead(mb *Mailbox) {
	pm.ongoingMu.Lock()
	delete(pm.ongoingRead, mb)
	pm.ongoingMu.Unlock()
	if mb.HasPendingInboxBytes() {
		pm.signalRead(mb)
	}
}

// releaseWrite is the write-side counterpart of releaseRead.
func (pm *Postmaster) releaseWrite(mb *Mailbox) {
	pm.ongoingMu.Lock()
	delete(pm.ongoingWrite, mb)
	pm.ongoingMu.Unlock()
	if mb.HasPendingOutbox() {
		pm.signalWrite(mb)
	}
}

func (pm *Postmaster) spawnReader() {
	pm.metrics.readWorkers.Add(1)
	pm.tasks.Go(func() error {
		defer pm.metrics.readWorkers.Add(-1)
		return pm.readerLoop()
	})
}

func (pm *Postmaster) spawnWriter() {
	pm.metrics.writeWorkers.Add(1)
	pm.tasks.Go(func() error {
		defer pm.metrics.writeWorkers.Add(-1)
		return pm.writerLoop()
	})
}

func (pm *Postmaster) readerLoop() error {
	timer := time.NewTimer(60 * time.Second)
	defer timer.Stop()
	for {
		start := time.Now()
		select {
		case <-pm.ctx.Done():
			return nil
		case mb, ok := <-pm.readReady:
			pm.recordIdle(&pm.readIdle, time.Since(start))
			if !ok {
				return nil
			}
			workStart := time.Now()
			if err := mb.ProcessInbox(); err != nil {
				pm.metrics.protocolErrors.Add(1)
				if mb.sess != nil {
					mb.sess.closeWithReason(CloseProtocolError, err)
				}
			}
			pm.releaseRead(mb)
			pm.recordBusy(&pm.readBusy, time.Since(workStart))
			resetTimer(timer, 60*time.Second)
		case <-timer.C:
			resetTimer(timer, 60*time.Second)
		}
	}
}

func (pm *Postmaster) writerLoop() error {
	timer := time.NewTimer(60 * time.Second)
	defer timer.Stop()
	for {
		start := time.Now()
		select {
		case <-pm.ctx.Done():
			return nil
		case mb, ok := <-pm.writeReady:
			pm.recordIdle(&pm.writeIdle, time.Since(start))
			if !ok {
				return nil
			}
			workStart := time.Now()
			if mb.sess != nil {
				if err := mb.ProcessOutbox(mb.sess.transmit); err != nil {
					mb.sess.closeWithReason(CloseSocketError, err)
				}
			}
			pm.releaseWrite(mb)
			pm.recordBusy(&pm.writeBusy, time.Since(workStart))
			resetTimer(timer, 60*time.Second)
		case <-timer.C:
			resetTimer(timer, 60*time.Second)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (pm *Postmaster) recordIdle(acc *time.Duration, d time.Duration) {
	pm.idleMu.Lock()
	*acc += d
	pm.idleMu.Unlock()
}

func (pm *Postmaster) recordBusy(acc *time.Duration, d time.Duration) {
	pm.idleMu.Lock()
	*acc += d
	pm.idleMu.Unlock()
}

// superviseLoop periodically compares each pool's accumulated idle time
// against its budget for the sample window and grows a pool that is
// spending most of its time doing work rather than waiting, up to
// cfg.MaxReadWriteWorkers.
func (pm *Postmaster) superviseLoop() error {
	ticker := time.NewTicker(pm.cfg.SupervisorSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-pm.ctx.Done():
			return nil
		case <-ticker.C:
			pm.considerGrowth()
		}
	}
}

func (pm *Postmaster) considerGrowth() {
	pm.idleMu.Lock()
	readIdle, readBusy := pm.readIdle, pm.readBusy
	writeIdle, writeBusy := pm.writeIdle, pm.writeBusy
	pm.readIdle, pm.readBusy = 0, 0
	pm.writeIdle, pm.writeBusy = 0, 0
	pm.idleMu.Unlock()

	pm.poolMu.Lock()
	defer pm.poolMu.Unlock()

	readers, writers := pm.metrics.readWorkers.Value(), pm.metrics.writeWorkers.Value()
	readIdle /= time.Duration(max(readers, 1)) // average per reader worker
	writeIdle /= time.Duration(max(writers, 1))
	if underIdleBudget(readIdle, readBusy, pm.cfg.SupervisorIdleThreshold) &&
		int(readers) < pm.cfg.MaxReadWriteWorkers {
		pm.spawnReader()
	}
	if underIdleBudget(writeIdle, writeBusy, pm.cfg.SupervisorIdleThreshold) &&
		int(writers) < pm.cfg.MaxReadWriteWorkers {
		pm.spawnWriter()
	}
}

// underIdleBudget reports whether idle, the average per-worker idle time
// observed in the sample window, is below threshold. A pool with no busy
// time this window is left alone: there is nothing to scale for.
func underIdleBudget(idle, busy, threshold time.Duration) bool {
	if busy == 0 {
		return false
	}
	return idle < threshold
}
