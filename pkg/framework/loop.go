package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop runs controllers at a fixed interval. Producers on other
// goroutines hand values to the loop through lock-protected
// latest-value slots; controllers consume them during iterations,
// so only the loop goroutine ever touches the controlled hardware.
type Loop struct {
	Interval time.Duration

	stages  [StageCount][]Controller
	runners []Runnable

	slots    map[string]interface{}
	lock     sync.Mutex
	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// DefaultInterval is the loop interval when unspecified.
const DefaultInterval = 10 * time.Millisecond

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a stage.
func (l *Loop) AddController(stage int, ctls ...Controller) *Loop {
	l.stages[stage] = append(l.stages[stage], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementations.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Post implements LoopControl.
func (l *Loop) Post(slot string, value interface{}) {
	l.lock.Lock()
	if l.slots == nil {
		l.slots = make(map[string]interface{})
	}
	l.slots[slot] = value
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}

	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.runIteration(ctx)
		case <-l.wakeUpCh:
			l.runIteration(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail() {
	if err := l.Run(context.Background()); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

func (l *Loop) runIteration(ctx context.Context) {
	iter := &loopIteration{loop: l, ctx: ctx, time: time.Now()}
	for stage := 0; stage < StageCount; stage++ {
		for _, ctl := range l.stages[stage] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("controller error: %v", err)
			}
		}
	}
}

type loopIteration struct {
	loop *Loop
	ctx  context.Context
	time time.Time
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }

func (t *loopIteration) Take(slot string) (interface{}, bool) {
	t.loop.lock.Lock()
	defer t.loop.lock.Unlock()
	value, ok := t.loop.slots[slot]
	if ok {
		delete(t.loop.slots, slot)
	}
	return value, ok
}

func (t *loopIteration) Peek(slot string) (interface{}, bool) {
	t.loop.lock.Lock()
	defer t.loop.lock.Unlock()
	value, ok := t.loop.slots[slot]
	return value, ok
}

func (t *loopIteration) Post(slot string, value interface{}) {
	t.loop.Post(slot, value)
}

func (t *loopIteration) TriggerNext() {
	t.loop.TriggerNext()
}
