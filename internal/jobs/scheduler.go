package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a recurring maintenance task. GetNextRunTime decides when the next
// run happens; the runner sleeps until then, runs, and asks again.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// Runner drives registered maintenance jobs. Each job gets its own goroutine
// that alternates between sleeping until the job's next run time and running
// it, so one slow job never delays another.
type Runner struct {
	mu      sync.Mutex
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewRunner creates an empty job runner.
func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job under a unique name. Must be called before Start.
func (r *Runner) Register(name string, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[name] = job
	log.Printf("✅ [JOBS] Registered job: %s", name)
}

// Start launches one loop per registered job.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true

	log.Printf("🚀 [JOBS] Starting %d maintenance jobs", len(r.jobs))
	for name, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(name, job)
	}
}

func (r *Runner) loop(name string, job Job) {
	defer r.wg.Done()

	for {
		next := job.GetNextRunTime()
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		log.Printf("⏰ [JOBS] Job '%s' next run at %s (in %v)", name, next.Format(time.RFC3339), wait)

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(wait):
		}

		start := time.Now()
		if err := job.Run(r.ctx); err != nil {
			log.Printf("❌ [JOBS] Job '%s' failed: %v", name, err)
		} else {
			log.Printf("✅ [JOBS] Job '%s' completed in %v", name, time.Since(start))
		}
	}
}

// RunNow runs a job once, outside its schedule (useful for testing).
func (r *Runner) RunNow(name string) error {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()

	if !ok {
		log.Printf("⚠️  [JOBS] Job '%s' not found", name)
		return nil
	}
	return job.Run(r.ctx)
}

// Stop cancels all job loops and waits for an in-flight run to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	log.Println("✅ [JOBS] Maintenance jobs stopped")
}
