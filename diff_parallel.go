package cell

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// ParallelDiff computes the same changes as Diff, comparing subtrees on
// workers goroutines. The result is ordered like Diff's.
func ParallelDiff(ctx context.Context, prev, cur *Cell, workers int64) ([]*Change, error) {
	if workers < 1 {
		return nil, xerrors.Errorf("parallel diff needs at least one worker, got %d", workers)
	}
	start := time.Now()

	out := make(chan *Change)
	differ, ctx := newDiffScheduler(ctx, workers, &task{
		prev: prev,
		cur:  cur,
	})
	differ.startScheduler(ctx)
	differ.startWorkers(ctx, out)

	var changes []*Change
	done := make(chan struct{})
	go func() {
		for change := range out {
			changes = append(changes, change)
		}
		close(done)
	}()

	err := differ.grp.Wait()
	close(out)
	<-done
	if err != nil {
		return nil, err
	}

	slices.SortFunc(changes, func(a, b *Change) int {
		return slices.Compare(a.Path, b.Path)
	})
	log.Infow("parallel diff", "duration", time.Since(start), "changes", len(changes), "workers", workers)
	return changes, nil
}

type task struct {
	prev, cur *Cell
	path      []int
}

func newDiffScheduler(ctx context.Context, numWorkers int64, rootTasks ...*task) (*diffScheduler, context.Context) {
	grp, ctx := errgroup.WithContext(ctx)
	s := &diffScheduler{
		numWorkers: numWorkers,
		stack:      rootTasks,
		in:         make(chan *task, numWorkers),
		out:        make(chan *task, numWorkers),
		grp:        grp,
	}
	s.taskWg.Add(len(rootTasks))
	return s, ctx
}

type diffScheduler struct {
	// number of worker routine to spawn
	numWorkers int64
	// buffer holds tasks until they are processed
	stack []*task
	// inbound and outbound tasks
	in, out chan *task
	// tracks number of inflight tasks
	taskWg sync.WaitGroup
	// launches workers and collects errors if any occur
	grp *errgroup.Group
}

func (s *diffScheduler) enqueueTask(task *task) {
	s.taskWg.Add(1)
	s.in <- task
}

func (s *diffScheduler) startScheduler(ctx context.Context) {
	s.grp.Go(func() error {
		defer func() {
			close(s.out)
			// Workers may have exited early when the context was canceled.
			for range s.out {
				s.taskWg.Done()
			}
			// Tasks still on the stack will never run.
			for range s.stack {
				s.taskWg.Done()
			}
			s.stack = nil
			// Workers may have enqueued additional tasks.
			for range s.in {
				s.taskWg.Done()
			}
		}()
		go func() {
			s.taskWg.Wait()
			close(s.in)
		}()
		for {
			if n := len(s.stack) - 1; n >= 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case newJob, ok := <-s.in:
					if !ok {
						return nil
					}
					s.stack = append(s.stack, newJob)
				case s.out <- s.stack[n]:
					s.stack[n] = nil
					s.stack = s.stack[:n]
				}
			} else {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case newJob, ok := <-s.in:
					if !ok {
						return nil
					}
					s.stack = append(s.stack, newJob)
				}
			}
		}
	})
}

func (s *diffScheduler) startWorkers(ctx context.Context, out chan *Change) {
	for i := int64(0); i < s.numWorkers; i++ {
		s.grp.Go(func() error {
			for task := range s.out {
				if err := s.work(ctx, task, out); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

func (s *diffScheduler) work(ctx context.Context, todo *task, results chan *Change) error {
	defer s.taskWg.Done()

	if err := ctx.Err(); err != nil {
		return err
	}
	diffCell(todo.prev, todo.cur, todo.path, func(ch *Change) {
		results <- ch
	}, func(prev, cur *Cell, path []int) {
		s.enqueueTask(&task{prev: prev, cur: cur, path: path})
	})
	return nil
}
