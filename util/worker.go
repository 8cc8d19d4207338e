package util

import (
	"sync"

	"github.com/mohitkumar/callbackurls/logger"
	"go.uber.org/zap"
)

type Job any

// Worker runs handler for every job sent to it on a single goroutine.
type Worker struct {
	name    string
	stop    chan struct{}
	wg      *sync.WaitGroup
	handler func(Job) error
	jobChan chan Job
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		for {
			select {
			case job := <-w.jobChan:
				w.handle(job)
			case <-w.stop:
				w.drain()
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker) handle(job Job) {
	if err := w.handler(job); err != nil {
		logger.Error("error in executing job in worker", zap.String("worker", w.name), zap.Error(err))
	}
}

func (w *Worker) drain() {
	for {
		select {
		case job := <-w.jobChan:
			w.handle(job)
		default:
			return
		}
	}
}

func (w *Worker) Sender() chan<- Job {
	return w.jobChan
}

// TrySend queues job without blocking. It reports false when the queue is full.
func (w *Worker) TrySend(job Job) bool {
	select {
	case w.jobChan <- job:
		return true
	default:
		logger.Warn("worker queue full, dropping job", zap.String("worker", w.name))
		return false
	}
}

// Stop handles whatever is still queued and waits for the goroutine to exit.
func (w *Worker) Stop() {
	close(w.stop)
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Job) error, capacity int) *Worker {
	return &Worker{
		jobChan: make(chan Job, capacity),
		name:    name,
		wg:      wg,
		stop:    make(chan struct{}),
		handler: handler,
	}
}
