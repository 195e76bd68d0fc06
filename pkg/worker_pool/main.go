/*
Package worker pool
Runs a fixed set of tasks on a number of workers.

Usage:

	type Task struct {
		relation string
		result   *sync.Map
	}

	func (task Task) Run(send func(string), abort func()) {
		send(fmt.Sprintf("Loading %s", task.relation))
		views, err := load(task.relation)
		if err != nil {
			abort()
			return
		}
		task.result.Store(task.relation, views)
		send(fmt.Sprintf("Loaded %s", task.relation))
	}

	func main() {
		pool := worker_pool.New(4, len(relations))
		for _, relation := range relations {
			pool.Add(Task{relation, &result})
		}
		pool.Start()
		<-pool.Wait()
		if pool.IsAborted() {
			fmt.Println("Something went wrong")
		}
	}

Calling 'abort' stops the workers from picking up new tasks, tasks already in
progress run to completion.

Messages passed to 'send' are discarded unless the pool was created with
WithProgress, in which case each task owns a line of the output that every
'send' replaces (using [uilive](https://github.com/gosuri/uilive)).
*/
package worker_pool

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gosuri/uilive"
)

type Task interface {
	Run(send func(string), abort func())
}

type taskContainer_t struct {
	i    int
	task Task
}

type message_t struct {
	i    int
	body string
}

type Pool struct {
	numWorkers     int
	taskChannel    chan taskContainer_t
	innerWaitGroup sync.WaitGroup
	outerWaitGroup sync.WaitGroup
	counter        int
	messages       []string
	messageChannel chan message_t
	out            io.Writer
	writer         *uilive.Writer
	aborted        atomic.Bool
}

func New(numWorkers, numTasks int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	var pool Pool
	pool.numWorkers = numWorkers
	pool.taskChannel = make(chan taskContainer_t, numTasks)
	pool.messages = make([]string, numTasks)
	pool.messageChannel = make(chan message_t)
	return &pool
}

// WithProgress renders the tasks' messages live on out
func (pool *Pool) WithProgress(out io.Writer) *Pool {
	pool.out = out
	return pool
}

// Add must be called before Start, at most numTasks times
func (pool *Pool) Add(task Task) {
	pool.innerWaitGroup.Add(1)
	pool.taskChannel <- taskContainer_t{pool.counter, task}
	pool.counter += 1
}

func (pool *Pool) Start() {
	close(pool.taskChannel)
	if pool.out != nil {
		pool.writer = uilive.New()
		pool.writer.Out = pool.out
		pool.writer.Start()
	}
	pool.outerWaitGroup.Add(1)

	for i := 0; i < pool.numWorkers; i++ {
		go func() {
			for taskContainer := range pool.taskChannel {
				if !pool.aborted.Load() {
					i := taskContainer.i
					send := func(body string) {
						pool.messageChannel <- message_t{i, body}
					}
					taskContainer.task.Run(send, pool.abort)
				}
				pool.innerWaitGroup.Done()
			}
		}()
	}

	waitChannel := make(chan struct{})
	go func() {
		pool.innerWaitGroup.Wait()
		waitChannel <- struct{}{}
	}()

	go func() {
		exitfor := false
		for !exitfor {
			select {
			case msg := <-pool.messageChannel:
				pool.messages[msg.i] = msg.body
				if pool.writer == nil {
					continue
				}
				var tmpMessages []string
				for _, line := range pool.messages {
					if len(line) > 0 {
						tmpMessages = append(tmpMessages, line)
					}
				}
				fmt.Fprintln(pool.writer, strings.Join(tmpMessages, "\n"))
				pool.writer.Flush()
			case <-waitChannel:
				exitfor = true
				if pool.writer != nil {
					pool.writer.Stop()
				}
				pool.outerWaitGroup.Done()
			}
		}
	}()
}

func (pool *Pool) abort() {
	pool.aborted.Store(true)
}

// IsAborted reports whether any task called 'abort'
func (pool *Pool) IsAborted() bool {
	return pool.aborted.Load()
}

// Messages returns the last message each task sent, in the order the tasks
// were added. Only meaningful after Wait.
func (pool *Pool) Messages() []string {
	return append([]string(nil), pool.messages...)
}

func (pool *Pool) Wait() <-chan struct{} {
	waitChannel := make(chan struct{})
	go func() {
		pool.outerWaitGroup.Wait()
		close(waitChannel)
	}()
	return waitChannel
}
