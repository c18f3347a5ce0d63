package handler

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zeromicro/go-zero/core/threading"
)

const shardBuffer = 64

// Dispatcher fans updates out to a fixed set of workers. Updates of the same
// chat always land on the same worker, so they are handled in arrival order.
type Dispatcher struct {
	shards []chan tgbotapi.Update
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(shards int, handle func(tgbotapi.Update)) *Dispatcher {
	if shards <= 0 {
		shards = 1
	}
	d := &Dispatcher{shards: make([]chan tgbotapi.Update, shards)}
	for i := range d.shards {
		ch := make(chan tgbotapi.Update, shardBuffer)
		d.shards[i] = ch
		d.wg.Add(1)
		threading.GoSafe(func() {
			defer d.wg.Done()
			for update := range ch {
				u := update
				threading.RunSafe(func() {
					handle(u)
				})
			}
		})
	}
	return d
}

// Dispatch queues update on its chat's worker. It blocks while that worker's
// queue is full.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) {
	d.shards[d.shardOf(chatOf(update))] <- update
}

// Stop drains queued updates and waits for the workers to exit. Dispatch
// must not be called after Stop.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		for _, ch := range d.shards {
			close(ch)
		}
	})
	d.wg.Wait()
}

func (d *Dispatcher) shardOf(chatID int64) int {
	return int(uint64(chatID) % uint64(len(d.shards)))
}

func chatOf(update tgbotapi.Update) int64 {
	if chat := update.FromChat(); chat != nil {
		return chat.ID
	}
	return 0
}
