package logctx

import (
	"fmt"
	"io"
	"mclbus/internal/global"
	"strings"
	"time"
)

const (
	dedupWindow      time.Duration = 5 * time.Second
	dedupMinRepeats  int           = 10
	suppressCooldown time.Duration = 1 * time.Minute
)

// Tracks highly repetitive messages to keep output readable
type dedupState struct {
	lastMsg          string
	repeatCount      int
	lastSuppressTime time.Time
}

// Reports whether event repeats the previous message within the window.
// Returns a suppression notice once enough repeats have been swallowed.
func (dedup *dedupState) check(event Event, now time.Time) (skip bool, notice string) {
	if event.Message == "" || event.Message != dedup.lastMsg || now.Sub(event.Timestamp) > dedupWindow {
		dedup.lastMsg = event.Message
		dedup.repeatCount = 1
		return
	}

	skip = true
	dedup.repeatCount++
	if dedup.repeatCount >= dedupMinRepeats && now.Sub(dedup.lastSuppressTime) >= suppressCooldown {
		notice = fmt.Sprintf("[%s] [%s] [%s] Suppressed %d repeated messages: %s",
			event.Timestamp.Format(timestampLayout),
			strings.Join(event.Tags, "/"),
			global.InfoLog,
			dedup.repeatCount,
			dedup.lastMsg)
		if !strings.HasSuffix(notice, "\n") {
			notice += "\n"
		}
		dedup.lastSuppressTime = now
		dedup.repeatCount = 0
	}
	return
}

// Blocks until an event is available or Done is closed with nothing left to write
func (logger *Logger) next() (event Event, ok bool) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	for len(logger.pending) == 0 {
		select {
		case <-logger.Done:
			return
		default:
		}
		logger.cond.Wait()
	}

	event = logger.pending[0]
	logger.pending = logger.pending[1:]
	ok = true
	return
}

// Starts a go routine that writes formatted events to output.
// Exits when logger.Done is closed and the buffer is drained (call Wake after closing Done).
func StartWatcher(logger *Logger, output io.Writer) {
	logger.wg.Add(1)

	go func() {
		defer logger.wg.Done()

		var dedup dedupState
		for {
			event, ok := logger.next()
			if !ok {
				return
			}

			skip, notice := dedup.check(event, time.Now())
			if notice != "" {
				fmt.Fprint(output, notice)
			}
			if skip {
				continue
			}

			fmt.Fprint(output, event.Format())
		}
	}()
}
