package usecase

import (
	"fmt"
	"sync"
	"time"
)

const finalizingMessage = "Finalizing analysis..."

func countdownMessage(subject string, remaining int) string {
	return fmt.Sprintf("Analyzing %s... (≈ %ds remaining)", subject, remaining)
}

// startCountdown publishes a decreasing time estimate every interval until
// stop is called or the estimate runs out. No message is published after
// stop returns.
func startCountdown(subject string, estimateSeconds int, interval time.Duration, publish func(string)) (stop func()) {
	if estimateSeconds <= 0 {
		publish(finalizingMessage)
		return func() {}
	}
	publish(countdownMessage(subject, estimateSeconds))

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		remaining := estimateSeconds
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				remaining--
				if remaining <= 0 {
					publish(finalizingMessage)
					return
				}
				publish(countdownMessage(subject, remaining))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}
