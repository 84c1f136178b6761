package bridge

import (
	"context"
	"time"

	"ucibridge/application"
)

// runHeartbeat prods the engine with isready on a fixed interval so quiet
// engines are detected dead promptly. Write failures end the task; the
// engine's readyok reply travels the normal output path, never the client
// socket directly.
func runHeartbeat(ctx context.Context, process application.EngineProcess, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !process.Alive() {
				return
			}
			if writeErr := process.WriteLine("isready"); writeErr != nil {
				return
			}
		}
	}
}
