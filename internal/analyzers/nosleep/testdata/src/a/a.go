package a

import (
	"context"
	"time"
)

func poll(ctx context.Context) {
	time.Sleep(time.Second) // want "time.Sleep cannot be cancelled"

	t := time.NewTimer(time.Second)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func alias() {
	sleep := time.Sleep
	sleep(0)
}
