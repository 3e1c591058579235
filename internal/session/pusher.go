package session

import (
	"context"
	"log"
	"time"

	"github.com/hostpulse/server/internal/task"
	"github.com/hostpulse/server/internal/telemetry"
)

// pusher sends the latest snapshot, one message per metric family, on the
// session's current cadence.
type pusher struct {
	id    string
	store *telemetry.Store
	send  func([]byte) bool
	task  *task.Periodic
}

func newPusher(id string, store *telemetry.Store, interval time.Duration, send func([]byte) bool) *pusher {
	p := &pusher{id: id, store: store, send: send}
	p.task = task.New("push "+id, interval, p.push, task.Immediate())
	return p
}

func (p *pusher) push(ctx context.Context) {
	snap := p.store.Snapshot()
	for _, fv := range snap.Families() {
		if ctx.Err() != nil {
			return
		}
		data, err := encode(WSMessage{Type: MessageType(fv.Family), Data: fv.Value})
		if err != nil {
			log.Printf("session %s: encoding %s: %v", p.id, fv.Family, err)
			continue
		}
		if !p.send(data) {
			return
		}
	}
}

// retime replaces the running loop with a single loop at interval. The old
// loop has fully exited before the new one starts.
func (p *pusher) retime(ctx context.Context, interval time.Duration) error {
	return p.task.Restart(ctx, interval)
}
