package worker

import (
	"time"

	"github.com/zephyrus-green/ferrycast/internal/dispatcher"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// RegisterHandlers registers the sensor command handlers with the dispatcher.
// Both are synchronous: pushing onto the bounded queue never blocks, and
// running inline keeps the volume queue in arrival order.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(core.CommandVolumeUp, m.volumeHandler(core.VolumeUp), dispatcher.Logged())
	d.Register(core.CommandVolumeDown, m.volumeHandler(core.VolumeDown), dispatcher.Logged())
}

func (m *Manager) volumeHandler(delta int) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		at := e.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		intent := core.VolumeIntent{Delta: delta, Time: at}

		m.deps.Queues.PushVolume(intent)

		if m.hasBackend() {
			if err := m.backend.RecordVolume(&intent); err != nil {
				m.deps.Logger.Error("Failed to record volume intent", "direction", intent.Direction(), "error", err)
			}
		}
		return intent, nil
	}
}
