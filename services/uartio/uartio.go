// Package uartio bridges a board's UART channel onto the bus: what the
// sketch transmits is published as events, and payloads published to the
// channel's rx topic are fed to the sketch.
package uartio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"libsmce-go/board"
	"libsmce-go/bus"
	"libsmce-go/x/mathx"
	"libsmce-go/x/timex"
)

type Mode string

const (
	ModeBytes Mode = "bytes" // binary-safe chunks of at most MaxFrame
	ModeLines Mode = "lines" // LF-terminated lines, CR dropped
)

// Direction as seen from the sketch.
const (
	DirTX = "tx"
	DirRX = "rx"
)

// Event is the payload published for every chunk or line.
type Event struct {
	Board   string `json:"board"`
	Channel int    `json:"channel"`
	Dir     string `json:"dir"`
	Data    []byte `json:"data"`
	TS      int64  `json:"ts_ms"`
}

func TxTopic(boardName string, ch int) bus.Topic {
	return bus.T(board.TokBoard, boardName, "uart", ch, DirTX)
}

// RxTopic accepts []byte or string payloads destined for the sketch.
func RxTopic(boardName string, ch int) bus.Topic {
	return bus.T(board.TokBoard, boardName, "uart", ch, DirRX)
}

type Config struct {
	Board     string
	Channel   int
	Mode      Mode
	MaxFrame  int           // clamp 16..256
	IdleFlush time.Duration // clamp 0..2s; lines mode only
	EchoRX    bool          // also publish accepted rx bytes on the tx topic
	Logger    *zap.Logger
}

const retryInterval = 5 * time.Millisecond

// Bridge is a running attachment of one UART channel.
type Bridge struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop detaches the bridge and waits for it to finish.
func (b *Bridge) Stop() {
	b.cancel()
	<-b.done
}

// Done is closed once the bridge has detached.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Attach starts the bridge for u. It runs until ctx is done, Stop is
// called or the view is invalidated by a board reset.
func Attach(ctx context.Context, conn *bus.Connection, u board.VirtualUart, cfg Config) *Bridge {
	max := mathx.Clamp(cfg.MaxFrame, 16, 256)
	idle := mathx.Clamp(cfg.IdleFlush, 0, 2*time.Second)
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("board", cfg.Board), zap.Int("uart", cfg.Channel))

	cctx, cancel := context.WithCancel(ctx)
	br := &Bridge{cancel: cancel, done: make(chan struct{})}
	rxSub := conn.Subscribe(RxTopic(cfg.Board, cfg.Channel))
	port := u.Port()
	txTopic := TxTopic(cfg.Board, cfg.Channel)

	publish := func(dir string, data []byte) {
		conn.Publish(conn.NewMessage(txTopic, Event{
			Board: cfg.Board, Channel: cfg.Channel, Dir: dir,
			Data: append([]byte(nil), data...), TS: timex.NowMs(),
		}, false))
	}

	go func() {
		defer close(br.done)
		defer rxSub.Unsubscribe()
		buf := make([]byte, max)
		var line, pending []byte

		idleTimer := time.NewTimer(time.Hour)
		idleTimer.Stop()
		retry := time.NewTicker(retryInterval)
		defer retry.Stop()

		flushLine := func() {
			if len(line) > 0 {
				publish(DirTX, line)
				line = line[:0]
			}
		}

		// drain empties tx so the next flush raises the readable edge again.
		drain := func() bool {
			for {
				n, err := port.Read(buf)
				if err != nil {
					return false
				}
				if n == 0 {
					return true
				}
				if cfg.Mode != ModeLines {
					publish(DirTX, buf[:n])
					continue
				}
				for _, b := range buf[:n] {
					switch b {
					case '\n':
						flushLine()
					case '\r':
					default:
						line = append(line, b)
						if len(line) >= max {
							flushLine()
						}
					}
				}
				if len(line) > 0 && idle > 0 {
					idleTimer.Reset(idle)
				}
			}
		}

		for {
			select {
			case <-cctx.Done():
				flushLine()
				return
			case <-u.ReadableC():
				if !drain() {
					log.Debug("uart bridge detached: view invalidated")
					return
				}
			case <-idleTimer.C:
				flushLine()
			case msg, ok := <-rxSub.Channel():
				if !ok {
					return
				}
				switch p := msg.Payload.(type) {
				case []byte:
					pending = append(pending, p...)
				case string:
					pending = append(pending, p...)
				default:
					log.Warn("uart bridge: unsupported rx payload")
				}
			case <-retry.C:
				if !u.Exists() {
					log.Debug("uart bridge detached: view invalidated")
					return
				}
				// The readable edge only fires on empty to non-empty.
				if u.Readable() > 0 && !drain() {
					return
				}
			}
			if len(pending) > 0 {
				n, _ := port.Write(pending)
				if cfg.EchoRX && n > 0 {
					publish(DirRX, pending[:n])
				}
				pending = pending[n:]
			}
		}
	}()
	return br
}
