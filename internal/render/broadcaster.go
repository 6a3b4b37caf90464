package render

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/geom"
	"github.com/twinsim/twinsim/internal/sim"
)

const (
	writeWait       = 10 * time.Second
	maxControlBytes = 4096
	viewerQueue     = 64
	controlQueue    = 64
)

//go:embed viewer.html
var viewerPage []byte

// Control is a viewer request to change a module's ready switch.
type Control struct {
	Module string
	Ready  bool
}

type sceneMessage struct {
	Type  string `json:"type"`
	Tick  uint64 `json:"tick"`
	Items []Item `json:"items"`
}

type opsMessage struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	Ops  []Op   `json:"ops"`
}

type controlMessage struct {
	Type   string `json:"type"`
	Module string `json:"module"`
	Value  bool   `json:"value"`
}

// Broadcaster is a renderer that streams draw calls to browser viewers
// over websockets. Renderer calls come from the tick goroutine and are
// batched until Flush; a viewer that connects first receives the whole
// scene. Ops are idempotent against the scene, so a batch overlapping the
// initial scene is harmless.
type Broadcaster struct {
	rec      *Recorder
	upgrader websocket.Upgrader

	mu       sync.Mutex
	viewers  map[*viewer]struct{}
	tick     uint64
	controls chan Control

	log *zap.Logger
}

var _ sim.Renderer = (*Broadcaster)(nil)

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() {
		close(v.done)
		v.conn.Close()
	})
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		rec: NewRecorder(true),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		viewers:  make(map[*viewer]struct{}),
		controls: make(chan Control, controlQueue),
		log:      log,
	}
}

func (b *Broadcaster) Create(s sim.Shape) sim.Handle       { return b.rec.Create(s) }
func (b *Broadcaster) Move(h sim.Handle, pos geom.Vector)  { b.rec.Move(h, pos) }
func (b *Broadcaster) SetColor(h sim.Handle, color string) { b.rec.SetColor(h, color) }
func (b *Broadcaster) Raise(h sim.Handle)                  { b.rec.Raise(h) }
func (b *Broadcaster) Lower(h sim.Handle)                  { b.rec.Lower(h) }
func (b *Broadcaster) Delete(h sim.Handle)                 { b.rec.Delete(h) }

// Scene returns the shapes currently drawn.
func (b *Broadcaster) Scene() []Item { return b.rec.Scene() }

// Flush sends the calls made since the last flush to every viewer and
// returns how many were sent. A viewer whose queue is full is dropped.
func (b *Broadcaster) Flush(tick uint64) int {
	ops := b.rec.TakeOps()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tick = tick
	if len(ops) == 0 || len(b.viewers) == 0 {
		return len(ops)
	}
	data, err := json.Marshal(opsMessage{Type: "ops", Tick: tick, Ops: ops})
	if err != nil {
		b.log.Error("marshal render ops", zap.Error(err))
		return 0
	}
	for v := range b.viewers {
		select {
		case v.send <- data:
		default:
			b.log.Warn("viewer too slow, dropping", zap.String("remote", v.conn.RemoteAddr().String()))
			delete(b.viewers, v)
			v.close()
		}
	}
	return len(ops)
}

// Drain hands every pending viewer control to fn. Call it from the tick
// goroutine.
func (b *Broadcaster) Drain(fn func(Control)) {
	for {
		select {
		case c := <-b.controls:
			fn(c)
		default:
			return
		}
	}
}

// Viewers returns the number of connected viewers.
func (b *Broadcaster) Viewers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}

// Handler serves the viewer page at / and the stream at /ws.
func (b *Broadcaster) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(viewerPage)
	})
	mux.HandleFunc("/ws", b.ServeWS)
	return mux
}

// ServeWS upgrades a viewer connection, sends the scene and reads control
// messages until the viewer goes away.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("viewer upgrade failed", zap.Error(err))
		return
	}
	v := &viewer{conn: conn, send: make(chan []byte, viewerQueue), done: make(chan struct{})}

	b.mu.Lock()
	data, err := json.Marshal(sceneMessage{Type: "scene", Tick: b.tick, Items: b.rec.Scene()})
	if err != nil {
		b.mu.Unlock()
		b.log.Error("marshal scene", zap.Error(err))
		conn.Close()
		return
	}
	v.send <- data
	b.viewers[v] = struct{}{}
	b.mu.Unlock()

	log := b.log.With(zap.String("remote", conn.RemoteAddr().String()))
	log.Info("viewer connected")
	go b.writeLoop(v)
	b.readLoop(v, log)

	b.mu.Lock()
	delete(b.viewers, v)
	b.mu.Unlock()
	v.close()
	log.Info("viewer disconnected")
}

func (b *Broadcaster) readLoop(v *viewer, log *zap.Logger) {
	v.conn.SetReadLimit(maxControlBytes)
	for {
		_, payload, err := v.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Debug("discarding malformed viewer message", zap.Error(err))
			continue
		}
		if msg.Type != "ready" || msg.Module == "" {
			log.Debug("discarding unknown viewer message", zap.String("type", msg.Type))
			continue
		}
		select {
		case b.controls <- Control{Module: msg.Module, Ready: msg.Value}:
		default:
			log.Warn("control queue full, dropping viewer request", zap.String("module", msg.Module))
		}
	}
}

func (b *Broadcaster) writeLoop(v *viewer) {
	defer v.close()
	for {
		select {
		case data := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-v.done:
			return
		}
	}
}

// ListenAndServe serves Handler on addr until ctx is done.
func (b *Broadcaster) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: b.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		b.Close()
	}()
	b.log.Info("viewer listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects every viewer.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for v := range b.viewers {
		v.close()
		delete(b.viewers, v)
	}
}
