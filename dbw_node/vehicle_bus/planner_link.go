package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	loop "dbw-bridge/dbw_node/control_loop"
	"dbw-bridge/utils"
)

// Planner message types.
const (
	MsgFinalWaypoints  = "final_waypoints"
	MsgCurrentPose     = "current_pose"
	MsgTwistCmd        = "twist_cmd"
	MsgCurrentVelocity = "current_velocity"
	MsgDBWEnabled      = "dbw_enabled"
)

// Waypoint is one planner waypoint. Velocity is planner metadata and is not
// used by the bridge.
type Waypoint struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Velocity *float64 `json:"velocity,omitempty"`
}

// PlannerMessage is the envelope for every message on the planner link.
type PlannerMessage struct {
	Type      string     `json:"type"`
	Waypoints []Waypoint `json:"waypoints,omitempty"`
	X         *float64   `json:"x,omitempty"`
	Y         *float64   `json:"y,omitempty"`
	Linear    *float64   `json:"linear,omitempty"`
	Angular   *float64   `json:"angular,omitempty"`
	Velocity  *float64   `json:"velocity,omitempty"`
	Enabled   *bool      `json:"enabled,omitempty"`
}

type plannerReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// PlannerLink accepts planner and localization updates over a websocket
// at /planner.
type PlannerLink struct {
	addr string
	sink InputSink
	log  *utils.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewPlannerLink(addr string, sink InputSink, log *utils.Logger) *PlannerLink {
	return &PlannerLink{
		addr:    addr,
		sink:    sink,
		log:     log,
		clients: map[*websocket.Conn]struct{}{},
	}
}

func (p *PlannerLink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/planner", p.handleWS)
	return mux
}

// Run serves until ctx ends, then closes the listener and every open
// connection.
func (p *PlannerLink) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("planner link listen %s: %w", p.addr, err)
	}
	return p.Serve(ctx, ln)
}

func (p *PlannerLink) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: p.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	p.log.Info("Planner link listening on %s", ln.Addr())

	select {
	case <-ctx.Done():
		_ = srv.Close()
		p.closeClients()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		p.closeClients()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (p *PlannerLink) closeClients() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.clients {
		_ = c.Close()
	}
	clear(p.clients)
}

func (p *PlannerLink) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn("Planner upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	p.mu.Lock()
	p.clients[conn] = struct{}{}
	p.mu.Unlock()
	p.log.Info("Planner connected from %s", r.RemoteAddr)

	defer func() {
		p.mu.Lock()
		delete(p.clients, conn)
		p.mu.Unlock()
		_ = conn.Close()
		p.log.Info("Planner %s disconnected", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg PlannerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, err)
			p.reply(conn, "", err)
			continue
		}
		if err := p.Apply(msg); err != nil {
			p.reply(conn, msg.Type, err)
		}
	}
}

func (p *PlannerLink) reply(conn *websocket.Conn, typ string, err error) {
	p.log.Warn("Planner message %q rejected: %v", typ, err)
	_ = conn.WriteJSON(plannerReply{Type: "error", Error: err.Error()})
}

func finite(vs ...*float64) bool {
	for _, v := range vs {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return false
		}
	}
	return true
}

// Apply writes one planner message into the sink. Non-finite numbers reject
// the whole message.
func (p *PlannerLink) Apply(msg PlannerMessage) error {
	if !finite(msg.X, msg.Y, msg.Linear, msg.Angular, msg.Velocity) {
		return fmt.Errorf("%w: %s carries a non-finite value", ErrMalformed, msg.Type)
	}
	for i := range msg.Waypoints {
		if !finite(&msg.Waypoints[i].X, &msg.Waypoints[i].Y) {
			return fmt.Errorf("%w: waypoint %d is not finite", ErrMalformed, i)
		}
	}

	switch msg.Type {
	case MsgFinalWaypoints:
		if len(msg.Waypoints) == 0 {
			return fmt.Errorf("%w: %s without waypoints", ErrMalformed, msg.Type)
		}
		path := make(loop.Path, len(msg.Waypoints))
		for i, wp := range msg.Waypoints {
			path[i] = loop.Pose{X: wp.X, Y: wp.Y}
		}
		p.sink.SetPath(path)
	case MsgCurrentPose:
		if msg.X == nil || msg.Y == nil {
			return fmt.Errorf("%w: %s needs x and y", ErrMalformed, msg.Type)
		}
		p.sink.SetPose(loop.Pose{X: *msg.X, Y: *msg.Y})
	case MsgTwistCmd:
		if msg.Linear == nil || msg.Angular == nil {
			return fmt.Errorf("%w: %s needs linear and angular", ErrMalformed, msg.Type)
		}
		p.sink.SetMotionRequest(loop.MotionRequest{LinearVelocity: *msg.Linear, AngularVelocity: *msg.Angular})
	case MsgCurrentVelocity:
		if msg.Velocity == nil {
			return fmt.Errorf("%w: %s needs velocity", ErrMalformed, msg.Type)
		}
		p.sink.SetVelocity(*msg.Velocity)
	case MsgDBWEnabled:
		if msg.Enabled == nil {
			return fmt.Errorf("%w: %s needs enabled", ErrMalformed, msg.Type)
		}
		p.sink.SetEnabled(*msg.Enabled)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}
