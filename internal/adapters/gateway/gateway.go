// Package gateway is the vehicle transport adapter. Vehicles hold one
// WebSocket session each; the logical channels of the vehicle protocol
// (vehicle.info.<id>, vehicle.events, lifter.events inbound,
// vehicle.mission.<id>, vehicle.command.<id>, vehicle.run.<id>
// outbound) ride that session as framed JSON messages. Inbound frames
// become typed bus events; the application layer never touches the
// socket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/domain/mission"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

const (
	channelEvents     = "vehicle.events"
	channelLifterEvts = "lifter.events"
	channelInfoPrefix = "vehicle.info."
	channelMission    = "vehicle.mission."
	channelCommand    = "vehicle.command."
	channelRun        = "vehicle.run."
)

// frame is the envelope every message on the socket travels in. Channel
// selects the logical channel, Payload is that channel's message body.
type frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// vehicleEvent is the body of a vehicle.events frame. Wire field names
// follow the onboard controller's protocol.
type vehicleEvent struct {
	Event     string                 `json:"event"`
	VehicleID string                 `json:"vehicleId"`
	TaskID    string                 `json:"taskId"`
	FloorID   int                    `json:"floorId"`
	NodeQR    string                 `json:"currentNode"`
	Payload   map[string]interface{} `json:"payload"`
}

// lifterEvent is the body of a lifter.events frame
type lifterEvent struct {
	Event   string `json:"event"`
	Floor   int    `json:"floor"`
	Vehicle string `json:"vehicle"`
}

// infoSnapshot is the body of a vehicle.info.<id> frame
type infoSnapshot struct {
	FloorID  int     `json:"floorId"`
	NodeQR   string  `json:"nodeQr"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Status   string  `json:"status"`
	Carrying bool    `json:"carrying"`
	Battery  float64 `json:"battery"`
}

// Gateway owns the vehicle sessions and implements the mission
// publisher port on top of them.
type Gateway struct {
	bus      *events.Bus
	clock    shared.Clock
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
}

var _ common.MissionPublisher = (*Gateway)(nil)

// NewGateway creates the gateway. The bus receives every inbound frame
// as a typed event.
func NewGateway(bus *events.Bus, clock shared.Clock) *Gateway {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Gateway{
		bus:   bus,
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sessions: make(map[string]*session),
	}
}

// ServeHTTP upgrades a vehicle connection. The vehicle id comes from
// the request path; a reconnect replaces the previous session.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("id")
	if vehicleID == "" {
		http.Error(w, "missing vehicle id", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		fmt.Printf("Warning: websocket upgrade for %s: %v\n", vehicleID, err)
		return
	}

	sess := newSession(vehicleID, conn, g)
	g.attach(sess)
	log.Printf("Vehicle %s connected from %s", vehicleID, r.RemoteAddr)

	go sess.writePump()
	go sess.readPump()
}

func (g *Gateway) attach(sess *session) {
	g.mu.Lock()
	old := g.sessions[sess.vehicleID]
	g.sessions[sess.vehicleID] = sess
	g.mu.Unlock()
	if old != nil {
		old.close()
	}
}

// detach drops the session unless a reconnect already replaced it
func (g *Gateway) detach(sess *session) {
	g.mu.Lock()
	if g.sessions[sess.vehicleID] == sess {
		delete(g.sessions, sess.vehicleID)
	}
	g.mu.Unlock()
	log.Printf("Vehicle %s disconnected", sess.vehicleID)
}

func (g *Gateway) session(vehicleID string) (*session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sess, ok := g.sessions[vehicleID]
	return sess, ok
}

// IsConnected reports whether the vehicle currently holds a session
func (g *Gateway) IsConnected(vehicleID string) bool {
	_, ok := g.session(vehicleID)
	return ok
}

// ConnectedIDs lists the vehicles currently holding a session
func (g *Gateway) ConnectedIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	return ids
}

// PublishMission delivers a mission envelope on the vehicle's mission
// channel. The dispatcher keeps re-sending until the vehicle acks, so a
// delivery failure here is not terminal.
func (g *Gateway) PublishMission(ctx context.Context, vehicleID string, env *mission.Envelope) error {
	return g.send(ctx, vehicleID, channelMission+vehicleID, env)
}

// PublishCommand delivers a control command (reroute, backtrack, yield)
func (g *Gateway) PublishCommand(ctx context.Context, vehicleID string, cmd *common.VehicleCommand) error {
	return g.send(ctx, vehicleID, channelCommand+vehicleID, cmd)
}

// SetRunPermission flips the vehicle's run-permission channel. The wire
// value is 0 or 1, matching the onboard controller's digital input.
func (g *Gateway) SetRunPermission(ctx context.Context, vehicleID string, allowed bool) error {
	v := 0
	if allowed {
		v = 1
	}
	return g.send(ctx, vehicleID, channelRun+vehicleID, v)
}

func (g *Gateway) send(ctx context.Context, vehicleID, channel string, payload interface{}) error {
	sess, ok := g.session(vehicleID)
	if !ok {
		return fmt.Errorf("vehicle %s is not connected", vehicleID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", channel, err)
	}
	data, err := json.Marshal(frame{Channel: channel, Payload: body})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", channel, err)
	}
	return sess.enqueue(ctx, data)
}

// handleFrame turns one inbound frame into a bus event. Unknown
// channels are logged and dropped; a malformed frame never kills the
// session.
func (g *Gateway) handleFrame(sess *session, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		fmt.Printf("Warning: bad frame from %s: %v\n", sess.vehicleID, err)
		return
	}

	switch {
	case f.Channel == channelEvents:
		g.handleVehicleEvent(sess, f.Payload)
	case f.Channel == channelLifterEvts:
		g.handleLifterEvent(sess, f.Payload)
	case strings.HasPrefix(f.Channel, channelInfoPrefix):
		g.handleInfo(strings.TrimPrefix(f.Channel, channelInfoPrefix), f.Payload)
	default:
		fmt.Printf("Warning: frame on unknown channel %q from %s\n", f.Channel, sess.vehicleID)
	}
}

func (g *Gateway) handleVehicleEvent(sess *session, payload json.RawMessage) {
	var ev vehicleEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		fmt.Printf("Warning: bad event from %s: %v\n", sess.vehicleID, err)
		return
	}
	if ev.Event == "" {
		fmt.Printf("Warning: event without a type from %s\n", sess.vehicleID)
		return
	}
	// The session owner is authoritative; a vehicle cannot speak for
	// another one.
	if ev.VehicleID == "" {
		ev.VehicleID = sess.vehicleID
	} else if ev.VehicleID != sess.vehicleID {
		fmt.Printf("Warning: %s reported an event for %s, dropping\n", sess.vehicleID, ev.VehicleID)
		return
	}

	g.bus.Publish(events.Event{
		Type:      events.Type(ev.Event),
		VehicleID: ev.VehicleID,
		TaskID:    ev.TaskID,
		FloorID:   ev.FloorID,
		NodeQR:    ev.NodeQR,
		Payload:   ev.Payload,
		At:        g.clock.Now(),
	})
}

func (g *Gateway) handleLifterEvent(sess *session, payload json.RawMessage) {
	var ev lifterEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		fmt.Printf("Warning: bad lifter event from %s: %v\n", sess.vehicleID, err)
		return
	}
	g.bus.Publish(events.Event{
		Type:      events.Type(ev.Event),
		VehicleID: ev.Vehicle,
		FloorID:   ev.Floor,
		Payload:   map[string]interface{}{"floor": ev.Floor, "vehicle": ev.Vehicle},
		At:        g.clock.Now(),
	})
}

func (g *Gateway) handleInfo(vehicleID string, payload json.RawMessage) {
	var snap infoSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		fmt.Printf("Warning: bad snapshot for %s: %v\n", vehicleID, err)
		return
	}
	g.bus.Publish(events.Event{
		Type:      events.TypeVehicleInfo,
		VehicleID: vehicleID,
		FloorID:   snap.FloorID,
		NodeQR:    snap.NodeQR,
		Payload: map[string]interface{}{
			"x":        snap.X,
			"y":        snap.Y,
			"status":   snap.Status,
			"carrying": snap.Carrying,
			"battery":  snap.Battery,
		},
		At: g.clock.Now(),
	})
}

// Close terminates every session. Used on daemon shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	sessions := make([]*session, 0, len(g.sessions))
	for _, sess := range g.sessions {
		sessions = append(sessions, sess)
	}
	g.sessions = make(map[string]*session)
	g.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}
