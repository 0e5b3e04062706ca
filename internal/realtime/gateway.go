// README: Websocket gateway; authenticates connections and routes inbound events.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"presto/internal/infra"
	"presto/internal/types"
)

var ErrIdentityMismatch = errors.New("identity mismatch")

// Tracker persists captain positions outside process memory (Redis GEO).
type Tracker interface {
	Record(ctx context.Context, captainID types.ID, pos types.Point) error
	Remove(ctx context.Context, captainID types.ID) error
}

type Gateway struct {
	verifier   infra.TokenVerifier
	registry   *Registry
	dispatcher *Dispatcher
	tracker    Tracker
	log        *zap.Logger
	sendBuffer int

	upgrader websocket.Upgrader
}

func NewGateway(verifier infra.TokenVerifier, registry *Registry, dispatcher *Dispatcher, tracker Tracker, log *zap.Logger, sendBuffer int) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		verifier:   verifier,
		registry:   registry,
		dispatcher: dispatcher,
		tracker:    tracker,
		log:        log,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin from the app frontends.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle is the GET /ws endpoint. The credential is verified before the
// upgrade; an unauthenticated connection never enters the registry.
func (g *Gateway) Handle(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credential"})
		return
	}
	decoded, err := g.verifier.VerifyIDToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws, decoded.UID, decoded.Role(), g.sendBuffer)
	go conn.writePump()
	g.readPump(c.Request.Context(), conn)
}

// bearerToken accepts the credential from the Authorization header or, for
// browser websocket clients that cannot set headers, a token query param.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// readPump consumes inbound events until the socket closes, then removes
// exactly this connection's registry entries.
func (g *Gateway) readPump(ctx context.Context, conn *Conn) {
	defer func() {
		g.registry.Remove(conn)
		conn.Close()
		if conn.role != string(types.RoleCaptain) || g.tracker == nil {
			return
		}
		// a newer connection for the same captain keeps the tracking entry
		if _, ok := g.registry.Lookup(types.ID(conn.uid), types.RoleCaptain); ok {
			return
		}
		// the request context is gone by now
		if err := g.tracker.Remove(context.Background(), types.ID(conn.uid)); err != nil {
			g.log.Warn("tracking remove failed", zap.String("captain", conn.uid), zap.Error(err))
		}
	}()

	conn.ws.SetReadLimit(4096)
	_ = conn.ws.SetReadDeadline(timeNow().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(timeNow().Add(pongWait))
	})

	for {
		var env envelope
		if err := conn.ws.ReadJSON(&env); err != nil {
			return
		}
		if err := g.dispatch(ctx, conn, env); err != nil {
			if errors.Is(err, ErrIdentityMismatch) {
				conn.Send(errorEvent("identity mismatch"))
				return
			}
			conn.Send(errorEvent(err.Error()))
		}
	}
}

// dispatch routes one inbound event through the closed union. Unknown event
// names are answered with an error event and otherwise ignored.
func (g *Gateway) dispatch(ctx context.Context, conn *Conn, env envelope) error {
	switch env.Event {
	case eventCustomerJoin:
		var p customerJoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errors.New("malformed payload")
		}
		return g.join(conn, p.CustomerID, types.RoleCustomer)

	case eventVendorJoin:
		var p vendorJoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errors.New("malformed payload")
		}
		return g.join(conn, p.VendorID, types.RoleVendor)

	case eventCaptainLocation:
		var p captainLocationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errors.New("malformed payload")
		}
		return g.captainLocation(ctx, conn, p)

	case eventGetNearbyCaptains:
		conn.Send(Event{Name: EventNearbyCaptains, Data: g.registry.Snapshot(types.RoleCaptain)})
		return nil

	default:
		return errors.New("unknown event: " + env.Event)
	}
}

func (g *Gateway) join(conn *Conn, claimed types.ID, role types.Role) error {
	if string(claimed) != conn.uid {
		g.log.Warn("join rejected",
			zap.String("claimed", string(claimed)), zap.String("uid", conn.uid), zap.String("role", string(role)))
		return ErrIdentityMismatch
	}
	if displaced := g.registry.Register(claimed, role, conn); displaced != nil {
		displaced.Close()
	}
	return nil
}

func (g *Gateway) captainLocation(ctx context.Context, conn *Conn, p captainLocationPayload) error {
	if string(p.CaptainID) != conn.uid {
		return ErrIdentityMismatch
	}
	pos := types.Point{Lat: p.Lat, Lng: p.Lng}
	if displaced := g.registry.Register(p.CaptainID, types.RoleCaptain, conn); displaced != nil {
		displaced.Close()
	}
	g.registry.SetPosition(p.CaptainID, types.RoleCaptain, pos)
	if g.tracker != nil {
		if err := g.tracker.Record(ctx, p.CaptainID, pos); err != nil {
			g.log.Warn("tracking record failed", zap.String("captain", string(p.CaptainID)), zap.Error(err))
		}
	}
	g.dispatcher.BroadcastAll(Event{Name: EventCaptainLocationUpdate, Data: g.registry.Snapshot(types.RoleCaptain)})
	return nil
}
