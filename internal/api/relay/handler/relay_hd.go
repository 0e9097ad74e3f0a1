package relayHandler

import (
	"SignSync/internal/api/relay"
	contextPkg "SignSync/pkg/context"
	"SignSync/pkg/log"
	"SignSync/pkg/response"
	"context"
	"encoding/json"
	"errors"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

var errClientDisconnect = errors.New("client requested disconnect")

// handleSession runs one client session: connect, any number of frames,
// disconnect. Frames are handled one at a time and a failed frame only
// produces an error event.
func (h *RelayHandler) handleSession(c *websocket.Conn) {
	ctx := contextPkg.WithSessionID(context.Background(), h.utils.NewSessionID())
	if requestID, ok := c.Locals(contextPkg.FiberRequestIDKey).(string); ok {
		ctx = contextPkg.WithRequestID(ctx, requestID)
	}

	h.onConnect(ctx, c)
	defer h.onDisconnect(ctx)

	c.SetReadLimit(h.cfg.MaxMessageSize)

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(h.cfg.IdleTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if errors.Is(err, fastws.ErrReadLimit) {
				h.log.WithFields(log.Fields{
					log.SessionIDKey: contextPkg.GetSessionID(ctx),
					"limit":          h.cfg.MaxMessageSize,
				}).Warn("Socket message too large, closing session")
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.WithFields(log.Fields{
					log.SessionIDKey: contextPkg.GetSessionID(ctx),
					"error":          err.Error(),
				}).Warn("Socket read failed")
			}
			return
		}

		if messageType != websocket.TextMessage {
			if err := h.emitError(ctx, c, relay.ErrInvalidMessage, "read_message"); err != nil {
				return
			}
			continue
		}

		if err := h.dispatch(ctx, c, message); err != nil {
			if !errors.Is(err, errClientDisconnect) {
				h.log.WithFields(log.Fields{
					log.SessionIDKey: contextPkg.GetSessionID(ctx),
					"error":          err.Error(),
				}).Warn("Socket write failed")
			}
			return
		}
	}
}

func (h *RelayHandler) onConnect(ctx context.Context, c *websocket.Conn) {
	h.log.WithFields(log.Fields{
		log.SessionIDKey: contextPkg.GetSessionID(ctx),
		log.RequestIDKey: contextPkg.GetRequestID(ctx),
		"client_ip":      c.Locals(clientIPKey),
		"mode":           h.relayService.Mode(),
	}).Info("Client connected")
}

func (h *RelayHandler) onDisconnect(ctx context.Context) {
	h.log.WithFields(log.Fields{
		log.SessionIDKey: contextPkg.GetSessionID(ctx),
	}).Info("Client disconnected")
}

// dispatch routes one inbound event. It returns an error only when the
// session has to end.
func (h *RelayHandler) dispatch(ctx context.Context, c *websocket.Conn, message []byte) error {
	var envelope relay.Envelope
	if err := jsoniter.Unmarshal(message, &envelope); err != nil {
		return h.emitError(ctx, c, response.Wrap(relay.ErrInvalidMessage, err), "parse_message")
	}
	if err := h.validator.Struct(envelope); err != nil {
		return h.emitError(ctx, c, response.Wrap(relay.ErrInvalidMessage, err), "validate_message")
	}

	switch envelope.Event {
	case relay.EventAnalyzeFrame, relay.EventAnalyzeFrameLegacy:
		return h.analyzeFrame(ctx, c, envelope.Data)
	case relay.EventConnect:
		return nil
	case relay.EventDisconnect:
		return errClientDisconnect
	default:
		h.log.WithFields(log.Fields{
			log.SessionIDKey: contextPkg.GetSessionID(ctx),
			"event":          envelope.Event,
		}).Debug("Unknown event")
		return h.emitError(ctx, c, relay.ErrUnknownEvent, "dispatch")
	}
}

func (h *RelayHandler) analyzeFrame(ctx context.Context, c *websocket.Conn, data json.RawMessage) error {
	result, err := h.relayService.AnalyzeFrame(ctx, data)
	if err != nil {
		return h.emitError(ctx, c, err, "analyze_frame")
	}

	return h.emit(c, h.predictionEvent(), result)
}

func (h *RelayHandler) predictionEvent() string {
	if h.cfg.LegacyEventNames {
		return relay.EventPredictionResultLegacy
	}
	return relay.EventPredictionResult
}

func (h *RelayHandler) emitError(ctx context.Context, c *websocket.Conn, err error, operation string) error {
	payload := h.errHandler.HandleEvent(ctx, err, operation)
	return h.emit(c, relay.EventError, payload)
}

func (h *RelayHandler) emit(c *websocket.Conn, event string, data interface{}) error {
	message, err := jsoniter.Marshal(relay.OutboundEvent{Event: event, Data: data})
	if err != nil {
		return err
	}

	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
		return err
	}

	return c.SetWriteDeadline(time.Time{})
}
