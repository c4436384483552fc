package web

import (
	"errors"
	"net"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/voicebridge/pkg/pipeline"
)

const closeWriteWait = 5 * time.Second

// wsConn adapts a fiber WebSocket connection to the pipeline's transport
// contract. The pipeline drives it from a single goroutine.
type wsConn struct {
	c *websocket.Conn
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{c: c}
}

// ReadFrame returns the next binary message. Non-binary messages are
// discarded; the deadline covers the whole wait, skips included.
func (w *wsConn) ReadFrame(timeout time.Duration) ([]byte, error) {
	if err := w.c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, pipeline.ErrReceiveTimeout
			}
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteAudio(audio []byte) error {
	return w.c.WriteMessage(websocket.BinaryMessage, audio)
}

func (w *wsConn) WriteError(payload pipeline.ErrorPayload) error {
	return w.c.WriteJSON(payload)
}

// Close sends a close frame with the given code, then tears down the
// underlying connection.
func (w *wsConn) Close(code pipeline.CloseCode) error {
	msg := websocket.FormatCloseMessage(int(code), "")
	if err := w.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		w.c.Close()
		return err
	}
	return w.c.Close()
}

var _ pipeline.Conn = (*wsConn)(nil)
