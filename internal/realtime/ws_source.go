package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSSource reads envelopes from the upstream realtime WebSocket.
type WSSource struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *logrus.Logger
}

func NewWSSource(url string, header http.Header, logger *logrus.Logger) *WSSource {
	return &WSSource{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

func (s *WSSource) Name() string { return "websocket" }

func (s *WSSource) Run(ctx context.Context, sink Sink) {
	s.logger.WithField("url", s.url).Info("Realtime WebSocket source starting")
	wait := newBackoff(time.Second, 30*time.Second)
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d := wait.next()
			s.logger.WithError(err).WithField("retry_in", d.String()).Warn("Realtime WebSocket dial failed")
			if !sleep(ctx, d) {
				return
			}
			continue
		}
		wait.reset()

		err = s.readLoop(ctx, conn, sink)
		if ctx.Err() != nil {
			return
		}
		s.logger.WithError(err).Warn("Realtime WebSocket disconnected, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn, sink Sink) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		msgType, body, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := sink.Publish(ctx, s.Name(), body); err != nil {
			return err
		}
	}
}
