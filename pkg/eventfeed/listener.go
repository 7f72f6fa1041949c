package eventfeed

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second

	pingPeriod = 30 * time.Second
	pongWait   = 75 * time.Second
)

// StartListener follows the feed at host until ctx is cancelled, calling fn
// for each event. Broken connections are retried with exponential backoff.
func StartListener(ctx context.Context, host string, fn func(ev *Event)) error {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	retryCount := 0

	for {
		if retryCount > 0 {
			retryDelay := time.Duration(1<<retryCount) * baseRetryDelay
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}
			logrus.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		logrus.Infof("Connecting to %s", u.String())
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logrus.WithError(err).Warn("Connection failed")
			retryCount++
			if retryCount >= maxRetries {
				return err
			}
			continue
		}

		logrus.Info("Connected, following calibration events")
		retryCount = 0

		broken := handleConnection(ctx, c, fn)
		c.Close()
		if !broken {
			return nil
		}
		logrus.Warn("Connection lost, will retry...")
	}
}

// handleConnection reports true when the connection broke and false when
// ctx asked for a clean shutdown.
func handleConnection(ctx context.Context, c *websocket.Conn, fn func(ev *Event)) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.WithError(err).Warn("WebSocket error")
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(pongWait))

			if messageType != websocket.TextMessage {
				continue
			}
			if ev := EventFromJsonBytes(message); ev != nil {
				fn(ev)
			} else {
				logrus.Warnf("Failed to parse feed event: %s", string(message))
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logrus.WithError(err).Warn("Failed to send ping")
			}
		case <-ctx.Done():
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logrus.WithError(err).Debug("Error sending close message")
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
