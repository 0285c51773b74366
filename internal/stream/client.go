package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Douglasgls/zona-verde-app/internal/telemetry"
	"github.com/Douglasgls/zona-verde-app/internal/utils"
)

// Conn is the subset of a websocket connection the client reads from.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// DialFunc opens one connection to the feed. Injectable for tests.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func defaultDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ImageSink receives image_url notifications from the feed. The Capture
// Workflow is the only implementation; image-loading state is owned there,
// the client only forwards.
type ImageSink interface {
	NotifyImage(spotID int, imageURL, lastTime string)
}

// Client keeps one connection to the recognition feed open, applying every
// parsed event to the telemetry store. On any connection failure it waits a
// fixed delay and reconnects, indefinitely, until its context is cancelled.
type Client struct {
	url            string
	store          *telemetry.Store
	images         ImageSink
	reconnectDelay time.Duration

	dial  DialFunc
	sleep func(ctx context.Context, d time.Duration) bool
	log   zerolog.Logger
}

func NewClient(url string, store *telemetry.Store, images ImageSink, reconnectDelay time.Duration, log zerolog.Logger) *Client {
	return &Client{
		url:            url,
		store:          store,
		images:         images,
		reconnectDelay: reconnectDelay,
		dial:           defaultDial,
		sleep:          sleepContext,
		log:            log.With().Str("component", "stream").Logger(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Run blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx, c.url)
		if err != nil {
			c.log.Warn().Err(err).Str("url", c.url).Msg("feed connection failed, retrying")
			if !c.sleep(ctx, c.reconnectDelay) {
				return
			}
			continue
		}

		c.log.Info().Str("url", c.url).Msg("connected to recognition feed")
		c.readLoop(ctx, conn)

		if ctx.Err() != nil {
			return
		}
		c.log.Warn().Str("url", c.url).Msg("feed disconnected, retrying")
		if !c.sleep(ctx, c.reconnectDelay) {
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn Conn) {
	// Unblocks ReadMessage when the owning context is torn down.
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
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	event, hasID, err := decodeEvent(data)
	if err != nil {
		// Dropped; the connection stays up.
		c.log.Warn().Err(err).Msg("dropping unparseable feed message")
		return
	}

	if hasID {
		c.store.Update(event.SpotID, event)

		if event.IsAlert {
			c.log.Warn().
				Int("spot_id", event.SpotID).
				Str("plate_ocr", utils.NormalizePlate(event.PlateOCR)).
				Str("plate_db", utils.NormalizePlate(event.PlateDB)).
				Str("last_time", event.LastTime).
				Msg("alert event received")
		} else {
			c.log.Debug().
				Int("spot_id", event.SpotID).
				Str("status", string(event.Status)).
				Msg("telemetry event applied")
		}
	}

	if event.ImageURL != "" && c.images != nil {
		spotID := 0
		if hasID {
			spotID = event.SpotID
		}
		c.images.NotifyImage(spotID, event.ImageURL, event.LastTime)
	}
}
