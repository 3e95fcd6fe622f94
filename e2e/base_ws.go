package e2e

import (
	"chat-relay/domain/event"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const readTimeout = 5 * time.Second

type BaseWebsocketSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWebsocketSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set, no relay to talk to")
	}
}

// Peer is one client connection with frame logging.
type Peer struct {
	t     *testing.T
	name  string
	conn  *websocket.Conn
	debug bool
}

// Dial opens a WebSocket connection to the room. The handshake response is
// returned as well so that rejected dials can be inspected.
func (s *BaseWebsocketSuite) Dial(name, roomID, token string) (*Peer, error) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	endpoint := url.URL{
		Scheme:   "ws",
		Host:     s.Config.RelayAddr,
		Path:     "/chat/ws/" + url.PathEscape(roomID),
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	peer := &Peer{t: s.T(), name: name, conn: conn, debug: s.Config.DebugJSON}
	s.T().Cleanup(func() { _ = conn.Close() })
	return peer, nil
}

// Next reads one event, failing the test on timeout.
func (p *Peer) Next() (event.Event, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return event.Event{}, err
	}
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return event.Event{}, err
	}
	if p.debug {
		p.t.Logf("%s <- %s", p.name, data)
	}
	return event.Decode(data)
}

func (p *Peer) Say(content string) error {
	return p.conn.WriteMessage(websocket.TextMessage, []byte(content))
}

func (p *Peer) Leave() error {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return p.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
}
