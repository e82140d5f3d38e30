// Package bridge publishes engine events to NATS so external consumers
// (dashboards, recorders, other engine instances) can follow a session
// live. The bridge is strictly fire-and-forget: a missing or failed
// broker never affects the engine.
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/deepfish/engine/internal/dispatch"
	"github.com/deepfish/engine/internal/engine"
	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/transcript"
)

// SubjectPrefix roots every subject the bridge publishes on.
const SubjectPrefix = "deepfish"

// Event is the wire envelope for every published message.
type Event struct {
	Session string      `json:"session"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// Publisher forwards engine events to a NATS connection.
type Publisher struct {
	nc      *nats.Conn
	session string
	log     *logging.Logger
}

// Connect dials the broker and returns a publisher for one engine
// session. The connection reconnects indefinitely; events raised while
// disconnected are buffered by the client.
func Connect(url, sessionID string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("deepfish-"+sessionID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return &Publisher{
		nc:      nc,
		session: sessionID,
		log:     logging.New().WithComponent("bridge"),
	}, nil
}

// Attach hooks the publisher into an engine's event callbacks. Existing
// callbacks are chained, not replaced.
func (p *Publisher) Attach(e *engine.Engine) {
	prevEntry := e.OnEntry
	e.OnEntry = func(scopeID string, entry transcript.Entry) {
		if prevEntry != nil {
			prevEntry(scopeID, entry)
		}
		p.publish(entrySubject(scopeID), entry)
	}
	prevMemo := e.OnMemo
	e.OnMemo = func(t memo.Thread) {
		if prevMemo != nil {
			prevMemo(t)
		}
		p.publish(memoSubject(t.SenderID), t)
	}
	prevTool := e.OnToolResult
	e.OnToolResult = func(personaID string, r dispatch.Result) {
		if prevTool != nil {
			prevTool(personaID, r)
		}
		p.publish(toolSubject(personaID, r.Call.Name), toolEvent{
			Persona: personaID,
			Tool:    r.Call.Name,
			Text:    r.Text,
			IsError: r.IsError,
		})
	}
}

type toolEvent struct {
	Persona string `json:"persona"`
	Tool    string `json:"tool"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
}

func (p *Publisher) publish(subject string, payload interface{}) {
	data, err := json.Marshal(Event{
		Session: p.session,
		At:      time.Now(),
		Payload: payload,
	})
	if err != nil {
		p.log.Warn("event marshal failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Debug("publish failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

// Close flushes buffered events and drops the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

func entrySubject(scopeID string) string {
	return SubjectPrefix + ".entry." + sanitizeToken(scopeID)
}

func memoSubject(senderID string) string {
	return SubjectPrefix + ".memo." + sanitizeToken(senderID)
}

func toolSubject(personaID, tool string) string {
	return SubjectPrefix + ".tool." + sanitizeToken(personaID) + "." + sanitizeToken(tool)
}

// sanitizeToken keeps subject tokens within NATS naming rules: no
// spaces, dots, or wildcard characters.
func sanitizeToken(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}
