// Package session manages the live state of one document: its character
// sequence, the set of attached connections, and per-client presence.
// All mutation of a document funnels through its single Session, which
// is the serialization point for concurrent clients.
package session

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"collabtext/internal/crdt"
	"collabtext/internal/protocol"
)

// Conn is the session's view of an attached connection. Send must not
// block on socket I/O: implementations enqueue onto a buffered outbound
// queue and report an error when the peer can no longer keep up.
type Conn interface {
	Send(v interface{}) error
}

// Sink receives a copy of every event a session broadcasts. Used to feed
// external observers (Redis); delivery to clients never depends on it.
type Sink interface {
	Publish(docID string, event interface{})
}

type presence struct {
	username string
	cursor   int
}

// Session is one document's live state. Apply methods mutate the
// document and fan the resulting event out to every attached connection
// under a single mutex acquisition, so every client observes events in
// the order the session applied them. Nothing inside the critical
// section performs socket I/O.
type Session struct {
	docID string
	sink  Sink

	mu       sync.Mutex
	doc      *crdt.Document
	conns    map[Conn]string // conn -> client id
	presence map[string]*presence
}

func New(docID string, sink Sink) *Session {
	return &Session{
		docID:    docID,
		sink:     sink,
		doc:      crdt.NewDocument(),
		conns:    make(map[Conn]string),
		presence: make(map[string]*presence),
	}
}

// Restore loads a persisted snapshot. Only called before the session is
// shared, so no locking against concurrent applies is needed.
func (s *Session) Restore(chars []crdt.Char) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Restore(chars)
}

// Attach registers a connection and its presence entry, then broadcasts
// the updated roster. The caller is responsible for sending the
// document snapshot to the new connection.
func (s *Session) Attach(c Conn, clientID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = clientID
	s.presence[clientID] = &presence{username: username}
	s.broadcastLocked(s.rosterLocked())
}

// Detach removes a connection and its presence entry and broadcasts the
// updated roster. Idempotent: detaching an unknown connection is a
// no-op.
func (s *Session) Detach(c Conn, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hadConn := s.conns[c]
	delete(s.conns, c)
	_, hadClient := s.presence[clientID]
	delete(s.presence, clientID)
	if hadConn || hadClient {
		s.broadcastLocked(s.rosterLocked())
	}
}

// Empty reports whether no connections remain attached.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns) == 0
}

// ApplyInsert merges one character insert with a freshly assigned server
// id and broadcasts the resulting event.
func (s *Session) ApplyInsert(clientID, value string, afterID *string, clientOpID string) protocol.InsertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := protocol.InsertEvent{
		Type:       protocol.TypeInsert,
		ID:         uuid.NewString(),
		Char:       value,
		After:      afterID,
		ClientOpID: clientOpID,
		Author:     clientID,
	}
	s.doc.MergeInsert(ev.ID, value, afterID)
	s.broadcastLocked(ev)
	return ev
}

// ApplyDelete tombstones a character, if known, and broadcasts the
// delete either way so every replica converges on the same decision.
func (s *Session) ApplyDelete(clientID, targetID string) protocol.DeleteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := protocol.DeleteEvent{
		Type:   protocol.TypeDelete,
		ID:     targetID,
		Author: clientID,
	}
	s.doc.MergeDelete(targetID)
	s.broadcastLocked(ev)
	return ev
}

// UpdateCursor records a client's cursor offset and broadcasts it. A
// cursor update from a client that is no longer attached does not touch
// presence; the event is still relayed so late subscribers converge.
func (s *Session) UpdateCursor(clientID string, pos int) protocol.CursorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	username := ""
	if p, ok := s.presence[clientID]; ok {
		p.cursor = pos
		username = p.username
	}
	ev := protocol.CursorEvent{
		Type:     protocol.TypeCursor,
		UserID:   clientID,
		Username: username,
		Position: pos,
	}
	s.broadcastLocked(ev)
	return ev
}

// Broadcast delivers an event to every attached connection. A
// connection whose delivery fails is detached, and one roster broadcast
// follows the sweep; failures never abort delivery to the rest.
func (s *Session) Broadcast(event interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(event)
}

// RosterEvent builds the current user_list snapshot.
func (s *Session) RosterEvent() protocol.UserListEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

// SnapshotEvent builds the full-document bootstrap message.
func (s *Session) SnapshotEvent() protocol.SnapshotEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.SnapshotEvent{
		Type:  protocol.TypeSnapshot,
		Chars: s.doc.Snapshot(),
	}
}

// SnapshotChars returns a copy of the character sequence for
// persistence.
func (s *Session) SnapshotChars() []crdt.Char {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Snapshot()
}

// VisibleText materializes the current text.
func (s *Session) VisibleText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.VisibleText()
}

func (s *Session) rosterLocked() protocol.UserListEvent {
	users := make([]protocol.User, 0, len(s.presence))
	for id, p := range s.presence {
		users = append(users, protocol.User{ID: id, Username: p.username, Cursor: p.cursor})
	}
	return protocol.UserListEvent{Type: protocol.TypeUserList, Users: users}
}

// broadcastLocked fans an event out to every connection. Each failed
// delivery removes that connection and its presence entry; every sweep
// that removed someone is followed by a roster broadcast, which is
// itself swept the same way until delivery is clean.
func (s *Session) broadcastLocked(event interface{}) {
	if s.sink != nil {
		s.sink.Publish(s.docID, event)
	}
	for {
		var failed []Conn
		for c := range s.conns {
			if err := c.Send(event); err != nil {
				failed = append(failed, c)
			}
		}
		if len(failed) == 0 {
			return
		}
		for _, c := range failed {
			clientID := s.conns[c]
			delete(s.conns, c)
			delete(s.presence, clientID)
			log.Printf("session %s: dropped client %s: send failed", s.docID, clientID)
		}
		event = s.rosterLocked()
		if s.sink != nil {
			s.sink.Publish(s.docID, event)
		}
	}
}
