// Package ws is the transport boundary: it upgrades connections,
// decodes inbound operations, and relays session broadcasts back onto
// the sockets. It is the only package that touches gorilla/websocket.
package ws

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"collabtext/internal/protocol"
	"collabtext/internal/session"
)

const defaultSendBuffer = 256

// Handler serves the /ws/{doc_id} endpoint.
type Handler struct {
	registry *session.Registry
	upgrader websocket.Upgrader
	sendBuf  int
}

func NewHandler(registry *session.Registry, sendBuf int) *Handler {
	if sendBuf <= 0 {
		sendBuf = defaultSendBuffer
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendBuf: sendBuf,
	}
}

// Register mounts the websocket route on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/ws/{doc_id}", h.serveWS)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["doc_id"]
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		username = "Anonymous"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed for document %s: %v", docID, err)
		return
	}
	log.Printf("ws: client %s (%s) joined document %s", clientID, username, docID)

	sess := h.registry.GetOrCreate(r.Context(), docID)
	client := newClient(conn, h.sendBuf)
	go client.writePump()

	sess.Attach(client, clientID, username)
	if err := client.Send(sess.SnapshotEvent()); err != nil {
		sess.Detach(client, clientID)
		client.shutdown()
		conn.Close()
		return
	}

	h.readLoop(sess, client, clientID)

	sess.Detach(client, clientID)
	client.shutdown()
	conn.Close()
	if sess.Empty() {
		// last client out: checkpoint the document
		h.registry.Persist(context.Background(), docID)
	}
	log.Printf("ws: client %s left document %s", clientID, docID)
}

// readLoop pumps inbound messages until the transport drops or handling
// hits an unrecoverable failure. Clean closes and abrupt disconnects
// both end here the same way.
func (h *Handler) readLoop(sess *session.Session, client *Client, clientID string) {
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if fatal := h.handleMessage(sess, client, clientID, raw); fatal {
			return
		}
	}
}

// handleMessage dispatches one inbound message. A panic while handling
// is contained to this connection: it reports fatal so only this
// client's loop terminates.
func (h *Handler) handleMessage(sess *session.Session, client *Client, clientID string, raw []byte) (fatal bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ws: panic handling message from %s: %v", clientID, rec)
			fatal = true
		}
	}()

	in, err := protocol.Decode(raw)
	if err != nil {
		var unknown *protocol.ErrUnknownType
		msg := "invalid message"
		if errors.As(err, &unknown) {
			msg = "unknown message type"
		}
		// protocol errors go to the sender only, never broadcast
		client.Send(protocol.ErrorEvent{Type: protocol.TypeError, Msg: msg})
		return false
	}

	switch in.Type {
	case protocol.TypeInsert:
		sess.ApplyInsert(clientID, in.Insert.Char, in.Insert.After, in.Insert.ClientOpID)
	case protocol.TypeDelete:
		sess.ApplyDelete(clientID, in.Delete.ID)
	case protocol.TypeCursor:
		sess.UpdateCursor(clientID, in.Cursor.Position)
	}
	return false
}
