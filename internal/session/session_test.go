package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabtext/internal/protocol"
)

// fakeConn records everything sent to it and can be told to start
// failing.
type fakeConn struct {
	events []interface{}
	fail   bool
}

func (c *fakeConn) Send(v interface{}) error {
	if c.fail {
		return errors.New("send: buffer full")
	}
	c.events = append(c.events, v)
	return nil
}

func (c *fakeConn) eventsOfType(tag string) []interface{} {
	var out []interface{}
	for _, ev := range c.events {
		switch e := ev.(type) {
		case protocol.InsertEvent:
			if e.Type == tag {
				out = append(out, ev)
			}
		case protocol.DeleteEvent:
			if e.Type == tag {
				out = append(out, ev)
			}
		case protocol.CursorEvent:
			if e.Type == tag {
				out = append(out, ev)
			}
		case protocol.UserListEvent:
			if e.Type == tag {
				out = append(out, ev)
			}
		}
	}
	return out
}

func strptr(s string) *string { return &s }

func TestApplyInsertBroadcastsToAll(t *testing.T) {
	s := New("doc", nil)
	conns := []*fakeConn{{}, {}, {}}
	for i, c := range conns {
		s.Attach(c, string(rune('a'+i)), "user")
	}

	ev := s.ApplyInsert("a", "H", nil, "tmp-1")
	require.NotEmpty(t, ev.ID)
	assert.Equal(t, "H", s.VisibleText())

	for _, c := range conns {
		inserts := c.eventsOfType(protocol.TypeInsert)
		require.Len(t, inserts, 1)
		assert.Equal(t, ev, inserts[0])
	}
}

func TestBroadcastDropsFailingConn(t *testing.T) {
	s := New("doc", nil)
	good1, bad, good2 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	s.Attach(good1, "g1", "alice")
	s.Attach(bad, "b", "bob")
	s.Attach(good2, "g2", "carol")
	bad.fail = true

	ev := s.ApplyInsert("g1", "x", nil, "")

	for _, c := range []*fakeConn{good1, good2} {
		inserts := c.eventsOfType(protocol.TypeInsert)
		require.Len(t, inserts, 1)
		assert.Equal(t, ev, inserts[0])
	}

	// the failing connection is gone and the survivors saw a roster
	// update without it
	roster := s.RosterEvent()
	assert.Len(t, roster.Users, 2)
	for _, u := range roster.Users {
		assert.NotEqual(t, "b", u.ID)
	}
	lists := good1.eventsOfType(protocol.TypeUserList)
	require.NotEmpty(t, lists)
	last := lists[len(lists)-1].(protocol.UserListEvent)
	assert.Len(t, last.Users, 2)
}

func TestDetachIdempotent(t *testing.T) {
	s := New("doc", nil)
	c := &fakeConn{}
	s.Attach(c, "a", "alice")
	s.Detach(c, "a")
	s.Detach(c, "a")
	assert.True(t, s.Empty())
	assert.Empty(t, s.RosterEvent().Users)
}

func TestAttachDetachBroadcastRoster(t *testing.T) {
	s := New("doc", nil)
	first := &fakeConn{}
	s.Attach(first, "a", "alice")

	second := &fakeConn{}
	s.Attach(second, "b", "bob")

	lists := first.eventsOfType(protocol.TypeUserList)
	require.Len(t, lists, 2)
	assert.Len(t, lists[1].(protocol.UserListEvent).Users, 2)

	s.Detach(second, "b")
	lists = first.eventsOfType(protocol.TypeUserList)
	require.Len(t, lists, 3)
	assert.Len(t, lists[2].(protocol.UserListEvent).Users, 1)
}

func TestCursorForDepartedClientLeavesPresenceAlone(t *testing.T) {
	s := New("doc", nil)
	c := &fakeConn{}
	s.Attach(c, "a", "alice")

	ev := s.UpdateCursor("ghost", 7)
	assert.Equal(t, 7, ev.Position)
	assert.Equal(t, "ghost", ev.UserID)

	roster := s.RosterEvent()
	require.Len(t, roster.Users, 1)
	assert.Equal(t, 0, roster.Users[0].Cursor)
}

func TestCursorUpdatesPresence(t *testing.T) {
	s := New("doc", nil)
	c := &fakeConn{}
	s.Attach(c, "a", "alice")

	ev := s.UpdateCursor("a", 3)
	assert.Equal(t, "alice", ev.Username)

	roster := s.RosterEvent()
	require.Len(t, roster.Users, 1)
	assert.Equal(t, 3, roster.Users[0].Cursor)
}

func TestEventsArriveInApplyOrder(t *testing.T) {
	s := New("doc", nil)
	c := &fakeConn{}
	s.Attach(c, "a", "alice")

	first := s.ApplyInsert("a", "H", nil, "")
	second := s.ApplyInsert("a", "i", strptr(first.ID), "")
	s.ApplyDelete("a", first.ID)

	assert.Equal(t, "i", s.VisibleText())

	var order []string
	for _, ev := range c.events {
		switch e := ev.(type) {
		case protocol.InsertEvent:
			order = append(order, "insert:"+e.ID)
		case protocol.DeleteEvent:
			order = append(order, "delete:"+e.ID)
		}
	}
	assert.Equal(t, []string{
		"insert:" + first.ID,
		"insert:" + second.ID,
		"delete:" + first.ID,
	}, order)
}

func TestSnapshotEventListsTombstones(t *testing.T) {
	s := New("doc", nil)
	ev := s.ApplyInsert("a", "x", nil, "")
	s.ApplyDelete("a", ev.ID)

	snap := s.SnapshotEvent()
	assert.Equal(t, protocol.TypeSnapshot, snap.Type)
	require.Len(t, snap.Chars, 1)
	assert.False(t, snap.Chars[0].Visible)
}
