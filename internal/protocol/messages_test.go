package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInsert(t *testing.T) {
	in, err := Decode([]byte(`{"type":"insert","char":"a","after":"id1","client_op_id":"tmp-1"}`))
	require.NoError(t, err)
	require.NotNil(t, in.Insert)
	assert.Equal(t, "a", in.Insert.Char)
	require.NotNil(t, in.Insert.After)
	assert.Equal(t, "id1", *in.Insert.After)
	assert.Equal(t, "tmp-1", in.Insert.ClientOpID)
}

func TestDecodeInsertNullAnchor(t *testing.T) {
	in, err := Decode([]byte(`{"type":"insert","char":"a","after":null}`))
	require.NoError(t, err)
	assert.Nil(t, in.Insert.After)
}

func TestDecodeDeleteAndCursor(t *testing.T) {
	in, err := Decode([]byte(`{"type":"delete","id":"id1"}`))
	require.NoError(t, err)
	assert.Equal(t, "id1", in.Delete.ID)

	in, err = Decode([]byte(`{"type":"cursor","position":12}`))
	require.NoError(t, err)
	assert.Equal(t, 12, in.Cursor.Position)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"frobnicate"}`))
	var unknown *ErrUnknownType
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "frobnicate", unknown.Type)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	require.Error(t, err)
	var unknown *ErrUnknownType
	assert.False(t, errors.As(err, &unknown), "malformed JSON is not an unknown-type error")
}

func TestInsertEventWireShape(t *testing.T) {
	buf, err := json.Marshal(InsertEvent{
		Type: TypeInsert, ID: "srv-1", Char: "H", After: nil,
		ClientOpID: "tmp-1", Author: "c1",
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"insert","id":"srv-1","char":"H","after":null,"client_op_id":"tmp-1","author":"c1"}`,
		string(buf))
}
