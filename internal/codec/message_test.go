package codec_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distribuidos-chat/chatnode/internal/codec"
)

// Each tag's round trip: encoding then decoding yields the original
// payload.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		tag     codec.Tag
		payload any
		decoded any
	}{
		{
			"join request",
			codec.TagJoinRequest,
			codec.JoinRequestPayload{TCPPort: 10123, Nickname: "ana", Nonce: "abc"},
			&codec.JoinRequestPayload{},
		},
		{
			"join response",
			codec.TagJoinResponse,
			codec.JoinResponsePayload{
				NewID:         2,
				Peers:         []codec.PeerWire{{ID: 1, Host: "10.0.0.1", Port: 10500, Nickname: "a"}},
				CoordinatorID: 1,
				History:       []string{"[a (ID:1)]: hi"},
				Nonce:         "xyz",
			},
			&codec.JoinResponsePayload{},
		},
		{
			"peer update joined",
			codec.TagPeerUpdate,
			codec.PeerUpdatePayload{
				Peers:    []codec.PeerWire{{ID: 1, Host: "h", Port: 1, Nickname: "a"}},
				Joined:   2,
				Nickname: "b",
			},
			&codec.PeerUpdatePayload{},
		},
		{
			"chat message",
			codec.TagChatMessage,
			codec.ChatMessagePayload{SenderID: 2, Text: "hello"},
			&codec.ChatMessagePayload{},
		},
		{
			"heartbeat",
			codec.TagHeartbeat,
			codec.HeartbeatPayload{CoordinatorID: 1},
			&codec.HeartbeatPayload{},
		},
		{
			"election",
			codec.TagElection,
			codec.ElectionPayload{SenderID: 3},
			&codec.ElectionPayload{},
		},
		{
			"election ok",
			codec.TagElectionOK,
			codec.ElectionOKPayload{SenderID: 3},
			&codec.ElectionOKPayload{},
		},
		{
			"coordinator announcement",
			codec.TagCoordinatorAnnouncement,
			codec.CoordinatorAnnouncementPayload{CoordinatorID: 4},
			&codec.CoordinatorAnnouncementPayload{},
		},
		{
			"leave request",
			codec.TagLeaveRequest,
			codec.LeaveRequestPayload{NodeID: 2},
			&codec.LeaveRequestPayload{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := codec.Encode(tc.tag, tc.payload)
			require.NoError(t, err)

			msg, err := codec.Decode(data)
			require.NoError(t, err)
			require.Equal(t, tc.tag, msg.Type)

			require.NoError(t, codec.DecodePayload(msg, tc.decoded))
			got := reflect.ValueOf(tc.decoded).Elem().Interface()
			require.Equal(t, tc.payload, got)
		})
	}
}

func TestUnknownTagDoesNotErrorAtEnvelopeLevel(t *testing.T) {
	data, err := codec.Encode(codec.Tag("SOMETHING_NEW"), map[string]string{"x": "y"})
	require.NoError(t, err)

	msg, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, codec.Tag("SOMETHING_NEW"), msg.Type)
}
