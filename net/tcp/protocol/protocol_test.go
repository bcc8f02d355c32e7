package protocol

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meander-Cloud/go-holdem/arbiter"
	"github.com/Meander-Cloud/go-holdem/config"
	m "github.com/Meander-Cloud/go-holdem/message"
)

type recordingHandler struct {
	initch    chan *ConnState
	exitch    chan *ConnState
	messagech chan *m.Message
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		initch:    make(chan *ConnState, 4),
		exitch:    make(chan *ConnState, 4),
		messagech: make(chan *m.Message, 4),
	}
}

func (h *recordingHandler) ParticipantInit(cs *ConnState, _ *m.ParticipantInit) {
	h.initch <- cs
}

func (h *recordingHandler) ParticipantExit(cs *ConnState, _ *m.ParticipantExit) {
	h.exitch <- cs
}

func (h *recordingHandler) Message(_ *ConnState, msg *m.Message) {
	h.messagech <- msg
}

func participant(address string) *m.Participant {
	return &m.Participant{
		Host:     "test",
		Instance: address,
		Address:  address,
		Time:     time.Now().UnixMilli(),
	}
}

func Test_FrameRoundTrip(t *testing.T) {
	buf, err := encodeFrame(
		ClientSenderID,
		&m.Message{
			Txseq: 7,
			Ordered: &m.Ordered{
				Epoch: 2,
				Seq:   41,
				Command: &m.Command{
					Act: &m.Act{Player: "B", Action: m.ActionRaise, Amount: 40},
				},
			},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, protocolPattern, buf[0])
	assert.Equal(t, protocolVersion, buf[1])
	assert.Equal(t, ClientSenderID, buf[2])

	msg, err := readWireData("test", false, map[byte]struct{}{ClientSenderID: {}}, "pipe", bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, m.KindOrdered, msg.Kind())
	assert.Equal(t, uint64(7), msg.Txseq)
	assert.Equal(t, int64(41), msg.Ordered.Seq)
	assert.Equal(t, m.ActionRaise, msg.Ordered.Command.Act.Action)
	assert.Equal(t, int64(40), msg.Ordered.Command.Act.Amount)

	_, err = readWireData("test", false, map[byte]struct{}{ServerSenderID: {}}, "pipe", bytes.NewReader(buf))
	assert.Error(t, err, "sender id must be recognized")

	corrupt := append([]byte(nil), buf...)
	corrupt[0] = 0x00
	_, err = readWireData("test", false, map[byte]struct{}{ClientSenderID: {}}, "pipe", bytes.NewReader(corrupt))
	assert.Error(t, err)

	oversize := append([]byte(nil), buf...)
	oversize[6] = 0xFF
	_, err = readWireData("test", false, map[byte]struct{}{ClientSenderID: {}}, "pipe", bytes.NewReader(oversize))
	assert.Error(t, err)

	_, err = readWireData("test", false, map[byte]struct{}{ClientSenderID: {}}, "pipe", bytes.NewReader(buf[:10]))
	assert.Error(t, err, "truncated payload")
}

func Test_Handshake(t *testing.T) {
	a := arbiter.NewArbiter(&config.Config{LogPrefix: "test"})
	defer a.Shutdown()

	serverHandler := newRecordingHandler()
	clientHandler := newRecordingHandler()

	server, err := newEndpoint(
		&EndpointOptions{
			Arbiter:         a,
			Handler:         serverHandler,
			Txid:            ServerSenderID,
			RxidMap:         map[byte]struct{}{ClientSenderID: {}},
			SelfParticipant: participant("A"),
			SelfID:          "A",
			LogPrefix:       "Server",
		},
	)
	require.NoError(t, err)

	client, err := newEndpoint(
		&EndpointOptions{
			Arbiter:         a,
			Handler:         clientHandler,
			Txid:            ClientSenderID,
			RxidMap:         map[byte]struct{}{ServerSenderID: {}},
			SelfParticipant: participant("B"),
			SelfID:          "B",
			LogPrefix:       "Client",
		},
	)
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	go server.serve(server.newConnState(serverConn, "<-"), false)
	go client.serve(client.newConnState(clientConn, "->"), true)

	var serverSide, clientSide *ConnState
	select {
	case serverSide = <-serverHandler.initch:
	case <-time.After(time.Second * 3):
		t.Fatal("server never completed handshake")
	}
	select {
	case clientSide = <-clientHandler.initch:
	case <-time.After(time.Second * 3):
		t.Fatal("client never completed handshake")
	}

	assert.Equal(t, "B", serverSide.Data.Load().PeerID)
	assert.Equal(t, "A", clientSide.Data.Load().PeerID)
	assert.True(t, serverSide.Ready.Load())
	assert.True(t, clientSide.Ready.Load())

	a.Dispatch(
		func() {
			clientSide.WriteSync(&m.Message{Nack: &m.Nack{Seq: 3}})
		},
	)

	select {
	case msg := <-serverHandler.messagech:
		require.Equal(t, m.KindNack, msg.Kind())
		assert.Equal(t, int64(3), msg.Nack.Seq)
	case <-time.After(time.Second * 3):
		t.Fatal("nack not delivered")
	}

	clientConn.Close()

	select {
	case cs := <-serverHandler.exitch:
		assert.Equal(t, "B", cs.Data.Load().PeerID)
	case <-time.After(time.Second * 3):
		t.Fatal("connection loss not reported")
	}
}

func Test_NewEndpointValidation(t *testing.T) {
	_, err := newEndpoint(&EndpointOptions{LogPrefix: "test"})
	assert.Error(t, err)
}
