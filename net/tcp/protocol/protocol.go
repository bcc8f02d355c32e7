package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Meander-Cloud/go-holdem/arbiter"
	m "github.com/Meander-Cloud/go-holdem/message"
)

const (
	tcpWriteDeadline time.Duration = time.Second * 3
)

const (
	headerLen        int    = 7
	typicalBufferLen int    = 1024    // 1 KB
	maxPayloadLen    uint32 = 1048576 // 1 MB, handover carries a table snapshot
)

const (
	protocolPattern byte = 0x59
	protocolVersion byte = 0x02
)

const (
	ServerSenderID byte = 0x01
	ClientSenderID byte = 0x02
)

// Handler receives connection lifecycle and payload events. All methods are
// invoked on the arbiter goroutine.
type Handler interface {
	ParticipantInit(*ConnState, *m.ParticipantInit)
	ParticipantExit(*ConnState, *m.ParticipantExit)
	Message(*ConnState, *m.Message)
}

type ConnVolatileData struct {
	PeerParticipant *m.Participant
	PeerID          string
	Descriptor      string
}

type ConnState struct {
	ConnID uint32
	Conn   net.Conn
	// callers can set pointers but must not modify pointed data, to allow concurrent immutable read
	Data  atomic.Pointer[ConnVolatileData]
	Ready atomic.Bool

	ep *endpoint
}

// caller must be on arbiter goroutine
func (cs *ConnState) WriteSync(messageStruct *m.Message) error {
	if !cs.Ready.Load() {
		err := fmt.Errorf("%s: %s: connection not ready", cs.ep.LogPrefix, cs.Data.Load().Descriptor)
		log.Printf("%s", err.Error())
		return err
	}

	messageStruct.Txseq = cs.ep.GetNextTxseq()
	messageStruct.Txtime = time.Now().UTC().UnixMilli()

	return writeWireData(
		cs.ep.LogPrefix,
		cs.ep.LogDebug,
		cs.ep.Txid,
		cs,
		messageStruct,
	)
}

type EndpointOptions struct {
	Arbiter *arbiter.Arbiter
	Handler

	Txid    byte
	RxidMap map[byte]struct{}

	SelfParticipant *m.Participant
	SelfID          string

	LogPrefix string
	LogDebug  bool
}

// endpoint holds what the accepting and dialing sides share.
type endpoint struct {
	*EndpointOptions
	inShutdown atomic.Bool

	// if increment overflow will wrap to zero
	connIDGen atomic.Uint32
	txseqGen  atomic.Uint64
}

func newEndpoint(options *EndpointOptions) (*endpoint, error) {
	if options.Arbiter == nil {
		err := fmt.Errorf("%s: nil Arbiter", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.Handler == nil {
		err := fmt.Errorf("%s: nil Handler", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.SelfParticipant == nil {
		err := fmt.Errorf("%s: nil SelfParticipant", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if options.SelfID == "" {
		err := fmt.Errorf("%s: invalid SelfID", options.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}

	return &endpoint{
		EndpointOptions: options,
	}, nil
}

// invoked on ReadLoop goroutine
func (ep *endpoint) getNextConnID() uint32 {
	return ep.connIDGen.Add(1)
}

// invoked on any goroutine
func (ep *endpoint) GetNextTxseq() uint64 {
	return ep.txseqGen.Add(1)
}

func (ep *endpoint) newConnState(conn net.Conn, arrow string) *ConnState {
	connState := &ConnState{
		ConnID: ep.getNextConnID(),
		Conn:   conn,
		Data:   atomic.Pointer[ConnVolatileData]{},
		Ready:  atomic.Bool{},
		ep:     ep,
	}
	connState.Data.Store(
		&ConnVolatileData{
			// to be communicated by peer during initial protocol
			PeerParticipant: nil,
			PeerID:          "",

			Descriptor: fmt.Sprintf(
				"[%d]%s%s<%s>",
				connState.ConnID,
				ep.SelfID,
				arrow,
				conn.RemoteAddr().String(),
			),
		},
	)
	return connState
}

// invoked on arbiter goroutine
func (ep *endpoint) sendParticipantInit(connState *ConnState, inReconnect bool) error {
	return writeWireData(
		ep.LogPrefix,
		ep.LogDebug,
		ep.Txid,
		connState,
		&m.Message{
			Txseq:  ep.GetNextTxseq(),
			Txtime: time.Now().UTC().UnixMilli(),

			ParticipantInit: &m.ParticipantInit{
				Participant: ep.SelfParticipant,
				InReconnect: inReconnect,
			},
		},
	)
}

// invoked on any goroutine, waits until written or abandoned
func (ep *endpoint) sendParticipantExit(connState *ConnState) {
	done := make(chan struct{})
	ep.Arbiter.Dispatch(
		func() {
			// invoked on arbiter goroutine
			defer close(done)

			writeWireData(
				ep.LogPrefix,
				ep.LogDebug,
				ep.Txid,
				connState,
				&m.Message{
					Txseq:  ep.GetNextTxseq(),
					Txtime: time.Now().UTC().UnixMilli(),

					ParticipantExit: &m.ParticipantExit{
						InShutdown: true,
					},
				},
			)
		},
	)

	select {
	case <-done:
	case <-time.After(tcpWriteDeadline):
	}
}

// serve runs the framed read loop for one connection until it fails. The
// dialing side opens the handshake; the accepting side answers it.
func (ep *endpoint) serve(connState *ConnState, dialer bool) {
	conn := connState.Conn
	cvd := connState.Data.Load()
	network := conn.RemoteAddr().Network()
	participantExitDispatched := false
	peerInShutdown := false

	log.Printf("%s: %s: new %s connection", ep.LogPrefix, cvd.Descriptor, network)

	defer func() {
		log.Printf("%s: %s: closing %s connection", ep.LogPrefix, cvd.Descriptor, network)
		connState.Ready.Store(false)

		selfInShutdown := ep.inShutdown.Load()
		inShutdown := selfInShutdown || peerInShutdown

		if cvd.PeerID != "" && !participantExitDispatched {
			ep.Arbiter.Dispatch(
				func() {
					// invoked on arbiter goroutine
					ep.Handler.ParticipantExit(
						connState,
						&m.ParticipantExit{
							InShutdown: inShutdown,
						},
					)
				},
			)
			participantExitDispatched = true
		}

		conn.Close()
		log.Printf("%s: %s: %s connection closed, selfInShutdown=%t, peerInShutdown=%t", ep.LogPrefix, cvd.Descriptor, network, selfInShutdown, peerInShutdown)
	}()

	if dialer {
		ep.Arbiter.Dispatch(
			func() {
				// invoked on arbiter goroutine
				ep.sendParticipantInit(connState, true)
			},
		)
	}

	handleMessage := func(messageStruct *m.Message) error {
		if messageStruct.ParticipantInit != nil {
			peerParticipant, err := validateParticipantInit(ep.LogPrefix, cvd.Descriptor, messageStruct.ParticipantInit)
			if err != nil {
				return err
			}

			if cvd.PeerID != "" {
				err := fmt.Errorf("%s: %s: already processed ParticipantInit, incoming Participant=%+v", ep.LogPrefix, cvd.Descriptor, *peerParticipant)
				log.Printf("%s", err.Error())
				return err
			}

			if peerParticipant.Address == ep.SelfID {
				err := fmt.Errorf("%s: %s: connected to self", ep.LogPrefix, cvd.Descriptor)
				log.Printf("%s", err.Error())
				return err
			}

			arrow := "<-"
			if dialer {
				arrow = "->"
			}

			// update volatile data
			cvd = &ConnVolatileData{
				PeerParticipant: peerParticipant,
				PeerID:          peerParticipant.Address,
				Descriptor: fmt.Sprintf(
					"[%d]%s%s%s<%s>",
					connState.ConnID,
					ep.SelfID,
					arrow,
					peerParticipant.Address,
					conn.RemoteAddr().String(),
				),
			}
			connState.Data.Store(cvd) // atomic

			participantInit := messageStruct.ParticipantInit
			scopedDescriptor := cvd.Descriptor
			ep.Arbiter.Dispatch(
				func() {
					// invoked on arbiter goroutine
					if !dialer {
						err := ep.sendParticipantInit(connState, participantInit.InReconnect)
						if err != nil {
							return
						}
					}

					connState.Ready.Store(true)
					log.Printf("%s: %s: connection now ready, peerInReconnect=%t", ep.LogPrefix, scopedDescriptor, participantInit.InReconnect)

					ep.Handler.ParticipantInit(connState, participantInit)
				},
			)
			return nil
		}

		if cvd.PeerID == "" {
			err := fmt.Errorf("%s: %s: peer unknown, cannot process kind=%s", ep.LogPrefix, cvd.Descriptor, messageStruct.Kind())
			log.Printf("%s", err.Error())
			return err
		}

		if messageStruct.ParticipantExit != nil {
			peerInShutdown = messageStruct.ParticipantExit.InShutdown
			connState.Ready.Store(false)
			log.Printf("%s: %s: connection no longer ready, peerInShutdown=%t", ep.LogPrefix, cvd.Descriptor, peerInShutdown)

			participantExit := messageStruct.ParticipantExit
			ep.Arbiter.Dispatch(
				func() {
					// invoked on arbiter goroutine
					ep.Handler.ParticipantExit(connState, participantExit)
				},
			)
			participantExitDispatched = true
			return nil
		}

		if messageStruct.Kind() == m.KindInvalid {
			err := fmt.Errorf("%s: %s: unsupported messageStruct=%+v", ep.LogPrefix, cvd.Descriptor, messageStruct)
			log.Printf("%s", err.Error())
			return err
		}

		ep.Arbiter.Dispatch(
			func() {
				// invoked on arbiter goroutine
				ep.Handler.Message(connState, messageStruct)
			},
		)
		return nil
	}

	for {
		messageStruct, err := readWireData(ep.LogPrefix, ep.LogDebug, ep.RxidMap, cvd.Descriptor, conn)
		if err != nil {
			return
		}

		err = handleMessage(messageStruct)
		if err != nil {
			return
		}
	}
}

func validateParticipantInit(logPrefix string, descriptor string, participantInit *m.ParticipantInit) (*m.Participant, error) {
	if participantInit.Participant == nil {
		err := fmt.Errorf("%s: %s: invalid ParticipantInit=%+v", logPrefix, descriptor, participantInit)
		log.Printf("%s", err.Error())
		return nil, err
	}
	peerParticipant := participantInit.Participant

	if peerParticipant.Host == "" {
		err := fmt.Errorf("%s: %s: invalid Host=%s", logPrefix, descriptor, peerParticipant.Host)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if peerParticipant.Instance == "" {
		err := fmt.Errorf("%s: %s: invalid Instance=%s", logPrefix, descriptor, peerParticipant.Instance)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if peerParticipant.Address == "" {
		err := fmt.Errorf("%s: %s: invalid Address=%s", logPrefix, descriptor, peerParticipant.Address)
		log.Printf("%s", err.Error())
		return nil, err
	}

	if peerParticipant.Time <= 0 {
		err := fmt.Errorf("%s: %s: invalid Time=%d", logPrefix, descriptor, peerParticipant.Time)
		log.Printf("%s", err.Error())
		return nil, err
	}

	return peerParticipant, nil
}

// encodeFrame writes the seven byte header followed by the msgpack payload
// 0 - pre-designated bit pattern indicating valid message
// 1 - protocol version
// 2 - sender id
// 3,4,5,6 - payload length of type uint32, little endian byte order
func encodeFrame[M any](txid byte, messageStruct *M) ([]byte, error) {
	buffer := new(bytes.Buffer)
	buffer.Grow(typicalBufferLen)

	buffer.WriteByte(protocolPattern)
	buffer.WriteByte(protocolVersion)
	buffer.WriteByte(txid)

	// placeholder for payload length
	buffer.Write([]byte{0x00, 0x00, 0x00, 0x00})

	err := msgpack.NewEncoder(buffer).Encode(messageStruct)
	if err != nil {
		return nil, err
	}

	buf := buffer.Bytes()
	// do not access buffer beyond this point

	payloadLen := uint32(len(buf) - headerLen)
	if payloadLen > maxPayloadLen {
		return nil, fmt.Errorf("payloadLen=%d is too large", payloadLen)
	}
	binary.LittleEndian.PutUint32(buf[3:headerLen], payloadLen)

	return buf, nil
}

func writeWireData[M any](logPrefix string, logDebug bool, txid byte, connState *ConnState, messageStruct *M) error {
	descriptor := connState.Data.Load().Descriptor

	buf, err := encodeFrame(txid, messageStruct)
	if err != nil {
		log.Printf("%s: %s: failed to encode messageStruct=%+v, err=%s", logPrefix, descriptor, messageStruct, err.Error())
		return err
	}

	connState.Conn.SetWriteDeadline(time.Now().UTC().Add(tcpWriteDeadline))
	n, err := connState.Conn.Write(buf)
	if err != nil {
		log.Printf("%s: %s: failed to write %d bytes, err=%s", logPrefix, descriptor, len(buf), err.Error())
		return err
	}
	if logDebug {
		log.Printf("%s: %s: wrote %d bytes, header %X", logPrefix, descriptor, n, buf[0:headerLen])
	}

	return nil
}

func readWireData(logPrefix string, logDebug bool, rxidMap map[byte]struct{}, descriptor string, r io.Reader) (*m.Message, error) {
	buf1 := make([]byte, headerLen)
	n1, err := io.ReadFull(r, buf1)
	if err != nil {
		log.Printf("%s: %s: failed to read header bytes, err=%s", logPrefix, descriptor, err.Error())
		return nil, err
	}

	// protocol specific sanity check
	if buf1[0] != protocolPattern {
		err = fmt.Errorf("%s: %s: invalid protocol pattern in header bytes %X", logPrefix, descriptor, buf1[:n1])
		log.Printf("%s", err.Error())
		return nil, err
	}
	if buf1[1] != protocolVersion {
		err = fmt.Errorf("%s: %s: unsupported protocol version in header bytes %X", logPrefix, descriptor, buf1[:n1])
		log.Printf("%s", err.Error())
		return nil, err
	}
	_, found := rxidMap[buf1[2]]
	if !found {
		err = fmt.Errorf("%s: %s: unrecognized sender id in header bytes %X", logPrefix, descriptor, buf1[:n1])
		log.Printf("%s", err.Error())
		return nil, err
	}

	payloadLen := binary.LittleEndian.Uint32(buf1[3:headerLen])
	if payloadLen > maxPayloadLen {
		err = fmt.Errorf("%s: %s: payloadLen=%d in header bytes %X is too large", logPrefix, descriptor, payloadLen, buf1[:n1])
		log.Printf("%s", err.Error())
		return nil, err
	}

	buf2 := make([]byte, payloadLen)
	n2, err := io.ReadFull(r, buf2)
	if err != nil {
		log.Printf("%s: %s: failed to read payload bytes, err=%s", logPrefix, descriptor, err.Error())
		return nil, err
	}

	messageStruct := new(m.Message)
	err = msgpack.Unmarshal(buf2, messageStruct)
	if err != nil {
		log.Printf("%s: %s: failed to unmarshal payload bytes %X, err=%s", logPrefix, descriptor, buf2[:n2], err.Error())
		return nil, err
	}
	if logDebug {
		log.Printf("%s: %s: received kind=%s messageStruct=%+v", logPrefix, descriptor, messageStruct.Kind(), messageStruct)
	}

	return messageStruct, nil
}
