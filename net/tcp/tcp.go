package tcp

import (
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/Meander-Cloud/go-transport/tcp"

	"github.com/Meander-Cloud/go-holdem/arbiter"
	"github.com/Meander-Cloud/go-holdem/config"
	m "github.com/Meander-Cloud/go-holdem/message"
	tp "github.com/Meander-Cloud/go-holdem/net/tcp/protocol"
)

// PeerHandler is notified on the arbiter goroutine. PeerJoined fires with the
// first ready connection to a peer and PeerLost when its last one goes away.
type PeerHandler interface {
	PeerJoined(peerID string)
	PeerLost(peerID string)
	Message(peerID string, msg *m.Message)
}

type ServerStruct struct {
	protocol  *tp.Server
	tcpServer *tcp.TcpServer
}

type ClientStruct struct {
	protocol  *tp.Client
	tcpClient *tcp.TcpClient
}

// Mesh keeps one listener and one dialer per configured peer. Two nodes may
// therefore share two connections; the first one ready is the preferred link
// and carries every unicast so that per-peer delivery stays FIFO.
type Mesh struct {
	c         *config.Config
	selfID    string
	ph        PeerHandler
	server    *ServerStruct
	clientMap map[string]*ClientStruct

	// arbiter goroutine only
	linkMap map[string][]*tp.ConnState
}

func NewMesh(
	c *config.Config,
	a *arbiter.Arbiter,
	ph PeerHandler,
	selfParticipant *m.Participant,
) (*Mesh, error) {
	mesh := &Mesh{
		c:      c,
		selfID: selfParticipant.Address,
		ph:     ph,
		server: &ServerStruct{
			protocol:  nil,
			tcpServer: nil,
		},
		clientMap: make(map[string]*ClientStruct),
		linkMap:   make(map[string][]*tp.ConnState),
	}

	var err error

	mesh.server.protocol, err = tp.NewServer(
		&tp.ServerOptions{
			Options: &tcp.Options{
				Address:           c.SelfAddress,
				KeepAliveInterval: c.KeepAliveInterval(),
				KeepAliveCount:    c.KeepAliveCount(),
				DialTimeout:       c.DialTimeout(),
				ReconnectInterval: c.ReconnectInterval(),
				ReconnectLogEvery: c.ReconnectLogEvery(),
				Protocol:          nil,
				LogPrefix:         c.LogPrefix + "-Server",
				LogDebug:          c.LogDebug,
			},
			EndpointOptions: &tp.EndpointOptions{
				Arbiter: a,
				Handler: mesh,
				Txid:    tp.ServerSenderID,
				RxidMap: map[byte]struct{}{
					tp.ClientSenderID: {},
				},
				SelfParticipant: selfParticipant,
				SelfID:          mesh.selfID,
				LogPrefix:       c.LogPrefix + "-Server",
				LogDebug:        c.LogDebug,
			},
		},
	)
	if err != nil {
		return nil, err
	}
	mesh.server.protocol.Options().Protocol = mesh.server.protocol

	for index, address := range c.PeerAddressList {
		_, found := mesh.clientMap[address]
		if found {
			err = fmt.Errorf("%s: duplicate address=%s, invalid PeerAddressList=%+v", c.LogPrefix, address, c.PeerAddressList)
			log.Printf("%s", err.Error())
			return nil, err
		}

		client := &ClientStruct{
			protocol:  nil,
			tcpClient: nil,
		}
		logPrefix := fmt.Sprintf("%s-Client-%d", c.LogPrefix, index+1)

		client.protocol, err = tp.NewClient(
			&tp.ClientOptions{
				Options: &tcp.Options{
					Address:           address,
					KeepAliveInterval: c.KeepAliveInterval(),
					KeepAliveCount:    c.KeepAliveCount(),
					DialTimeout:       c.DialTimeout(),
					ReconnectInterval: c.ReconnectInterval(),
					ReconnectLogEvery: c.ReconnectLogEvery(),
					Protocol:          nil,
					LogPrefix:         logPrefix,
					LogDebug:          c.LogDebug,
				},
				EndpointOptions: &tp.EndpointOptions{
					Arbiter: a,
					Handler: mesh,
					Txid:    tp.ClientSenderID,
					RxidMap: map[byte]struct{}{
						tp.ServerSenderID: {},
					},
					SelfParticipant: selfParticipant,
					SelfID:          mesh.selfID,
					LogPrefix:       logPrefix,
					LogDebug:        c.LogDebug,
				},
			},
		)
		if err != nil {
			return nil, err
		}
		client.protocol.Options().Protocol = client.protocol

		mesh.clientMap[address] = client
	}

	return mesh, nil
}

// Start listens and begins dialing every peer. Handlers may fire as soon as
// it returns.
func (mesh *Mesh) Start() error {
	var err error
	defer func() {
		if err != nil {
			mesh.Shutdown() // wait
		}
	}()

	mesh.server.tcpServer, err = tcp.NewTcpServer(mesh.server.protocol.Options().Options)
	if err != nil {
		return err
	}

	for _, address := range mesh.c.PeerAddressList {
		client := mesh.clientMap[address]
		client.tcpClient, err = tcp.NewTcpClient(client.protocol.Options().Options)
		if err != nil {
			return err
		}
	}

	return nil
}

func (mesh *Mesh) Shutdown() {
	if mesh.server != nil &&
		mesh.server.tcpServer != nil {
		mesh.server.tcpServer.Shutdown() // wait
	}

	for _, client := range mesh.clientMap {
		if client.tcpClient != nil {
			client.tcpClient.Shutdown() // wait
		}
	}

	<-time.After(time.Second)
}

func (mesh *Mesh) SelfID() string {
	return mesh.selfID
}

// caller must be on arbiter goroutine
func (mesh *Mesh) PeerIDs() []string {
	peerIDs := make([]string, 0, len(mesh.linkMap))
	for peerID := range mesh.linkMap {
		peerIDs = append(peerIDs, peerID)
	}
	slices.Sort(peerIDs)
	return peerIDs
}

// caller must be on arbiter goroutine
func (mesh *Mesh) Unicast(peerID string, msg *m.Message) error {
	links := mesh.linkMap[peerID]
	if len(links) == 0 {
		err := fmt.Errorf("%s: peer %s not connected, cannot send kind=%s", mesh.c.LogPrefix, peerID, msg.Kind())
		log.Printf("%s", err.Error())
		return err
	}

	return links[0].WriteSync(msg)
}

// Multicast is best-effort: a failed peer is logged and skipped.
// caller must be on arbiter goroutine
func (mesh *Mesh) Multicast(msg *m.Message) {
	for _, peerID := range mesh.PeerIDs() {
		mesh.Unicast(peerID, msg)
	}
}

// invoked on arbiter goroutine
func (mesh *Mesh) ParticipantInit(connState *tp.ConnState, _ *m.ParticipantInit) {
	cvd := connState.Data.Load()
	links := mesh.linkMap[cvd.PeerID]
	mesh.linkMap[cvd.PeerID] = append(links, connState)

	log.Printf("%s: %s: link added, peer has %d link(s)", mesh.c.LogPrefix, cvd.Descriptor, len(links)+1)

	if len(links) == 0 {
		mesh.ph.PeerJoined(cvd.PeerID)
	}
}

// invoked on arbiter goroutine
func (mesh *Mesh) ParticipantExit(connState *tp.ConnState, participantExit *m.ParticipantExit) {
	cvd := connState.Data.Load()
	links, found := mesh.linkMap[cvd.PeerID]
	if !found {
		log.Printf("%s: %s: peer not found", mesh.c.LogPrefix, cvd.Descriptor)
		return
	}

	index := slices.IndexFunc(
		links,
		func(cs *tp.ConnState) bool {
			return cs.ConnID == connState.ConnID && cs == connState
		},
	)
	if index < 0 {
		log.Printf("%s: %s: link not found", mesh.c.LogPrefix, cvd.Descriptor)
		return
	}
	links = slices.Delete(links, index, index+1)

	log.Printf("%s: %s: link removed, inShutdown=%t, peer has %d link(s)", mesh.c.LogPrefix, cvd.Descriptor, participantExit.InShutdown, len(links))

	if len(links) > 0 {
		mesh.linkMap[cvd.PeerID] = links
		return
	}

	delete(mesh.linkMap, cvd.PeerID)
	mesh.ph.PeerLost(cvd.PeerID)
}

// invoked on arbiter goroutine
func (mesh *Mesh) Message(connState *tp.ConnState, msg *m.Message) {
	mesh.ph.Message(connState.Data.Load().PeerID, msg)
}
