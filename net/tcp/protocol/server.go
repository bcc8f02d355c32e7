package protocol

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/Meander-Cloud/go-transport/tcp"
)

type ServerOptions struct {
	*tcp.Options
	*EndpointOptions
}

// Server is the accepting side of the mesh; go-transport invokes ReadLoop on
// a fresh goroutine for every accepted connection.
type Server struct {
	options *ServerOptions
	ep      *endpoint

	mutex   sync.Mutex
	connMap map[uint32]*ConnState // connID -> tcp connection state
}

func NewServer(options *ServerOptions) (*Server, error) {
	ep, err := newEndpoint(options.EndpointOptions)
	if err != nil {
		return nil, err
	}

	p := &Server{
		options: options,
		ep:      ep,

		mutex:   sync.Mutex{},
		connMap: make(map[uint32]*ConnState),
	}

	return p, nil
}

func (p *Server) Options() *ServerOptions {
	return p.options
}

func (p *Server) Close() {
	log.Printf("%s: protocol closing", p.ep.LogPrefix)
	p.ep.inShutdown.Store(true)

	var connSlice []*ConnState
	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		for _, connState := range p.connMap {
			connSlice = append(connSlice, connState)
		}
	}()

	// notify peers, then one second grace period
	for _, connState := range connSlice {
		connState.Ready.Store(false)
		p.ep.sendParticipantExit(connState)
	}
	<-time.After(time.Second)

	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		for _, connState := range p.connMap {
			connState.Conn.Close()
		}
	}()

	log.Printf("%s: protocol closed", p.ep.LogPrefix)
}

func (p *Server) ReadLoop(conn net.Conn) {
	connState := p.ep.newConnState(conn, "<-")

	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		p.connMap[connState.ConnID] = connState
	}()

	defer func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		delete(p.connMap, connState.ConnID)
	}()

	p.ep.serve(connState, false)
}

// invoked on any goroutine
func (p *Server) CheckConnection(connID uint32) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	connState, found := p.connMap[connID]
	if !found {
		return false
	}

	return connState.Ready.Load()
}

// invoked on any goroutine
func (p *Server) GetConnection(connID uint32) (*ConnState, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	connState, found := p.connMap[connID]
	if !found {
		err := fmt.Errorf("%s: connID=%d not found", p.ep.LogPrefix, connID)
		log.Printf("%s", err.Error())
		return nil, err
	}
	if !connState.Ready.Load() {
		err := fmt.Errorf("%s: %s: connection not ready", p.ep.LogPrefix, connState.Data.Load().Descriptor)
		log.Printf("%s", err.Error())
		return nil, err
	}

	return connState, nil
}
