package protocol

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/Meander-Cloud/go-transport/tcp"
)

type ClientOptions struct {
	*tcp.Options
	*EndpointOptions
}

// Client is the dialing side of the mesh; go-transport invokes ReadLoop
// synchronously and redials once it returns.
type Client struct {
	options           *ClientOptions
	ep                *endpoint
	defaultDescriptor string

	mutex     sync.Mutex
	connState *ConnState // current active tcp connection, if any
}

func NewClient(options *ClientOptions) (*Client, error) {
	ep, err := newEndpoint(options.EndpointOptions)
	if err != nil {
		return nil, err
	}

	p := &Client{
		options: options,
		ep:      ep,
		defaultDescriptor: fmt.Sprintf(
			"%s-><%s>",
			options.SelfID,
			options.Address,
		),

		mutex:     sync.Mutex{},
		connState: nil,
	}

	return p, nil
}

func (p *Client) Options() *ClientOptions {
	return p.options
}

func (p *Client) Close() {
	log.Printf("%s: %s: protocol closing", p.ep.LogPrefix, p.defaultDescriptor)
	p.ep.inShutdown.Store(true)

	var connState *ConnState
	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		connState = p.connState
	}()

	if connState == nil {
		log.Printf("%s: %s: no active connection", p.ep.LogPrefix, p.defaultDescriptor)
		return
	}

	// notify peer, then one second grace period
	connState.Ready.Store(false)
	p.ep.sendParticipantExit(connState)
	<-time.After(time.Second)

	connState.Conn.Close()
	log.Printf("%s: %s: protocol closed", p.ep.LogPrefix, p.defaultDescriptor)
}

func (p *Client) ReadLoop(conn net.Conn) {
	connState := p.ep.newConnState(conn, "->")

	func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.connState != nil {
			log.Printf("%s: %s: overriding stale connection %s", p.ep.LogPrefix, connState.Data.Load().Descriptor, p.connState.Data.Load().Descriptor)
		}
		p.connState = connState
	}()

	defer func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()

		if p.connState != nil && p.connState.ConnID == connState.ConnID {
			p.connState = nil
		}
	}()

	p.ep.serve(connState, true)
}

// invoked on any goroutine
func (p *Client) CheckConnection() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.connState == nil {
		return false
	}

	return p.connState.Ready.Load()
}
