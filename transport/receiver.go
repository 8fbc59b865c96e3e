package transport

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/m-lab/go/logx"
	"github.com/sqlalchemy/collectd-pool/metrics"
	"github.com/sqlalchemy/collectd-pool/protocol"
)

// MaxDatagramSize is the largest UDP payload this server will read,
// matching the collectd default.
const MaxDatagramSize = protocol.MaxPacketSize

// Receiver listens on a UDP socket for collectd packets, decodes them,
// and publishes successfully decoded Values on ValuesC. It is the
// server-side counterpart to Client, adapted from eventsocket.Server's
// Listen/Serve(ctx) shape (Unix-socket pub-sub) to a UDP recvfrom loop.
type Receiver struct {
	decoder *protocol.Decoder
	ValuesC chan *protocol.Values

	// Forward, if non-nil, receives a copy of every raw datagram
	// regardless of whether it decodes successfully (spec.md §11
	// supplemented "monitor" forwarding tap).
	Forward *Client

	conn      *net.UDPConn
	servingWG sync.WaitGroup

	errEvery *logx.LogEvery
}

// NewReceiver builds a Receiver that accepts the given known types.
func NewReceiver(decoder *protocol.Decoder) *Receiver {
	return &Receiver{
		decoder:  decoder,
		ValuesC:  make(chan *protocol.Values, 100),
		errEvery: logx.NewLogEvery(nil, time.Second),
	}
}

// Listen binds the UDP socket. Call Serve afterward to start reading.
func (r *Receiver) Listen(addr string) error {
	r.servingWG.Add(1)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	r.conn = conn
	return nil
}

// Serve reads datagrams until ctx is canceled, decoding each one and
// publishing it to ValuesC. Malformed packets are logged (rate
// limited) and dropped, never fatal to the loop (spec.md §7: decode
// errors are an ordinary, not fatal, error class).
func (r *Receiver) Serve(ctx context.Context) error {
	defer r.servingWG.Done()
	go func() {
		<-ctx.Done()
		r.conn.Close()
		close(r.ValuesC)
	}()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("receiver: read error: %v", err)
			return err
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])

		if r.Forward != nil {
			if err := r.Forward.Send(raw); err != nil {
				log.Printf("receiver: forward failed: %v", err)
			}
		}

		v, err := r.decoder.Decode(raw)
		if err != nil {
			metrics.DecodeErrorCount.With(labelsFor(err)).Inc()
			r.errEvery.Println("receiver: decode error (rate limited):", err)
			continue
		}
		metrics.PacketsReceivedCount.With(map[string]string{"type": v.Type}).Inc()
		r.ValuesC <- v
	}
}

// Close stops accepting new reads and waits for Serve to return.
func (r *Receiver) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
	r.servingWG.Wait()
}

func labelsFor(err error) map[string]string {
	return map[string]string{"reason": err.Error()}
}
