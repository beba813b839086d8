package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/url"
	"time"

	"github.com/keytrans-sys/keytrans-go/application"
	"github.com/keytrans-sys/keytrans-go/protocol"
)

// maxResponseLength bounds how many bytes of one directory response
// the client is willing to buffer.
const maxResponseLength = 8192

// DirectoryConn talks to a key transparency directory over one
// short-lived connection per round trip and hands every response to a
// Verifier, so the protocol layer above only ever sees verified bytes.
//
// TCP connections always use TLS. Unix socket connections are meant
// for a directory running on the same host, typically in tests.
type DirectoryConn struct {
	addr     *url.URL
	timeout  time.Duration
	tlsConf  *tls.Config
	verifier Verifier
}

// NewDirectoryConn constructs a connection factory for the directory
// address in conf, verifying responses with the given verifier.
func NewDirectoryConn(conf *Config, verifier Verifier) (*DirectoryConn, error) {
	u, err := url.Parse(conf.Address)
	if err != nil {
		return nil, fmt.Errorf("Invalid directory address: %v", err)
	}
	d := &DirectoryConn{
		addr:     u,
		timeout:  time.Duration(conf.RequestTimeout) * time.Second,
		verifier: verifier,
	}
	switch u.Scheme {
	case "tcp":
		if conf.TLSCertPath == "" {
			d.tlsConf = &tls.Config{InsecureSkipVerify: true}
			break
		}
		pem, err := ioutil.ReadFile(conf.TLSCertPath)
		if err != nil {
			return nil, fmt.Errorf("Cannot read directory certificate: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("Cannot parse directory certificate %s",
				conf.TLSCertPath)
		}
		d.tlsConf = &tls.Config{RootCAs: pool}
	case "unix":
	default:
		return nil, fmt.Errorf("Unknown network type %q", u.Scheme)
	}
	return d, nil
}

// Distinguished performs one verified distinguished round trip and
// returns the signed head as bytes for the record store. last carries
// the stored head to prove consistency from, and is nil on the
// client's very first contact with the directory.
func (d *DirectoryConn) Distinguished(ctx context.Context, last []byte) ([]byte, error) {
	msg, err := CreateDistinguishedMsg(last)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrMalformedClientRequest, err)
	}
	res, err := d.roundTrip(ctx, msg)
	if err != nil {
		return nil, err
	}
	return d.verifier.VerifyDistinguished(
		application.UnmarshalResponse(protocol.DistinguishedType, res))
}

// Search performs one verified search round trip and returns the
// signed account state as bytes for the record store.
func (d *DirectoryConn) Search(ctx context.Context, req *protocol.SearchRequest) ([]byte, error) {
	msg, err := CreateSearchMsg(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrMalformedClientRequest, err)
	}
	res, err := d.roundTrip(ctx, msg)
	if err != nil {
		return nil, err
	}
	return d.verifier.VerifySearch(req,
		application.UnmarshalResponse(protocol.SearchType, res))
}

// Monitor performs one verified monitor round trip. It returns either
// the signed extended account state, or changed=true when the
// directory signaled that the account's history cannot be extended
// and the caller has to fall back to a full search.
func (d *DirectoryConn) Monitor(ctx context.Context, req *protocol.MonitorRequest) ([]byte, bool, error) {
	msg, err := CreateMonitorMsg(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", protocol.ErrMalformedClientRequest, err)
	}
	res, err := d.roundTrip(ctx, msg)
	if err != nil {
		return nil, false, err
	}
	return d.verifier.VerifyMonitor(req,
		application.UnmarshalResponse(protocol.MonitorType, res))
}

// roundTrip dials the directory, writes one request and reads one
// response. The context aborts the round trip at any point, including
// mid-read.
func (d *DirectoryConn) roundTrip(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	var network, address string
	switch d.addr.Scheme {
	case "tcp":
		network, address = "tcp", d.addr.Host
	case "unix":
		network, address = "unix", d.addr.Path
	}
	dialer := &net.Dialer{Timeout: d.timeout}
	rawConn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", protocol.ErrTransportInactive, err)
	}
	defer rawConn.Close()
	rawConn.SetDeadline(time.Now().Add(d.timeout))

	// unblock in-flight reads and writes when the caller aborts
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			rawConn.SetDeadline(time.Now())
		case <-watchDone:
		}
	}()

	conn := net.Conn(rawConn)
	if d.tlsConf != nil {
		conn = tls.Client(rawConn, d.tlsConf)
	}

	if _, err := conn.Write(msg); err != nil {
		return nil, ioError(ctx, err)
	}
	if c, ok := conn.(interface {
		CloseWrite() error
	}); ok {
		c.CloseWrite()
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, maxResponseLength); err != nil && err != io.EOF {
		return nil, ioError(ctx, err)
	}
	return buf.Bytes(), nil
}

// ioError classifies a failure after the connection was established:
// the caller aborting wins over whatever error the dying connection
// surfaced.
func ioError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cancelled(ctx.Err())
	}
	return fmt.Errorf("%w: %v", protocol.ErrIO, err)
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %v", protocol.ErrCancelled, err)
}
