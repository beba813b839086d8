// Package testutil provides a scripted key transparency directory
// that tests can run client transports against, along with helpers
// for generating throwaway TLS certificates.
package testutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"io/ioutil"
	"math/big"
	"net"
	"os"
	"path"
	"testing"
	"time"

	"github.com/keytrans-sys/keytrans-go/application"
	"github.com/keytrans-sys/keytrans-go/protocol"
)

// TestDir is the prefix of the temporary directories holding the
// scripted directory's socket and certificate files.
const TestDir = "keytransDirectoryTest"

// CreateTLSCert generates a self-signed certificate for 127.0.0.1
// and writes it with its key to directory.pem and directory.key in
// the given directory.
func CreateTLSCert(dir string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(1 * time.Hour)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"keytrans-sys"},
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,

		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	template.Subject.CommonName = "localhost"
	template.IPAddresses = append(template.IPAddresses, net.ParseIP("127.0.0.1"))

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(path.Join(dir, "directory.pem"))
	if err != nil {
		return err
	}
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	certOut.Close()

	keyOut, err := os.OpenFile(path.Join(dir, "directory.key"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	b, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	pemBlock := &pem.Block{Type: "EC PRIVATE KEY", Bytes: b}
	pem.Encode(keyOut, pemBlock)
	keyOut.Close()
	return nil
}

// CreateTLSCertForTest generates a certificate in a temporary
// directory and returns the directory along with a teardown function.
func CreateTLSCertForTest(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", TestDir)
	if err != nil {
		t.Fatal(err)
	}
	err = CreateTLSCert(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, func() {
		os.RemoveAll(dir)
	}
}

// A DirectoryHandler scripts the directory's side of one round trip.
type DirectoryHandler func(req *protocol.Request) *protocol.Response

// RunUnixDirectory starts a scripted directory listening on a unix
// socket in a temporary directory. It returns the directory's address
// url and a teardown function.
func RunUnixDirectory(t *testing.T, handler DirectoryHandler) (string, func()) {
	dir, err := ioutil.TempDir("", TestDir)
	if err != nil {
		t.Fatal(err)
	}
	sock := path.Join(dir, "directory.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	go serve(ln, handler)
	return "unix://" + sock, func() {
		ln.Close()
		os.RemoveAll(dir)
	}
}

// RunTCPDirectory starts a scripted directory listening behind TLS on
// an ephemeral local port. It returns the directory's address url,
// the path of the certificate to pin, and a teardown function.
func RunTCPDirectory(t *testing.T, handler DirectoryHandler) (string, string, func()) {
	dir, teardownCert := CreateTLSCertForTest(t)
	cer, err := tls.LoadX509KeyPair(path.Join(dir, "directory.pem"),
		path.Join(dir, "directory.key"))
	if err != nil {
		teardownCert()
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		teardownCert()
		t.Fatal(err)
	}
	tlsLn := tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cer}})
	go serve(tlsLn, handler)
	return "tcp://" + ln.Addr().String(), path.Join(dir, "directory.pem"), func() {
		tlsLn.Close()
		teardownCert()
	}
}

func serve(ln net.Listener, handler DirectoryHandler) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go answer(conn, handler)
	}
}

func answer(conn net.Conn, handler DirectoryHandler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, 8192); err != nil && err != io.EOF {
		return
	}

	var response *protocol.Response
	req, err := application.UnmarshalRequest(buf.Bytes())
	if err != nil {
		response = protocol.NewErrorResponse(protocol.ErrMalformedClientRequest)
	} else {
		response = handler(req)
	}

	res, err := application.MarshalResponse(response)
	if err != nil {
		panic(err)
	}
	conn.Write(res)
}
