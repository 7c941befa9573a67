package harness

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

const certValidity = 24 * time.Hour

// Certificates holds an ephemeral CA and a server certificate chain generated
// for one harness run. The PEM files are written to disk so that a client's
// sslrootcert option can point at them; removal is registered on the owning
// ResourceStack.
type Certificates struct {
	ServerHost string

	caCertPath string
	serverTLS  tls.Certificate
}

// GenerateCertificates creates the CA and server certificates. The server
// certificate is valid for "localhost" and the loopback addresses.
func GenerateCertificates(stack *ResourceStack) (*Certificates, error) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating CA key: %w", err)
	}
	caTemplate, err := certTemplate("libpq test harness CA", true)
	if err != nil {
		return nil, err
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("creating CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating server key: %w", err)
	}
	serverTemplate, err := certTemplate("localhost", false)
	if err != nil {
		return nil, err
	}
	serverTemplate.DNSNames = []string{"localhost"}
	serverTemplate.IPAddresses = []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTemplate, caCert, &serverKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("creating server certificate: %w", err)
	}

	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	serverPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: serverDER})
	keyDER, err := x509.MarshalECPrivateKey(serverKey)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	caPath, err := writeTempFile(stack, "libpq-harness-ca*.pem", caPEM)
	if err != nil {
		return nil, err
	}

	serverPair, err := tls.X509KeyPair(serverPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("assembling server key pair: %w", err)
	}

	return &Certificates{
		ServerHost: "localhost",
		caCertPath: caPath,
		serverTLS:  serverPair,
	}, nil
}

// CACertPath is the path of the PEM file holding the CA certificate, for use
// as a client's sslrootcert.
func (c *Certificates) CACertPath() string { return c.caCertPath }

// ServerTLSConfig returns a TLS configuration for the mock server side of an
// upgraded connection.
func (c *Certificates) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.serverTLS},
		MinVersion:   tls.VersionTLS12,
	}
}

func certTemplate(commonName string, isCA bool) (*x509.Certificate, error) {
	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("generating certificate serial: %w", err)
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"libpq test harness"},
			CommonName:   commonName,
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  isCA,
	}
	if isCA {
		template.KeyUsage |= x509.KeyUsageCertSign
	}
	return template, nil
}

func writeTempFile(stack *ResourceStack, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	stack.Push(fmt.Sprintf("temp file %s", name), func() error {
		return os.Remove(name)
	})
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", err
	}
	return name, f.Close()
}
