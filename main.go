package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"yprint/checkout"
	"yprint/config"
	"yprint/handlers"
	"yprint/payment"
	"yprint/wpajax"
)

// Initialize the application
func init() {
	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatal(err)
	}

	if config.Config.AjaxURL == "" {
		log.Fatal(
			"Missing WordPress AJAX URL. Please set YPRINT_AJAX_URL or configure ajaxURL in the config file.",
		)
	}

	if config.GetStripeKey() == "" {
		log.Println("[MainInit] No Stripe Secret Key configured. Running against the in-memory payment SDK.")
	}
}

// buildSDK selects the payment SDK implementation based on configuration.
func buildSDK() payment.SDK {
	key := config.GetStripeKey()
	if key == "" {
		return payment.NewMemorySDK()
	}

	sdk := payment.NewStripeSDK(key)
	log.Println("Stripe SDK initialized successfully")
	return sdk
}

// generateSelfSignedCert creates a self-signed certificate for localhost
func generateSelfSignedCert() (tls.Certificate, error) {
	// Generate a private key
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	// Create certificate template
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"YPrint Development"},
			Country:      []string{"DE"},
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour), // 1 year
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1)},
		DNSNames:    []string{"localhost"},
	}

	// Create the certificate
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
	}, nil
}

// shouldUseHTTPS determines if HTTPS should be used based on websiteName config.
// Browser payment sheets require a secure context, so local testing runs
// behind a self-signed certificate.
func shouldUseHTTPS() bool {
	websiteName := strings.TrimSpace(config.Config.WebsiteName)
	return websiteName == "" || websiteName == "localhost"
}

func main() {
	sdk := buildSDK()
	ajax := wpajax.NewClient(config.Config.AjaxURL, config.Config.AjaxNonce)
	manager := checkout.NewManager(sdk, ajax)
	manager.StartCleanup(context.Background())

	mux := http.NewServeMux()
	handler := handlers.New(manager, ajax)
	handler.RegisterRoutes(mux)

	port := config.Config.Port
	if port == "" {
		port = config.DefaultPort
	}

	// Determine protocol and start appropriate server
	if shouldUseHTTPS() {
		log.Printf(
			"No domain configured (websiteName: '%s') - starting HTTPS server on port %s for local testing...",
			config.Config.WebsiteName,
			port,
		)
		log.Printf("You will need to accept the security warning in your browser for the self-signed certificate")

		// Generate self-signed certificate
		cert, err := generateSelfSignedCert()
		if err != nil {
			log.Fatalf("Failed to generate self-signed certificate: %v", err)
		}

		server := &http.Server{
			Addr:    ":" + port,
			Handler: mux,
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
			},
		}

		log.Fatal(server.ListenAndServeTLS("", ""))
	} else {
		log.Printf("Domain configured (websiteName: '%s') - starting HTTP server on port %s behind reverse proxy...", config.Config.WebsiteName, port)

		log.Fatal(http.ListenAndServe(":"+port, mux))
	}
}
