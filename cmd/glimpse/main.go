package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"embed"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/glimpse"
	"github.com/TecharoHQ/glimpse/data"
	"github.com/TecharoHQ/glimpse/internal"
	libglimpse "github.com/TecharoHQ/glimpse/lib"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	adminToken               = flag.String("admin-token", "", "token clients must send in X-Admin-Token to use the admin API, the admin API is off if not set")
	basePrefix               = flag.String("base-prefix", "", "base prefix (root URL) the API is served under e.g. /glimpse")
	bind                     = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork              = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	debugRevealAnswers       = flag.Bool("debug-reveal-answers", false, "include the answer key in issued challenges, never enable this in production")
	ed25519PrivateKeyHex     = flag.String("ed25519-private-key-hex", "", "private key used to sign pass tokens, if not set a random one will be assigned")
	ed25519PrivateKeyHexFile = flag.String("ed25519-private-key-hex-file", "", "file name containing value for ed25519-private-key-hex")
	extractPolicy            = flag.String("extract-policy", "", "if set, write the built-in policy to the specified folder and exit")
	gzipLevel                = flag.Int("gzip-level", 1, "gzip compression level for API responses, 0 disables compression")
	healthcheck              = flag.Bool("healthcheck", false, "run a health check against Glimpse")
	hs512Secret              = flag.String("hs512-secret", "", "secret used to sign pass tokens, uses ed25519 if not set")
	metricsBind              = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork       = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	policyFname              = flag.String("policy-fname", "", "full path to glimpse policy document (defaults to a sensible built-in policy)")
	slogLevel                = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode               = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	tokenExpiration          = flag.Duration("token-expiration-time", glimpse.PassTokenExpiration, "how long pass tokens are valid for")
	useRemoteAddress         = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running Glimpse on bare metal")
	versionFlag              = flag.Bool("version", false, "print Glimpse version")
)

func keyFromHex(value string) (ed25519.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("supplied key is not hex-encoded: %w", err)
	}

	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("supplied key is not %d bytes long, got %d bytes", ed25519.SeedSize, len(keyBytes))
	}

	return ed25519.NewKeyFromSeed(keyBytes), nil
}

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + glimpse.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// parseBindNetFromAddr splits a URL-ish bind address into network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") {
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			if err := listener.Close(); err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

// signingKeys resolves the pass token key flags. At most one source may be
// set; with none, the engine generates an ephemeral key.
func signingKeys() (ed25519.PrivateKey, []byte) {
	switch {
	case *hs512Secret != "" && (*ed25519PrivateKeyHex != "" || *ed25519PrivateKeyHexFile != ""):
		log.Fatal("do not specify both HS512 and ED25519 secrets")
	case *hs512Secret != "":
		return nil, []byte(*hs512Secret)
	case *ed25519PrivateKeyHex != "" && *ed25519PrivateKeyHexFile != "":
		log.Fatal("do not specify both ED25519_PRIVATE_KEY_HEX and ED25519_PRIVATE_KEY_HEX_FILE")
	case *ed25519PrivateKeyHex != "":
		priv, err := keyFromHex(*ed25519PrivateKeyHex)
		if err != nil {
			log.Fatalf("failed to parse and validate ED25519_PRIVATE_KEY_HEX: %v", err)
		}
		return priv, nil
	case *ed25519PrivateKeyHexFile != "":
		hexFile, err := os.ReadFile(*ed25519PrivateKeyHexFile)
		if err != nil {
			log.Fatalf("failed to read ED25519_PRIVATE_KEY_HEX_FILE %s: %v", *ed25519PrivateKeyHexFile, err)
		}

		priv, err := keyFromHex(string(bytes.TrimSpace(hexFile)))
		if err != nil {
			log.Fatalf("failed to parse and validate content of ED25519_PRIVATE_KEY_HEX_FILE: %v", err)
		}
		return priv, nil
	}

	slog.Warn("generating random key, pass tokens minted by one Glimpse instance will not verify on another")
	return nil, nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("Glimpse", glimpse.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *extractPolicy != "" {
		if err := extractEmbedFS(data.DefaultPolicy, ".", *extractPolicy); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Extracted built-in policy to %s\n", *extractPolicy)
		return
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}
	glimpse.BasePrefix = *basePrefix

	if *debugRevealAnswers {
		slog.Warn("DEBUG_REVEAL_ANSWERS is set, issued challenges carry their answers")
	}

	policy, err := libglimpse.LoadPoliciesOrDefault(*policyFname)
	if err != nil {
		log.Fatalf("can't parse policy file: %v", err)
	}

	ed25519Priv, hs512 := signingKeys()

	wg := new(sync.WaitGroup)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := libglimpse.New(ctx, libglimpse.Options{
		Policy:            policy,
		ED25519PrivateKey: ed25519Priv,
		HS512Secret:       hs512,
		TokenExpiration:   *tokenExpiration,
		RevealAnswers:     *debugRevealAnswers,
		AdminToken:        *adminToken,
	})
	if err != nil {
		log.Fatalf("can't construct libglimpse.Engine: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	var h http.Handler
	h = libglimpse.NewServer(engine)
	if *gzipLevel > 0 {
		h = internal.GzipMiddleware(*gzipLevel, h)
	}
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)

	srv := http.Server{
		Handler:           h,
		ErrorLog:          internal.GetFilteredHTTPLogger(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", glimpse.Version,
		"policy", *policyFname,
		"policy-hash", policy.Hash(),
		"store", policy.Config().Store.Backend,
		"use-remote-address", *useRemoteAddress,
		"debug-reveal-answers", *debugRevealAnswers,
		"base-prefix", *basePrefix,
		"token-expiration-time", *tokenExpiration,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(glimpse.BasePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	if *healthcheck {
		log.Println("running healthcheck")
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func extractEmbedFS(fsys embed.FS, root string, destDir string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, relPath)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o700)
		}

		embeddedData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		return os.WriteFile(destPath, embeddedData, 0o644)
	})
}
