package valkey

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/TecharoHQ/glimpse/internal"
	"github.com/TecharoHQ/glimpse/lib/store/storetest"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startValkey runs a throwaway valkey server and returns its URL.
func startValkey(t *testing.T) string {
	t.Helper()

	if os.Getenv("DONT_USE_NETWORK") != "" {
		t.Skip("test requires network egress")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
	internal.UnbreakDocker()

	ctr, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "valkey/valkey:8",
			WaitingFor: wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatal(err)
	}

	ip, err := ctr.ContainerIP(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	return fmt.Sprintf("redis://%s:6379/0", ip)
}

func TestImpl(t *testing.T) {
	cfg, err := json.Marshal(Config{
		URL:    startValkey(t),
		Prefix: "glimpse-test:",
	})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, cfg)
}
