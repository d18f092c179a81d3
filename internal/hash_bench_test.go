package internal

import (
	"fmt"
	"testing"
)

var clientKeys = []string{
	"198.51.100.7",
	"203.0.113.42",
	"2001:db8::1",
	"10.0.0.15",
	"session:0190d0b8-7a4c-7c1e-9f1a-3e0c2b3a4d5e",
}

func BenchmarkSHA256_ClientKeys(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = SHA256sum(clientKeys[i%len(clientKeys)])
	}
}

func BenchmarkFastHash_ClientKeys(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = FastHash(clientKeys[i%len(clientKeys)])
	}
}

func TestFastHashCollisions(t *testing.T) {
	seen := map[string]string{}

	check := func(input string) {
		hash := FastHash(input)
		if existing, ok := seen[hash]; ok {
			t.Errorf("collision: %q and %q both hash to %s", input, existing, hash)
		}
		seen[hash] = input
	}

	for _, k := range clientKeys {
		check(k)
	}

	for _, pattern := range []string{"192.168.1.%d", "10.0.%d.1", "fail:%d", "lock:%d"} {
		for i := range 10000 {
			check(fmt.Sprintf(pattern, i))
		}
	}
}

func TestFastHashFormat(t *testing.T) {
	for _, input := range append([]string{""}, clientKeys...) {
		hash := FastHash(input)

		if len(hash) == 0 || len(hash) > 16 {
			t.Errorf("FastHash(%q) has bad length: %q", input, hash)
		}

		for _, c := range hash {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				t.Errorf("FastHash(%q) = %q contains non-hex %c", input, hash, c)
			}
		}
	}
}

func TestSHA256sumBytes(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	if got := SHA256sumBytes([]byte("abc")); got != want {
		t.Errorf("SHA256sumBytes: got %s, want %s", got, want)
	}

	if got := SHA256sum("abc"); got != want {
		t.Errorf("SHA256sum: got %s, want %s", got, want)
	}
}
