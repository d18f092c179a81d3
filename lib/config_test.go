package lib

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TecharoHQ/glimpse/lib/policy"
	"github.com/TecharoHQ/glimpse/lib/store/memory"
)

func TestDefaultPolicy(t *testing.T) {
	pol, err := LoadPoliciesOrDefault("")
	if err != nil {
		t.Fatal(err)
	}

	if len(pol.Flags) == 0 {
		t.Error("default policy has no flags")
	}
}

func TestMissingPolicyFile(t *testing.T) {
	if _, err := LoadPoliciesOrDefault(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("loading a missing file should fail")
	}
}

func TestBadConfigs(t *testing.T) {
	finfos, err := os.ReadDir("policy/config/testdata/bad")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			if _, err := LoadPoliciesOrDefault(filepath.Join("policy", "config", "testdata", "bad", st.Name())); err == nil {
				t.Fatal("config should not load")
			} else {
				t.Log(err)
			}
		})
	}
}

func TestGoodConfigs(t *testing.T) {
	finfos, err := os.ReadDir("policy/config/testdata/good")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			pol, err := LoadPoliciesOrDefault(filepath.Join("policy", "config", "testdata", "good", st.Name()))
			if err != nil {
				t.Fatal(err)
			}

			if _, err := New(t.Context(), Options{Policy: pol, Store: memory.New(t.Context())}); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestNewWithoutPolicy(t *testing.T) {
	if _, err := New(t.Context(), Options{}); err == nil {
		t.Fatal("New without a policy should fail")
	}
}

func TestNewHS512(t *testing.T) {
	pol, err := policy.ParseConfig(strings.NewReader(noRateLimit), "hs512.yaml")
	if err != nil {
		t.Fatal(err)
	}

	e, err := New(t.Context(), Options{Policy: pol, HS512Secret: []byte("correct horse battery staple")})
	if err != nil {
		t.Fatal(err)
	}

	if e.tokens.method().Alg() != "HS512" {
		t.Errorf("signing with %s, want HS512", e.tokens.method().Alg())
	}
}
