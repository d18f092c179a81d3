package valkey

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/TecharoHQ/glimpse/lib/store"
)

func TestFactoryValid(t *testing.T) {
	for _, tt := range []struct {
		name string
		data string
		err  error
	}{
		{
			name: "not json",
			data: `}`,
			err:  store.ErrBadConfig,
		},
		{
			name: "no url",
			data: `{}`,
			err:  ErrNoURL,
		},
		{
			name: "bad scheme",
			data: `{"url": "http://valkey:6379"}`,
			err:  ErrBadURL,
		},
		{
			name: "ok",
			data: `{"url": "redis://valkey:6379/0", "prefix": "edge:"}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := (Factory{}).Valid(json.RawMessage(tt.data)); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}
