package decaymap

import (
	"testing"
	"time"
)

func TestImpl(t *testing.T) {
	dm := New[string, string]()

	dm.Set("test", "hi", 5*time.Minute)

	val, ok := dm.Get("test")
	if !ok {
		t.Error("somehow the test key was not set")
	}

	if val != "hi" {
		t.Errorf("wanted value %q, got: %q", "hi", val)
	}

	ok = dm.expire("test")
	if !ok {
		t.Fatal("tried to expire existing key, but key did not exist")
	}

	if _, ok := dm.Get("test"); ok {
		t.Error("got value even though it was supposed to be expired")
	}

	dm.Set("test", "hi", 5*time.Minute)
	if !dm.Delete("test") {
		t.Error("wanted Delete to report the key existed")
	}

	if dm.Delete("test") {
		t.Error("wanted second Delete to report the key was gone")
	}
}

func TestCleanup(t *testing.T) {
	dm := New[string, string]()

	dm.Set("test1", "hi1", 1*time.Second)
	dm.Set("test2", "hi2", 2*time.Second)
	dm.Set("test3", "hi3", 5*time.Minute)

	dm.expire("test1")
	dm.expire("test2")

	dm.Cleanup()

	if n := dm.Len(); n != 1 {
		t.Errorf("wanted 1 entry after cleanup, got: %d", n)
	}

	if _, ok := dm.Get("test3"); !ok {
		t.Error("unexpired entry was removed by Cleanup")
	}
}

func TestUpdate(t *testing.T) {
	dm := New[string, int]()

	incr := func(v int, _ bool) int { return v + 1 }

	for i := 1; i <= 3; i++ {
		if got := dm.Update("counter", time.Minute, incr); got != i {
			t.Errorf("update %d: wanted %d, got: %d", i, i, got)
		}
	}

	dm.expire("counter")

	if got := dm.Update("counter", time.Minute, incr); got != 1 {
		t.Errorf("expired counter should restart at 1, got: %d", got)
	}
}
