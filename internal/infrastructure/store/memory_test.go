package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kitchenstock/scanner/internal/domain"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value []byte
	}{
		{name: "store and retrieve json", key: "correction:tomate", value: []byte(`{"productId":"p1"}`)},
		{name: "store and retrieve accented key", key: "correction:crème", value: []byte("x")},
		{name: "store empty value", key: "empty", value: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Put(ctx, tt.key, tt.value); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := store.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != string(tt.value) {
				t.Errorf("Get() = %q, want %q", got, tt.value)
			}
		})
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "k", []byte("one"))
	store.Put(ctx, "k", []byte("two"))

	got, _ := store.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("Get() = %q, want two", got)
	}
	if keys, _ := store.Keys(ctx, ""); len(keys) != 1 {
		t.Errorf("Keys() = %v, want one key", keys)
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	value := []byte("abc")
	store.Put(ctx, "k", value)
	value[0] = 'z'

	got, _ := store.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value changed through caller slice: %q", got)
	}

	got[1] = 'z'
	again, _ := store.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value changed through returned slice: %q", again)
	}
}

func TestMemoryStore_Keys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, k := range []string{"correction:tomate", "other:x", "correction:ail", "correction:oignon"} {
		store.Put(ctx, k, []byte("v"))
	}

	keys, err := store.Keys(ctx, "correction:")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}

	want := []string{"correction:ail", "correction:oignon", "correction:tomate"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if _, err := store.Keys(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Keys() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_Concurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 100
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id)
			store.Put(ctx, key, []byte(key))
			store.Get(ctx, key)
			store.Keys(ctx, "key-")
		}(i)
	}

	wg.Wait()

	keys, err := store.Keys(ctx, "key-")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != goroutines {
		t.Errorf("len(Keys()) = %d, want %d", len(keys), goroutines)
	}
}
