package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"growcore/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	info, err := store.Put(ctx, "reports/a.json", strings.NewReader(`{"ok":true}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"scenario": "s1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"ok":true}`)) || info.ContentType != "application/json" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := store.Put(ctx, "reports/a.json", strings.NewReader("dup"), core.PutOptions{}); err == nil {
		t.Fatal("expected create-only semantics")
	}

	got, rc, err := store.Get(ctx, "reports/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", body)
	}
	if got.Metadata["scenario"] != "s1" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}

	head, err := store.Head(ctx, "reports/a.json")
	if err != nil || head.Size != info.Size {
		t.Fatalf("head: %+v err=%v", head, err)
	}

	if _, err := store.PresignURL(ctx, "reports/a.json", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	ok, err := store.Delete(ctx, "reports/a.json")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, "reports/a.json")
	if err != nil || ok {
		t.Fatalf("second delete must report absence: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreListOrdersByKey(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"reports/c", "reports/a", "reports/b", "other/x"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(infos))
	}
	for i, want := range []string{"reports/a", "reports/b", "reports/c"} {
		if infos[i].Key != want {
			t.Fatalf("expected key %q at %d, got %q", want, i, infos[i].Key)
		}
	}
}
