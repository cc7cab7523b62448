package checkpoint_test

import (
	"bytes"
	"net/url"
	"testing"
	"time"

	"racefeed/internal/checkpoint"
	"racefeed/internal/standardform"
)

func TestRawNamespaceSkipsTransientBodies(t *testing.T) {
	store := checkpoint.New(t.TempDir(), nil)
	key := checkpoint.Key{Platform: "russiarunning", Series: "moscow", Event: "2026"}
	req := checkpoint.Request{URL: "https://api.example.com/results", Params: url.Values{"page": {"1"}}}
	transient := func(body []byte) bool { return bytes.Contains(body, []byte(`"success":false`)) }

	written, err := store.StoreRaw(key, req, []byte(`{"success":false,"message":"Internal error"}`), transient)
	if err != nil || written {
		t.Fatalf("transient body must not be cached: %v %v", written, err)
	}
	if _, ok, _ := store.LoadRaw(key, req); ok {
		t.Fatal("expected cache miss after transient body")
	}

	good := []byte(`{"success":true,"items":[]}`)
	written, err = store.StoreRaw(key, req, good, transient)
	if err != nil || !written {
		t.Fatalf("StoreRaw: %v %v", written, err)
	}
	written, err = store.StoreRaw(key, req, []byte(`{"success":true,"items":[1]}`), transient)
	if err != nil || written {
		t.Fatalf("cached raw entries are immutable: %v %v", written, err)
	}
	data, ok, err := store.LoadRaw(key, req)
	if err != nil || !ok || !bytes.Equal(data, good) {
		t.Fatalf("LoadRaw = %q %v %v", data, ok, err)
	}

	other := req
	other.Params = url.Values{"page": {"2"}}
	if _, ok, _ := store.LoadRaw(key, other); ok {
		t.Fatal("different parameters must address a different entry")
	}
	if _, ok, _ := store.LoadRaw(key.ForRunner("77"), req); ok {
		t.Fatal("runner scope must be separate from event scope")
	}
}

func TestFormNamespaceRoundTrip(t *testing.T) {
	store := checkpoint.New(t.TempDir(), nil)
	key := checkpoint.Key{Platform: "athlinks", Series: "s", Event: "e"}

	if _, ok, err := store.LoadForm(key); ok || err != nil {
		t.Fatalf("expected no form yet: %v %v", ok, err)
	}

	form := standardform.New("athlinks", "s", standardform.Event{PlatformID: "e", Name: "Spring 10K", StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	race := form.AddRace(&standardform.Race{PlatformID: "r1"})
	race.MarkBriefLoaded()
	if err := store.SaveForm(key, form); err != nil {
		t.Fatalf("SaveForm: %v", err)
	}

	loaded, ok, err := store.LoadForm(key)
	if err != nil || !ok {
		t.Fatalf("LoadForm: %v %v", ok, err)
	}
	if !loaded.Race("r1").BriefLoaded() || loaded.Event.Name != "Spring 10K" {
		t.Fatalf("unexpected loaded form: %+v", loaded)
	}

	if err := store.Clear(key); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := store.LoadForm(key); ok {
		t.Fatal("expected form to be cleared")
	}
	if err := store.HealthCheck(); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestKeysDifferingOnlyInCaseOrPunctuationStayApart(t *testing.T) {
	store := checkpoint.New(t.TempDir(), nil)
	save := func(event, name string) checkpoint.Key {
		key := checkpoint.Key{Platform: "mikatiming", Series: "berlin", Event: event}
		form := standardform.New("mikatiming", "berlin", standardform.Event{PlatformID: event, Name: name})
		if err := store.SaveForm(key, form); err != nil {
			t.Fatalf("SaveForm %q: %v", event, err)
		}
		return key
	}
	pairs := [][2]string{{"HCH3C0OH", "hch3c0oh"}, {"2024.1", "2024_1"}}
	for _, pair := range pairs {
		first := save(pair[0], "Event "+pair[0])
		second := save(pair[1], "Event "+pair[1])
		for _, tc := range []struct {
			key  checkpoint.Key
			want string
		}{{first, pair[0]}, {second, pair[1]}} {
			form, ok, err := store.LoadForm(tc.key)
			if err != nil || !ok {
				t.Fatalf("LoadForm %q: %v %v", tc.want, ok, err)
			}
			if form.Event.PlatformID != tc.want {
				t.Fatalf("event %q resumed the form of %q", tc.want, form.Event.PlatformID)
			}
		}
	}
}

func TestClearRemovesRunnerScope(t *testing.T) {
	store := checkpoint.New(t.TempDir(), nil)
	key := checkpoint.Key{Platform: "russiarunning", Series: "s", Event: "e"}
	req := checkpoint.Request{URL: "https://api.example.com/results/9"}
	if _, err := store.StoreRaw(key.ForRunner("9"), req, []byte(`{}`), nil); err != nil {
		t.Fatalf("StoreRaw: %v", err)
	}
	if err := store.Clear(key); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := store.LoadRaw(key.ForRunner("9"), req); ok {
		t.Fatal("runner detail cache survived Clear of its event")
	}
}
