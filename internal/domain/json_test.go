package domain

import (
	"testing"
)

func TestStringList_ValueScan(t *testing.T) {
	in := StringList{"products: timeout", "pages: 401"}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != `["products: timeout","pages: 401"]` {
		t.Fatalf("Value = %v", v)
	}

	var out StringList
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("round trip = %v", out)
	}
}

func TestStringList_NilIsEmptyArray(t *testing.T) {
	var l StringList
	v, err := l.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "[]" {
		t.Fatalf("nil list must store as [], got %v", v)
	}
}

func TestStringList_ScanEdgeCases(t *testing.T) {
	var l StringList
	if err := l.Scan(nil); err != nil || l != nil {
		t.Fatalf("nil source: err=%v list=%v", err, l)
	}
	if err := l.Scan([]byte(`["a"]`)); err != nil || len(l) != 1 {
		t.Fatalf("bytes source: err=%v list=%v", err, l)
	}
	if err := l.Scan(""); err != nil {
		t.Fatalf("empty string source: %v", err)
	}
	if err := l.Scan(42); err == nil {
		t.Fatal("integer source must be rejected")
	}
}

func TestJSONMap_ValueScan(t *testing.T) {
	in := JSONMap{"model": "keyword-matcher", "contextDocs": 2}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out JSONMap
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out["model"] != "keyword-matcher" {
		t.Fatalf("round trip = %v", out)
	}
	// JSON numbers widen to float64 on the way back.
	if n, ok := out["contextDocs"].(float64); !ok || n != 2 {
		t.Fatalf("contextDocs = %v (%T)", out["contextDocs"], out["contextDocs"])
	}
}

func TestJSONMap_NilStoresNULL(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != nil {
		t.Fatalf("nil map must store as NULL, got %v", v)
	}

	var out JSONMap
	if err := out.Scan(nil); err != nil || out != nil {
		t.Fatalf("nil source: err=%v map=%v", err, out)
	}
}

func TestPlanUnlimitedSentinel(t *testing.T) {
	p := Plan{MaxConversations: UnlimitedQuota, MaxMessages: 100}
	if !p.UnlimitedConversations() {
		t.Fatal("-1 conversations must be unlimited")
	}
	if p.UnlimitedMessages() {
		t.Fatal("100 messages is a cap")
	}
}

func TestIngestionJobTerminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		JobRunning:   false,
		JobCompleted: true,
		JobFailed:    true,
	} {
		j := IngestionJob{Status: status}
		if j.Terminal() != terminal {
			t.Errorf("Terminal(%q) = %v", status, j.Terminal())
		}
	}
}
