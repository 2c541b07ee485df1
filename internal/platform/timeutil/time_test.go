package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestMarshalJSONFixedMillis(t *testing.T) {
	ts := NewTime(time.Date(2025, 3, 10, 12, 15, 0, 0, time.FixedZone("TRT", 3*60*60)))

	got, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(got) != `"2025-03-10T09:15:00.000Z"` {
		t.Fatalf("unexpected JSON %s", got)
	}
}

func TestUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"millis", `"2025-03-10T09:15:00.123Z"`, time.Date(2025, 3, 10, 9, 15, 0, 123e6, time.UTC), false},
		{"no fraction", `"2025-03-10T09:15:00Z"`, time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC), false},
		{"offset", `"2025-03-10T12:15:00+03:00"`, time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC), false},
		{"garbage", `"yesterday"`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got.Time, tt.want)
			}
		})
	}
}

func TestUnmarshalJSONNullKeepsValue(t *testing.T) {
	orig := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	got := NewTime(orig)
	if err := json.Unmarshal([]byte("null"), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(orig) {
		t.Fatalf("null changed the value to %v", got.Time)
	}
}

func TestCBORRoundTripUsesText(t *testing.T) {
	ts := NewTime(time.Date(2025, 3, 10, 9, 15, 0, 5e6, time.UTC))

	data, err := cbor.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		t.Fatalf("expected a CBOR text string: %v", err)
	}
	if s != "2025-03-10T09:15:00.005Z" {
		t.Fatalf("unexpected CBOR text %q", s)
	}

	var back Time
	if err := cbor.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(ts.Time) {
		t.Fatalf("got %v, want %v", back.Time, ts.Time)
	}
}

func TestFromPtr(t *testing.T) {
	if FromPtr(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	now := time.Now()
	got := FromPtr(&now)
	if got == nil || !got.Equal(now) {
		t.Fatalf("unexpected %v", got)
	}
}
