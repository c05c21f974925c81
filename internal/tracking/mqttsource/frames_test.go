package mqttsource

import (
	"testing"

	"github.com/nerrad567/posebridge/internal/tracking"
)

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		payload string
		online  bool
		wantErr bool
	}{
		{`{"status":"online"}`, true, false},
		{`{"status":"OFFLINE"}`, false, false},
		{`online`, true, false},
		{` "online" `, true, false},
		{``, false, false},
		{`{}`, false, false},
		{`starting`, false, true},
		{`{"status":1}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			online, err := decodeStatus([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeStatus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if online != tt.online {
				t.Errorf("decodeStatus() = %v, want %v", online, tt.online)
			}
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"orientation":{"w":0,"x":1,"y":0,"z":0},"buttons":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if frame.Orientation != (tracking.Quaternion{X: 1}) {
		t.Errorf("Orientation = %+v", frame.Orientation)
	}
	if frame.Buttons != 3 {
		t.Errorf("Buttons = %d", frame.Buttons)
	}
}

func TestDecodeList_DropsNegativeIDs(t *testing.T) {
	ids, err := decodeList([]byte(`[2, -1, 0]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 0 {
		t.Errorf("decodeList() = %v, want [2 0]", ids)
	}
}
