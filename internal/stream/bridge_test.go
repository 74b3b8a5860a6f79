package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/anchor-live/internal/call"
	"github.com/ashureev/anchor-live/internal/history"
	"github.com/coder/websocket"
)

func TestBridgeDeviceAcquisition(t *testing.T) {
	tests := []struct {
		name    string
		mic     bool
		camera  bool
		wantMic bool
		wantCam bool
	}{
		{"both granted", true, true, true, true},
		{"camera denied", true, false, true, false},
		{"microphone denied", false, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBridge(nil, nil)
			b.setDevices(tt.mic, tt.camera)

			_, micErr := b.AcquireMicrophone(context.Background())
			if (micErr == nil) != tt.wantMic {
				t.Errorf("AcquireMicrophone error = %v, want granted=%v", micErr, tt.wantMic)
			}
			_, camErr := b.AcquireCamera(context.Background())
			if (camErr == nil) != tt.wantCam {
				t.Errorf("AcquireCamera error = %v, want granted=%v", camErr, tt.wantCam)
			}
		})
	}
}

func TestBridgePushesOverWebSocket(t *testing.T) {
	done := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		b := newBridge(conn, nil)
		if err := b.Join(context.Background(), "session_abc", "12345"); err != nil {
			t.Errorf("Join: %v", err)
		}
		b.Caption(call.TargetCall, history.Entry{
			Role:       history.RoleUser,
			Text:       "hello",
			DisplayKey: "user-turn-1-S1",
		}, false)
		b.ErrorMessage("Camera access denied.")
		<-done
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	defer close(done)

	read := func() map[string]any {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return msg
	}

	join := read()
	if join["type"] != "join" || join["channel"] != "session_abc" || join["uid"] != "12345" {
		t.Errorf("join command = %v, want channel and uid", join)
	}

	caption := read()
	if caption["type"] != "caption" || caption["target"] != "call" {
		t.Errorf("caption = %v, want call-target caption", caption)
	}
	if caption["key"] != "user-turn-1-S1" || caption["text"] != "hello" {
		t.Errorf("caption = %v, want keyed entry", caption)
	}
	if caption["updated"] != false {
		t.Errorf("caption updated = %v, want false", caption["updated"])
	}

	errMsg := read()
	if errMsg["type"] != "error" || errMsg["text"] != "Camera access denied." {
		t.Errorf("error message = %v", errMsg)
	}
}
