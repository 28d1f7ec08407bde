package statusd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleStatusReflectsUpdate(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	s.Update("nfcapd.current", 5, 500, 480)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.handleStatus(rr, req)

	var got Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	want := Snapshot{CurrentFile: "nfcapd.current", Blocks: 5, Records: 500, Anonymized: 480}
	if got != want {
		t.Fatalf("handleStatus = %+v, want %+v", got, want)
	}
}

func TestHandleHealthz(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.handleHealthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handleHealthz status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestNilServerMethodsAreNoOps(t *testing.T) {
	var s *Server
	s.Update("x", 1, 1, 1)
	if err := s.Shutdown(nil); err != nil {
		t.Fatalf("Shutdown on nil *Server returned an error: %v", err)
	}
}
