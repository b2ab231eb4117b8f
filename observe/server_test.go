package observe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSource struct{ stats Stats }

func (f fakeSource) Stats() Stats { return f.stats }

func TestHandleStatusReturnsCurrentSnapshot(t *testing.T) {
	s := NewServer(fakeSource{})
	s.state.update(Stats{ServerSeq: 4, ClientCount: 2, Connections: 1})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (Stats{ServerSeq: 4, ClientCount: 2, Connections: 1}) {
		t.Fatalf("got %+v", got)
	}
}

func TestRunReturnsImmediatelyWhenAddrEmpty(t *testing.T) {
	s := NewServer(fakeSource{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Run(ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestStateUpdateKeepsLatestStatsAcrossRepeatedUpdates(t *testing.T) {
	st := newState()
	st.update(Stats{ServerSeq: 1})
	if got := st.snapshot(); got.ServerSeq != 1 {
		t.Fatalf("got %+v", got)
	}
	st.update(Stats{ServerSeq: 1})
	if got := st.snapshot(); got.ServerSeq != 1 {
		t.Fatalf("got %+v", got)
	}
}
