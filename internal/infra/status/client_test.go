package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

func TestReadStatus_DecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scans/scan-1", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "completed",
			"messages_scanned": 512,
			"included": [
				{"message_id": "m1", "match_score": 0.93, "matched_claim": "claim-a"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, logger.Noop())
	snap, err := client.ReadStatus(context.Background(), "scan-1")
	require.NoError(t, err)
	require.Equal(t, scanning.ScanStatusCompleted, snap.Status)
	require.Equal(t, 512, snap.MessagesScanned)
	require.Len(t, snap.Included, 1)
	require.Equal(t, "m1", snap.Included[0].MessageID)
}

func TestReadStatus_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, logger.Noop())
	_, err := client.ReadStatus(context.Background(), "missing-scan")
	require.Error(t, err)
	require.Contains(t, err.Error(), "returned 404")
}

func TestReadStatus_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{nope"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, logger.Noop())
	_, err := client.ReadStatus(context.Background(), "scan-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode")
}

func TestReadStatus_EscapesScanID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"status": "in_progress"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, logger.Noop())
	_, err := client.ReadStatus(context.Background(), "scan/../1")
	require.NoError(t, err)
	require.Equal(t, "/scans/scan%2F..%2F1", gotPath)
}
