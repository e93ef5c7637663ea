package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemmy/internal/models"
	"gemmy/internal/photos"
	"gemmy/internal/store"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestWriteArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.jpg" {
			w.Write([]byte("remote-jpeg"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ctx := context.Background()
	st := store.NewMemory()
	blobs := photos.NewMemoryStore("https://gemmy.test/")
	require.NoError(t, blobs.Put(ctx, "orders/o1/1_a.jpg", []byte("local-jpeg"), "image/jpeg"))

	at := time.Date(2026, 2, 3, 4, 5, 6, 7_000_000, time.UTC)
	require.NoError(t, st.InsertProjection(ctx, models.Projection{
		Token:        "tokA",
		OrderID:      "o1",
		CustomerName: `Jane "JJ" Doe`,
		Status:       "photos_submitted",
		Address:      &models.Address{Line1: "1 Main St, Apt 2", Country: "US"},
		Tracking:     models.TrackingNumbers{KitOutbound: "1Z999AA10123456784"},
		Photos: []models.Photo{
			{URL: "https://gemmy.test/files/orders/o1/1_a.jpg", StoragePath: "orders/o1/1_a.jpg", UploadedAt: "2026-02-03T04:05:06.007Z", Review: models.PhotoReview{Status: models.ReviewApproved}},
			{URL: srv.URL + "/ok.jpg", UploadedAt: "x"},
			{URL: srv.URL + "/gone.jpg", UploadedAt: "y"},
		},
		Messages:     []models.Message{{Sender: "customer", Text: "hi"}},
		CreatedAt:    at,
		UpdatedAt:    at,
		LastUpdateBy: models.ActorCustomer,
	}))

	var buf bytes.Buffer
	var steps []string
	sum, err := New(st, blobs, srv.Client(), "https://gemmy.test/", nil).Write(ctx, &buf, func(p Progress) {
		steps = append(steps, p.Step)
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Orders: 1, Images: 2, Failed: 1}, sum)
	assert.Equal(t, "fetching orders", steps[0])
	assert.Equal(t, "generating zip", steps[len(steps)-1])

	files := readZip(t, buf.Bytes())
	assert.Equal(t, "local-jpeg", files["images/tokA/1_approved_2026-02-03T04_05_06.007Z.jpg"])
	assert.Equal(t, "remote-jpeg", files["images/tokA/2_pending_x.jpg"])
	assert.Equal(t, "Failed to download: "+srv.URL+"/gone.jpg", files["images/tokA/FAILED_3.txt"])

	rows, err := csv.NewReader(strings.NewReader(files["orders.csv"])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	rec := rows[1]
	assert.Equal(t, `Jane "JJ" Doe`, rec[2])
	assert.Equal(t, "2026-02-03T04:05:06.007Z", rec[5])
	assert.Equal(t, "false", rec[7])
	assert.Equal(t, "1 Main St, Apt 2", rec[11])
	assert.Equal(t, "3", rec[17])
	assert.Equal(t, "1", rec[18])
	assert.Equal(t, "", rec[20])
	assert.Equal(t, "https://gemmy.test/?t=tokA", rec[22])

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(files["orders.json"]), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "tokA", decoded[0]["token"])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "gemmy-export-2026-10-19.zip", Filename(time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)))
}

func TestEmptyExportStillHasSheets(t *testing.T) {
	var buf bytes.Buffer
	sum, err := New(store.NewMemory(), nil, nil, "http://x/", nil).Write(context.Background(), &buf, nil)
	require.NoError(t, err)
	assert.Zero(t, sum.Orders)

	files := readZip(t, buf.Bytes())
	assert.Contains(t, files, "orders.csv")
	assert.Equal(t, "[]\n", files["orders.json"])
}
