// Package export writes every tracked order into one zip archive: a CSV
// sheet, the raw JSON records and the order photos.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"gemmy/internal/metrics"
	"gemmy/internal/models"
	"gemmy/internal/orders"
	"gemmy/internal/photos"
)

const readLimit = 1000

// Header is the orders.csv column order.
var Header = []string{
	"token", "orderId", "customerName", "customerEmail", "status",
	"createdAt", "updatedAt",
	"paid",
	"kitOutbound", "kitReturn", "productOutbound",
	"address_line1", "address_line2", "address_city", "address_state", "address_zip", "address_country",
	"photos_count", "messages_count",
	"lastUpdateBy", "lastCustomerActivityAt", "vendorLastSeenAt",
	"customer_url",
}

// Source lists projections newest first.
type Source interface {
	ListProjections(ctx context.Context, limit int64) ([]models.Projection, error)
}

// Progress is reported while the archive is written.
type Progress struct {
	Step  string
	Done  int
	Total int
}

type Summary struct {
	Orders int `json:"orders"`
	Images int `json:"images"`
	Failed int `json:"failed"`
}

type Exporter struct {
	source  Source
	blobs   photos.BlobStore
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

func New(source Source, blobs photos.BlobStore, client *http.Client, baseURL string, log *zap.Logger) *Exporter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{source: source, blobs: blobs, client: client, baseURL: baseURL, log: log.Named("export")}
}

// Filename names the archive for the day it is produced.
func Filename(now time.Time) string {
	return "gemmy-export-" + now.UTC().Format("2006-01-02") + ".zip"
}

// Write streams the archive to w. Photos are fetched one at a time; a photo
// that cannot be read becomes a FAILED_<n>.txt note and the export goes on.
func (e *Exporter) Write(ctx context.Context, w io.Writer, progress func(Progress)) (Summary, error) {
	start := time.Now()
	defer func() { metrics.ExportDuration.Observe(time.Since(start).Seconds()) }()
	if progress == nil {
		progress = func(Progress) {}
	}

	progress(Progress{Step: "fetching orders"})
	items, err := e.source.ListProjections(ctx, readLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("list orders: %w", err)
	}

	zw := zip.NewWriter(w)
	now := time.Now()

	f, err := create(zw, "orders.csv", now, zip.Deflate)
	if err != nil {
		return Summary{}, err
	}
	if err := WriteCSV(f, items, e.baseURL); err != nil {
		return Summary{}, fmt.Errorf("write csv: %w", err)
	}

	f, err = create(zw, "orders.json", now, zip.Deflate)
	if err != nil {
		return Summary{}, err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return Summary{}, fmt.Errorf("write json: %w", err)
	}

	jobs := imageJobs(items)
	sum := Summary{Orders: len(items)}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		progress(Progress{Step: "downloading images", Done: i, Total: len(jobs)})

		if err := e.writeImage(ctx, zw, job, now); err != nil {
			e.log.Warn("photo export failed",
				zap.String("token", job.token), zap.Int("n", job.n), zap.Error(err))
			metrics.ExportImagesTotal.WithLabelValues("failed").Inc()
			sum.Failed++

			note, err := create(zw, job.failedPath(), now, zip.Deflate)
			if err != nil {
				return sum, err
			}
			if _, err := io.WriteString(note, "Failed to download: "+job.photo.URL); err != nil {
				return sum, err
			}
			continue
		}
		metrics.ExportImagesTotal.WithLabelValues("ok").Inc()
		sum.Images++
	}

	progress(Progress{Step: "generating zip", Done: len(jobs), Total: len(jobs)})
	if err := zw.Close(); err != nil {
		return sum, fmt.Errorf("close zip: %w", err)
	}
	e.log.Info("export written",
		zap.Int("orders", sum.Orders), zap.Int("images", sum.Images), zap.Int("failed", sum.Failed))
	return sum, nil
}

func create(zw *zip.Writer, name string, modified time.Time, method uint16) (io.Writer, error) {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: modified})
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	return w, nil
}

type imageJob struct {
	token string
	n     int
	photo models.Photo
}

func (j imageJob) path() string {
	review := j.photo.Review.Status
	if review == "" {
		review = models.ReviewPending
	}
	name := strconv.Itoa(j.n) + "_" + photos.SafeFilename(review) + "_" + photos.SafeFilename(j.photo.UploadedAt) + ".jpg"
	return "images/" + photos.SafeFilename(j.token) + "/" + name
}

func (j imageJob) failedPath() string {
	return "images/" + photos.SafeFilename(j.token) + "/FAILED_" + strconv.Itoa(j.n) + ".txt"
}

func imageJobs(items []models.Projection) []imageJob {
	var jobs []imageJob
	for _, p := range items {
		for i, ph := range p.Photos {
			if ph.URL == "" && ph.StoragePath == "" {
				continue
			}
			jobs = append(jobs, imageJob{token: p.Token, n: i + 1, photo: ph})
		}
	}
	return jobs
}

// writeImage copies one photo into the archive, reading the blob store first
// and the public URL second. Nothing is added to the archive on failure.
func (e *Exporter) writeImage(ctx context.Context, zw *zip.Writer, job imageJob, now time.Time) error {
	rc, err := e.open(ctx, job.photo)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	w, err := create(zw, job.path(), now, zip.Store)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (e *Exporter) open(ctx context.Context, ph models.Photo) (io.ReadCloser, error) {
	if e.blobs != nil && ph.StoragePath != "" {
		rc, err := e.blobs.Open(ctx, ph.StoragePath)
		if err == nil {
			return rc, nil
		}
		e.log.Debug("blob read failed, trying url", zap.String("path", ph.StoragePath), zap.Error(err))
	}
	if ph.URL == "" {
		return nil, fmt.Errorf("photo has no url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ph.URL, nil)
	if err != nil {
		return nil, err
	}
	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("HTTP %d", res.StatusCode)
	}
	return res.Body, nil
}

// WriteCSV writes the header and one row per projection.
func WriteCSV(w io.Writer, items []models.Projection, baseURL string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, p := range items {
		if err := cw.Write(row(p, baseURL)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(p models.Projection, baseURL string) []string {
	var addr models.Address
	if p.Address != nil {
		addr = *p.Address
	}
	return []string{
		p.Token,
		p.OrderID,
		p.CustomerName,
		p.CustomerEmail,
		p.Status,
		formatTime(&p.CreatedAt),
		formatTime(&p.UpdatedAt),
		strconv.FormatBool(p.Paid),
		p.Tracking.KitOutbound,
		p.Tracking.KitReturn,
		p.Tracking.ProductOutbound,
		addr.Line1,
		addr.Line2,
		addr.City,
		addr.State,
		addr.Zip,
		addr.Country,
		strconv.Itoa(len(p.Photos)),
		strconv.Itoa(len(p.Messages)),
		p.LastUpdateBy,
		formatTime(p.LastCustomerActivityAt),
		formatTime(p.VendorLastSeenAt),
		orders.ShareURL(baseURL, p.Token),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
