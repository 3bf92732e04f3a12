package figures

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/ashita-ai/mekiki/internal/objstore"
	"github.com/ashita-ai/mekiki/internal/testutil"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRecordFiltersAndUploads(t *testing.T) {
	mem := objstore.NewMemory()
	e := NewExtractor(mem, "cdn.example.com", testutil.TestLogger())

	big := pngBytes(t, 120, 150)
	cands := []candidate{
		{data: big, fileType: "png"},
		{data: pngBytes(t, 50, 200), fileType: "png"},
		{data: pngBytes(t, 200, 99), fileType: "png"},
		{data: jpegBytes(t, 100, 100), fileType: "jpg"},
	}

	figs := e.record(context.Background(), "2402.12345", cands)
	if len(figs) != 2 {
		t.Fatalf("expected 2 figures, got %d", len(figs))
	}

	if figs[0].FigureIndex != 0 || figs[0].S3Key != "figures/2402.12345/fig_0.png" {
		t.Errorf("first figure: %+v", figs[0])
	}
	if figs[0].S3URL != "https://cdn.example.com/figures/2402.12345/fig_0.png" {
		t.Errorf("cdn url = %q", figs[0].S3URL)
	}
	if figs[0].Width != 120 || figs[0].Height != 150 {
		t.Errorf("dimensions = %dx%d", figs[0].Width, figs[0].Height)
	}
	if figs[0].FileSizeBytes != len(big) {
		t.Errorf("file size = %d, want %d", figs[0].FileSizeBytes, len(big))
	}

	// jpg normalizes to jpeg and 100x100 is just large enough.
	if figs[1].FigureIndex != 1 || figs[1].S3Key != "figures/2402.12345/fig_1.jpeg" {
		t.Errorf("second figure: %+v", figs[1])
	}

	if mem.Len() != 2 {
		t.Fatalf("expected 2 uploads, got %d", mem.Len())
	}
	if _, ct, ok := mem.Get("figures/2402.12345/fig_0.png"); !ok || ct != "image/png" {
		t.Errorf("png upload: ok=%v contentType=%q", ok, ct)
	}
	if _, ct, ok := mem.Get("figures/2402.12345/fig_1.jpeg"); !ok || ct != "image/jpeg" {
		t.Errorf("jpeg upload: ok=%v contentType=%q", ok, ct)
	}
}

func TestRecordWithoutUploader(t *testing.T) {
	e := NewExtractor(nil, "", testutil.TestLogger())

	figs := e.record(context.Background(), "2402.12345", []candidate{
		{data: pngBytes(t, 300, 300), fileType: "png"},
	})
	if len(figs) != 1 {
		t.Fatalf("expected 1 figure, got %d", len(figs))
	}
	// No CDN, no bucket: the URL falls back to the bare key.
	if figs[0].S3URL != "figures/2402.12345/fig_0.png" {
		t.Errorf("url = %q", figs[0].S3URL)
	}
}

type flakyUploader struct {
	mem   *objstore.Memory
	fails int
}

func (f *flakyUploader) Put(ctx context.Context, key string, data []byte, ct string) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("upload failed")
	}
	return f.mem.Put(ctx, key, data, ct)
}

func TestRecordReusesIndexAfterFailedUpload(t *testing.T) {
	mem := objstore.NewMemory()
	e := NewExtractor(&flakyUploader{mem: mem, fails: 1}, "", testutil.TestLogger())

	cands := []candidate{
		{data: pngBytes(t, 200, 200), fileType: "png"},
		{data: pngBytes(t, 201, 201), fileType: "png"},
		{data: pngBytes(t, 202, 202), fileType: "png"},
	}

	figs := e.record(context.Background(), "2402.12345", cands)
	if len(figs) != 2 {
		t.Fatalf("expected 2 figures, got %d", len(figs))
	}
	// The first upload failed, so the second candidate takes index 0.
	if figs[0].FigureIndex != 0 || figs[0].Width != 201 {
		t.Errorf("first recorded figure: %+v", figs[0])
	}
	if figs[1].FigureIndex != 1 || figs[1].Width != 202 {
		t.Errorf("second recorded figure: %+v", figs[1])
	}
	if got := mem.Keys(); len(got) != 2 || got[0] != "figures/2402.12345/fig_0.png" || got[1] != "figures/2402.12345/fig_1.png" {
		t.Errorf("stored keys = %v", got)
	}
}

func TestRecordSkipsUndecodableImages(t *testing.T) {
	e := NewExtractor(nil, "", testutil.TestLogger())

	figs := e.record(context.Background(), "2402.12345", []candidate{
		{data: []byte("not an image"), fileType: "tiff"},
		{data: pngBytes(t, 150, 150), fileType: "png"},
	})
	if len(figs) != 1 || figs[0].FigureIndex != 0 {
		t.Fatalf("expected the decodable image only, got %+v", figs)
	}
}
