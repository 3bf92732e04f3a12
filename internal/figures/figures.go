// Package figures extracts raster images from paper PDFs.
//
// Every image at least 100x100 pixels is kept, uploaded under
// figures/{arxiv_id}/fig_{index}.{ext} and recorded with an index assigned
// in encounter order. An index is only consumed once its figure is
// recorded, so a failed upload does not leave holes in the sequence.
package figures

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/objstore"
)

const (
	minWidth  = 100
	minHeight = 100
)

// Extractor pulls figures out of PDF bytes and uploads them to object
// storage. A nil uploader records figures without uploading, for runs
// where no bucket is configured.
type Extractor struct {
	uploader  objstore.Uploader
	cdnDomain string
	logger    *slog.Logger
}

// NewExtractor creates an Extractor. cdnDomain, when set, is used to build
// public figure URLs; otherwise the bare object key is recorded.
func NewExtractor(uploader objstore.Uploader, cdnDomain string, logger *slog.Logger) *Extractor {
	api.DisableConfigDir()
	return &Extractor{uploader: uploader, cdnDomain: cdnDomain, logger: logger}
}

// candidate is one image pulled out of the PDF, before size filtering.
type candidate struct {
	data     []byte
	fileType string
}

// Extract parses the PDF and returns the figures that were recorded.
// Images too small to be figures and images that fail to upload are
// dropped; only an unparseable PDF is an error.
func (e *Extractor) Extract(ctx context.Context, arxivID string, pdf []byte) ([]model.PaperFigure, error) {
	pages, err := api.ExtractImagesRaw(bytes.NewReader(pdf), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("figures: parse pdf %s: %w", arxivID, err)
	}

	var cands []candidate
	for _, page := range pages {
		// Map order is random; sort by object number to keep the
		// within-page encounter order stable.
		objNrs := make([]int, 0, len(page))
		for objNr := range page {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			img := page[objNr]
			data, err := io.ReadAll(img)
			if err != nil {
				e.logger.Debug("figure image unreadable", "arxiv_id", arxivID, "obj", objNr, "error", err)
				continue
			}
			cands = append(cands, candidate{data: data, fileType: img.FileType})
		}
	}

	return e.record(ctx, arxivID, cands), nil
}

// record filters candidates by size, uploads the survivors and assigns
// figure indexes.
func (e *Extractor) record(ctx context.Context, arxivID string, cands []candidate) []model.PaperFigure {
	var figs []model.PaperFigure
	index := 0

	for _, c := range cands {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(c.data))
		if err != nil {
			e.logger.Debug("figure image undecodable", "arxiv_id", arxivID, "type", c.fileType, "error", err)
			continue
		}
		if cfg.Width < minWidth || cfg.Height < minHeight {
			continue
		}

		ext := normalizeExt(c.fileType)
		key := fmt.Sprintf("figures/%s/fig_%d.%s", arxivID, index, ext)

		if e.uploader != nil {
			if err := e.uploader.Put(ctx, key, c.data, "image/"+ext); err != nil {
				e.logger.Warn("figure upload failed", "key", key, "error", err)
				continue
			}
		}

		url := key
		if e.cdnDomain != "" {
			url = fmt.Sprintf("https://%s/%s", e.cdnDomain, key)
		}

		figs = append(figs, model.PaperFigure{
			FigureIndex:   index,
			S3Key:         key,
			S3URL:         url,
			Width:         cfg.Width,
			Height:        cfg.Height,
			FileSizeBytes: len(c.data),
		})
		index++
	}

	return figs
}

// normalizeExt maps extractor file types onto extensions that double as
// image MIME subtypes.
func normalizeExt(fileType string) string {
	if fileType == "jpg" {
		return "jpeg"
	}
	return fileType
}
