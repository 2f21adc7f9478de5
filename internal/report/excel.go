// Package report renders the screener output workbook. The job engine
// treats rendering as a black box that returns an artifact path or fails.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rmpcap/screener-be/internal/parcels"
)

const summarySheet = "Screener Summary"

// Property is the subset of property data the workbook needs.
type Property struct {
	ID      int64
	Name    string
	Address string
	City    string
	State   string
}

// ExcelRenderer writes one workbook per screener run under an output directory.
type ExcelRenderer struct {
	outputDir string
	logger    *slog.Logger
}

// NewExcelRenderer creates a renderer rooted at outputDir.
func NewExcelRenderer(outputDir string, logger *slog.Logger) *ExcelRenderer {
	return &ExcelRenderer{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Render writes the screener workbook for a property. The parcel record may
// be boundary-less; the report still succeeds with a centered-but-unbounded
// map note.
func (r *ExcelRenderer) Render(ctx context.Context, property Property, record *parcels.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return "", fmt.Errorf("failed to create summary sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	rows := [][2]interface{}{
		{"Property", property.Name},
		{"Address", property.Address},
		{"City", property.City},
		{"State", property.State},
		{"Generated", time.Now().Format(time.RFC3339)},
		{"", ""},
		{"Parcel Centroid Lat", record.Lat},
		{"Parcel Centroid Lon", record.Lon},
		{"Map Zoom", record.Zoom},
		{"Geometry Source", record.Provenance},
	}

	if record.HasBoundary() {
		rows = append(rows, [2]interface{}{"Boundary Vertices", len(record.Polygon)})
	} else {
		rows = append(rows, [2]interface{}{"Boundary", "not available - map centered without parcel outline"})
	}

	for i, row := range rows {
		labelCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", fmt.Errorf("failed to build cell reference: %w", err)
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return "", fmt.Errorf("failed to build cell reference: %w", err)
		}
		if err := f.SetCellValue(summarySheet, labelCell, row[0]); err != nil {
			return "", fmt.Errorf("failed to write cell %s: %w", labelCell, err)
		}
		if err := f.SetCellValue(summarySheet, valueCell, row[1]); err != nil {
			return "", fmt.Errorf("failed to write cell %s: %w", valueCell, err)
		}
	}

	outputPath := filepath.Join(r.outputDir, fmt.Sprintf("RMP Screener_%s.xlsx", sanitizeName(property.Name)))
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	r.logger.Info("Screener workbook written",
		slog.Int64("property_id", property.ID),
		slog.String("path", outputPath),
	)

	return outputPath, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "property"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return replacer.Replace(name)
}
