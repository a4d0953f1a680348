package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/gymmap/internal/adapters/postgres"
	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/pkg/config"
	"github.com/samirrijal/gymmap/internal/pkg/logging"
)

const batchSize = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("gymmap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	path := "gyms.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 0)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewGymRepo(db)

	total, skipped, err := readGyms(f, batchSize, func(batch []domain.Gym) error {
		return repo.UpsertBatch(ctx, batch)
	})
	if err != nil {
		log.Fatalf("import %s: %v", path, err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("count gyms: %v", err)
	}
	slog.Info("gyms imported", "file", path, "imported", total, "skipped", skipped, "stored", count)
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

// readGyms parses a gyms CSV with the columns id, name, address, phone, lat,
// lng and tags (semicolon separated). Only name, lat and lng are required.
// Rows are handed to flush in batches of size. Rows that cannot be parsed
// or carry an invalid position are skipped.
func readGyms(r io.Reader, size int, flush func([]domain.Gym) error) (total, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"name", "lat", "lng"} {
		if _, ok := cols[required]; !ok {
			return 0, 0, fmt.Errorf("missing column %q", required)
		}
	}

	batch := make([]domain.Gym, 0, size)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("skip malformed row", "line", line, "error", err)
			skipped++
			continue
		}

		g, err := parseGym(record, cols)
		if err != nil {
			slog.Warn("skip row", "line", line, "error", err)
			skipped++
			continue
		}
		batch = append(batch, g)
		total++

		if len(batch) >= size {
			if err := flush(batch); err != nil {
				return total, skipped, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := flush(batch); err != nil {
			return total, skipped, err
		}
	}
	return total, skipped, nil
}

func parseGym(record []string, cols map[string]int) (domain.Gym, error) {
	name := getField(record, cols, "name")
	if name == "" {
		return domain.Gym{}, errors.New("empty name")
	}
	lat, err := strconv.ParseFloat(getField(record, cols, "lat"), 64)
	if err != nil {
		return domain.Gym{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(getField(record, cols, "lng"), 64)
	if err != nil {
		return domain.Gym{}, fmt.Errorf("lng: %w", err)
	}
	pos := domain.Position{Latitude: lat, Longitude: lng}
	if !pos.Valid() {
		return domain.Gym{}, fmt.Errorf("position %v out of range", pos)
	}

	// Rows without an id get a stable one so re-imports update in place.
	id := getField(record, cols, "id")
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("gym:%s:%.6f:%.6f", name, lat, lng))).String()
	}

	var tags []string
	for _, t := range strings.Split(getField(record, cols, "tags"), ";") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return domain.Gym{
		ID:       id,
		Name:     name,
		Address:  getField(record, cols, "address"),
		Phone:    getField(record, cols, "phone"),
		Location: pos,
		Tags:     tags,
	}, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
