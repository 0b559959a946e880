package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"qrscan/internal/export"
	"qrscan/internal/models"
	"qrscan/internal/repository/sqlite"
	"qrscan/internal/services/storage"
)

// importSession marks records that came from export files rather than a live session.
const importSession = "import"

func main() {
	dbPath := flag.String("db", "data/scans.db", "Database path")
	dir := flag.String("dir", "exports", "Directory of qr-scan-*.json files")
	mode := flag.String("mode", "export", "export: database -> files, import: files -> database")
	scanType := flag.String("type", "", "Only export results of this type (url, json, text)")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewScanRepository(db)

	switch *mode {
	case "export":
		exportHistory(repo, *dir, *scanType)
	case "import":
		importFiles(repo, *dir)
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}

	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\nHistory: %d results\n", stats.Total)
		for typ, count := range stats.PerType {
			fmt.Printf("   - %s: %d\n", typ, count)
		}
	}
}

func exportHistory(repo *sqlite.ScanRepository, dir, scanType string) {
	records, err := repo.GetAll(&models.ScanFilter{Type: scanType})
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("No results found to export")
		return
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create export directory: %v", err)
	}

	fmt.Printf("Exporting %d results to %s...\n", len(records), dir)
	failed := 0
	for _, rec := range records {
		if _, err := storage.WriteResult(dir, rec.Result()); err != nil {
			log.Printf("Skipping result %d: %v", rec.ID, err)
			failed++
		}
	}

	fmt.Printf("Exported %d results\n", len(records)-failed)
	if failed > 0 {
		fmt.Printf("Failed to export %d results\n", failed)
	}
}

func importFiles(repo *sqlite.ScanRepository, dir string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read export directory: %v", err)
	}

	var records []models.ScanRecord
	skipped := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "qr-scan-") || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		res, err := export.Parse(data)
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		rec, err := models.NewScanRecord(importSession, "", res)
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}
		records = append(records, *rec)
	}

	if len(records) == 0 {
		fmt.Println("No export files found to import")
		return
	}

	fmt.Printf("Inserting %d results into database...\n", len(records))
	if err := repo.InsertBatch(records); err != nil {
		log.Fatalf("Failed to insert results: %v", err)
	}

	fmt.Printf("Imported %d results\n", len(records))
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid format or errors)\n", skipped)
	}
}
