// Command ingest batch-processes a directory of receipt images into review
// drafts, or watches the directory for new files. It shares the pipeline and
// models with the HTTP service but talks to the database directly, so it can
// run alongside or instead of the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"homestock/models"
	"homestock/pkg/ocr"
)

var db *gorm.DB

var (
	verbose bool
	workers int
)

func main() {
	_ = godotenv.Load()
	dir := flag.String("dir", os.Getenv("INGEST_DIR"), "directory of receipt images")
	watch := flag.Bool("watch", false, "watch the directory for new files instead of exiting after one scan")
	flag.IntVar(&workers, "workers", 2, "concurrent receipts (bounded by the engine pool)")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	if *dir == "" {
		log.Fatal("no ingest directory: pass -dir or set INGEST_DIR")
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set")
	}
	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	if err := db.AutoMigrate(&models.ReceiptDraft{}); err != nil {
		log.Printf("migration warning (receipt_drafts): %v", err)
	}

	lang := os.Getenv("OCR_LANG")
	if lang == "" {
		lang = "eng"
	}
	pool, err := ocr.NewPool(workers, func() (ocr.Engine, error) {
		return ocr.NewTesseractEngine(lang)
	})
	if err != nil {
		log.Fatal("failed to initialize OCR engine pool: ", err)
	}
	defer pool.Close()

	pipe := &ocr.Pipeline{Pool: pool, AutoPreprocess: true}

	initial := listImageFiles(*dir)
	log.Printf("ingest: %d image(s) in %s", len(initial), *dir)
	if *watch {
		if err := watchDirectory(*dir, pipe, initial); err != nil {
			log.Fatal("watch failed: ", err)
		}
		return
	}
	runWorkerPool(*dir, pipe, initial, nil)
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// runWorkerPool fans file names out to a fixed set of workers. Each worker
// borrows one engine session at a time, so memory stays bounded no matter
// how many files land at once.
func runWorkerPool(dir string, pipe *ocr.Pipeline, initial []string, extra <-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processFile(dir, name, pipe)
			}
		}()
	}
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		if extra != nil {
			for n := range extra {
				fileCh <- n
			}
		}
		close(fileCh)
	}()
	wg.Wait()
}

func watchDirectory(dir string, pipe *ocr.Pipeline, initial []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("ingest: watching %s (debounced)", dir)

	fileCh := make(chan string, 256)
	go func() {
		// debounce map of pending files; a file is stable once no further
		// create/write event arrives for a short window
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if isSupportedExt(name) {
						pending[name] = time.Now()
					}
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond {
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("ingest: watch error: %v", err)
			}
		}
	}()

	runWorkerPool(dir, pipe, initial, fileCh)
	return nil
}

// processFile is idempotent per file name: images that already have a draft
// are skipped so re-scans and duplicate watch events are harmless.
func processFile(dir, name string, pipe *ocr.Pipeline) {
	var count int64
	db.Model(&models.ReceiptDraft{}).Where("file_name = ?", name).Count(&count)
	if count > 0 {
		if verbose {
			log.Printf("ingest: skip %s (draft exists)", name)
		}
		return
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		log.Printf("ingest: read %s: %v", name, err)
		return
	}
	rec, err := pipe.ProcessReceiptImage(context.Background(), data, nil)
	if err != nil {
		log.Printf("ingest: %s failed: %v", name, err)
		return
	}
	draft := ocr.ToDraft(rec)

	itemsJSON, _ := json.Marshal(draft.Items)
	warnJSON, _ := json.Marshal(draft.Warnings)
	row := models.ReceiptDraft{
		Token:             uuid.NewString(),
		FileName:          name,
		MerchantName:      draft.MerchantName,
		TransactionDate:   draft.TransactionDate,
		DateDefaulted:     draft.DateDefaulted,
		Subtotal:          draft.Subtotal,
		Tax:               draft.Tax,
		Total:             draft.Total,
		ItemsJSON:         string(itemsJSON),
		OverallConfidence: draft.OverallConfidence,
		RawText:           draft.RawText,
		WarningsJSON:      string(warnJSON),
		Status:            models.DraftPending,
	}
	if err := db.Create(&row).Error; err != nil {
		log.Printf("ingest: draft save for %s failed: %v", name, err)
		return
	}
	log.Printf("ingest: %s -> draft %s (%d items, conf %.2f)", name, row.Token, len(draft.Items), draft.OverallConfidence)
}
