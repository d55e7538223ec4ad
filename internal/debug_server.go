package internal

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"trivia-lab/repositories"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Kind      string
	Timestamp string
	EntityID  string
	Scope     string
	Detail    string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// InspectHandler renders the store content under ?prefix= as an HTML table.
func InspectHandler(db *badger.DB, statsProvider StatsProvider) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "session:"
		}
		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := repositories.Dump(db, prefix, func(record repositories.Record) error {
			data.Items = append(data.Items, ToInspectRow(record))
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
}

// NewDebugServer serves the inspect page on addr. The caller owns its lifecycle.
func NewDebugServer(db *badger.DB, addr string, statsProvider StatsProvider) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/inspect", InspectHandler(db, statsProvider))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func ToInspectRow(record repositories.Record) InspectRow {
	row := InspectRow{
		Key:       record.Key,
		Kind:      record.Kind,
		Timestamp: "--:--:--",
		EntityID:  shortID(record.Entity),
		Scope:     record.Scope,
		Detail:    record.Detail,
	}
	if !record.At.IsZero() {
		row.Timestamp = record.At.Format("15:04:05")
	}
	return row
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "--------"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
