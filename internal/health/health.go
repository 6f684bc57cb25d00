// Package health builds the server status snapshot. Every missing or broken
// component is reported as a field; Report never fails.
package health

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/index"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

// Overall statuses
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

const defaultTimeout = 5 * time.Second

// Report is a point-in-time snapshot of server readiness
type Report struct {
	Status     string               `json:"status"`
	Timestamp  string               `json:"timestamp"`
	Database   Database             `json:"database"`
	Tables     map[string]TableInfo `json:"tables"`
	Embeddings Embeddings           `json:"embeddings"`
	ServerInfo ServerInfo           `json:"server_info"`
}

// Database describes the relationship store
type Database struct {
	Exists         bool    `json:"exists"`
	Path           string  `json:"path"`
	SizeBytes      int64   `json:"size_bytes,omitempty"`
	SizeMB         float64 `json:"size_mb,omitempty"`
	LastModified   string  `json:"last_modified,omitempty"`
	Connection     string  `json:"connection,omitempty"`
	IntegrityCheck string  `json:"integrity_check,omitempty"`
	SchemaVersion  string  `json:"schema_version,omitempty"`
	HPOTermsCount  int     `json:"hpo_terms_count,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// TableInfo is the row count of one table
type TableInfo struct {
	RecordCount int    `json:"record_count"`
	Status      string `json:"status"`
}

// Embeddings describes the vector index and the query-side provider
type Embeddings struct {
	IndexExists        bool   `json:"index_exists"`
	Path               string `json:"path"`
	SizeBytes          int64  `json:"size_bytes,omitempty"`
	LastModified       string `json:"last_modified,omitempty"`
	Loaded             bool   `json:"loaded"`
	Terms              int    `json:"terms"`
	Dimension          int    `json:"dimension,omitempty"`
	IndexModel         string `json:"index_model,omitempty"`
	BuiltAt            string `json:"built_at,omitempty"`
	LoadError          string `json:"load_error,omitempty"`
	Provider           string `json:"provider"`
	Model              string `json:"model,omitempty"`
	CredentialRequired bool   `json:"credential_required"`
	APIKeyPresent      bool   `json:"api_key_present"`
	ProviderError      string `json:"provider_error,omitempty"`
}

// ServerInfo identifies the running binary
type ServerInfo struct {
	ServerName       string `json:"server_name"`
	Version          string `json:"version"`
	Transport        string `json:"transport,omitempty"`
	GoVersion        string `json:"go_version"`
	BuildMode        string `json:"build_mode"`
	SQLiteDriver     string `json:"sqlite_driver"`
	WorkingDirectory string `json:"working_directory"`
}

// Config holds the handles a Reporter inspects. Store and Index may be nil;
// StoreErr and IndexErr say why.
type Config struct {
	StorePath string
	Store     storage.Storage
	StoreErr  error

	IndexPath string
	Index     *index.Index
	IndexErr  error

	Provider      string
	Model         string
	APIKeyPresent bool
	ProviderErr   error

	ServerName string
	Version    string
	Transport  string

	Timeout time.Duration
}

// Reporter produces health snapshots
type Reporter struct {
	cfg Config
	now func() time.Time
}

// New creates a Reporter
func New(cfg Config) *Reporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Reporter{cfg: cfg, now: time.Now}
}

// Report inspects the store, the index and the credential
func (r *Reporter) Report(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	rep := Report{
		Status:    StatusHealthy,
		Timestamp: r.now().UTC().Format(time.RFC3339),
		Tables:    map[string]TableInfo{},
	}

	rep.Database = r.database(ctx, &rep)
	rep.Embeddings = r.embeddings(&rep)
	rep.ServerInfo = r.serverInfo()
	return rep
}

func (r *Reporter) database(ctx context.Context, rep *Report) Database {
	db := Database{Path: r.cfg.StorePath}

	info, err := os.Stat(r.cfg.StorePath)
	if err != nil {
		db.Error = fmt.Sprintf("database file not found at %s", r.cfg.StorePath)
		if !errors.Is(err, os.ErrNotExist) {
			db.Error = err.Error()
		}
		rep.Status = StatusError
		return db
	}

	db.Exists = true
	db.SizeBytes = info.Size()
	db.SizeMB = toMB(info.Size())
	db.LastModified = info.ModTime().UTC().Format(time.RFC3339)

	if r.cfg.Store == nil {
		reason := "not opened"
		if r.cfg.StoreErr != nil {
			reason = r.cfg.StoreErr.Error()
		}
		db.Connection = "failed: " + reason
		db.IntegrityCheck = "failed"
		rep.degrade()
		return db
	}

	status, err := r.cfg.Store.GetStatus(ctx)
	if err != nil {
		db.Connection = "failed: " + err.Error()
		db.IntegrityCheck = "failed"
		rep.degrade()
		return db
	}

	db.Connection = "successful"
	db.IntegrityCheck = "passed"
	db.SchemaVersion = status.SchemaVersion
	db.HPOTermsCount = status.HPOTermsCount

	for _, t := range status.Tables {
		ti := TableInfo{RecordCount: t.RecordCount, Status: "accessible"}
		if t.Err != nil {
			ti = TableInfo{Status: "error: " + t.Err.Error()}
			db.IntegrityCheck = "failed"
			rep.degrade()
		}
		rep.Tables[t.Name] = ti
	}
	for _, name := range storage.AssociationTables {
		if _, ok := rep.Tables[name]; !ok {
			rep.Tables[name] = TableInfo{Status: "error: table missing"}
			db.IntegrityCheck = "failed"
			rep.degrade()
		}
	}

	return db
}

func (r *Reporter) embeddings(rep *Report) Embeddings {
	emb := Embeddings{
		Path:               r.cfg.IndexPath,
		Provider:           r.cfg.Provider,
		Model:              r.cfg.Model,
		CredentialRequired: embedder.RequiresCredential(r.cfg.Provider),
		APIKeyPresent:      r.cfg.APIKeyPresent,
	}

	if info, err := os.Stat(r.cfg.IndexPath); err == nil {
		emb.IndexExists = true
		emb.SizeBytes = info.Size()
		emb.LastModified = info.ModTime().UTC().Format(time.RFC3339)
	}

	if idx := r.cfg.Index; idx != nil {
		meta := idx.Meta()
		emb.Loaded = true
		emb.Terms = idx.Len()
		emb.Dimension = meta.Dimension
		emb.IndexModel = meta.Model
		if !meta.BuiltAt.IsZero() {
			emb.BuiltAt = meta.BuiltAt.UTC().Format(time.RFC3339)
		}
	} else {
		emb.LoadError = "index not loaded"
		if r.cfg.IndexErr != nil {
			emb.LoadError = r.cfg.IndexErr.Error()
		}
		rep.degrade()
	}

	if emb.CredentialRequired && !emb.APIKeyPresent {
		rep.degrade()
	}
	if r.cfg.ProviderErr != nil {
		emb.ProviderError = r.cfg.ProviderErr.Error()
		rep.degrade()
	}
	return emb
}

func (r *Reporter) serverInfo() ServerInfo {
	wd, _ := os.Getwd()
	return ServerInfo{
		ServerName:       r.cfg.ServerName,
		Version:          r.cfg.Version,
		Transport:        r.cfg.Transport,
		GoVersion:        runtime.Version(),
		BuildMode:        storage.BuildMode,
		SQLiteDriver:     storage.DriverName,
		WorkingDirectory: wd,
	}
}

// degrade lowers a healthy report; an error status is never raised back
func (rep *Report) degrade() {
	if rep.Status == StatusHealthy {
		rep.Status = StatusDegraded
	}
}

func toMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}
