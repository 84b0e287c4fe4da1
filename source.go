package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/maptile"
)

// ErrTileNotFound is returned by sources that have no data for a tile.
var ErrTileNotFound = errors.New("tile not found")

// ElevationSource yields the raw encoded image of one elevation tile.
type ElevationSource interface {
	FetchTile(ctx context.Context, t maptile.Tile) ([]byte, error)
}

// HTTPSource fetches elevation tiles from a URL template.
type HTTPSource struct {
	URL        string
	Subdomains []string
	client     *http.Client
}

// NewHTTPSource creates a source for templates like https://host/{z}/{x}/{y}.png.
func NewHTTPSource(url string, subdomains []string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:        url,
		Subdomains: subdomains,
		client:     &http.Client{Timeout: timeout},
	}
}

//getTileURL expand the template for tile t
func (s *HTTPSource) getTileURL(t maptile.Tile) string {
	url := strings.Replace(s.URL, "{x}", strconv.Itoa(int(t.X)), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(int(t.Y)), -1)
	url = strings.Replace(url, "{z}", strconv.Itoa(int(t.Z)), -1)
	if len(s.Subdomains) > 0 {
		sub := s.Subdomains[int(t.X+t.Y)%len(s.Subdomains)]
		url = strings.Replace(url, "{s}", sub, -1)
	}
	return url
}

// FetchTile implements ElevationSource.
func (s *HTTPSource) FetchTile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	url := s.getTileURL(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrTileNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status code %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %v tile: %w", t, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("nil tile %v: %w", t, ErrTileNotFound)
	}
	return body, nil
}

// MBTilesSource reads elevation tiles from an MBTiles file.
type MBTilesSource struct {
	db *sql.DB
}

// OpenMBTilesSource opens path read-only.
func OpenMBTilesSource(path string) (*MBTilesSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open mbtiles: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open mbtiles: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open mbtiles: %w", err)
	}
	return &MBTilesSource{db: db}, nil
}

// FetchTile implements ElevationSource.
func (s *MBTilesSource) FetchTile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx, "select tile_data from tiles where zoom_level = ? and tile_column = ? and tile_row = ?;", t.Z, t.X, flipY(t))
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mbtiles %v: %w", t, ErrTileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mbtiles %v: %w", t, err)
	}
	return data, nil
}

// Close releases the database handle.
func (s *MBTilesSource) Close() error {
	return s.db.Close()
}

// DirSource reads elevation tiles laid out as {dir}/{z}/{x}/{y}.{ext}.
type DirSource struct {
	Dir string
	Ext string
}

// FetchTile implements ElevationSource.
func (s DirSource) FetchTile(_ context.Context, t maptile.Tile) ([]byte, error) {
	ext := s.Ext
	if ext == "" {
		ext = PNG
	}
	name := filepath.Join(s.Dir, strconv.Itoa(int(t.Z)), strconv.Itoa(int(t.X)), fmt.Sprintf("%d.%s", t.Y, ext))
	data, err := ioutil.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrTileNotFound)
	}
	return data, err
}
