package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrSourceUnconfigured means no elevation source is configured.
var ErrSourceUnconfigured = errors.New("elevation source not configured")

//SourceConfig elevation source settings
type SourceConfig struct {
	URL        string
	Subdomains []string
	MBTiles    string
	Dir        string
	Ext        string
	Encoding   Encoding
	TileSize   int
	MaxZoom    int
	Timeout    time.Duration
}

//Config application settings
type Config struct {
	Addr    string
	Public  string
	Style   string
	Scheme  string
	Smooth  bool
	Source  SourceConfig
	Layer   LayerConfig
	Palette *Palette
}

// setDefaults registers the defaults for every key the service reads.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Slope Tiler")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public", "http://localhost:8080")
	v.SetDefault("source.encoding", "mapbox")
	v.SetDefault("source.tilesize", TileSize)
	v.SetDefault("source.maxzoom", 15)
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.ext", PNG)
	v.SetDefault("render.scheme", "slope")
	v.SetDefault("render.smooth", true)
	v.SetDefault("layer.source", "slope")
	v.SetDefault("layer.id", "slope-angle")
	v.SetDefault("output.format", "mbtiles")
	v.SetDefault("output.directory", "output")
	v.SetDefault("task.workers", 4)
	v.SetDefault("task.savepipe", 1)
	v.SetDefault("seed.name", "dem")
	v.SetDefault("seed.min", 10)
	v.SetDefault("seed.max", 14)
}

// loadSourceConfig reads the elevation source settings. It returns
// ErrSourceUnconfigured when none of url, mbtiles or dir is set.
func loadSourceConfig(v *viper.Viper) (SourceConfig, error) {
	enc, err := ParseEncoding(v.GetString("source.encoding"))
	if err != nil {
		return SourceConfig{}, err
	}
	sc := SourceConfig{
		URL:        strings.TrimSpace(v.GetString("source.url")),
		Subdomains: v.GetStringSlice("source.subdomains"),
		MBTiles:    v.GetString("source.mbtiles"),
		Dir:        v.GetString("source.dir"),
		Ext:        v.GetString("source.ext"),
		Encoding:   enc,
		TileSize:   v.GetInt("source.tilesize"),
		MaxZoom:    v.GetInt("source.maxzoom"),
		Timeout:    v.GetDuration("source.timeout"),
	}
	if sc.TileSize <= 0 {
		return SourceConfig{}, fmt.Errorf("source.tilesize must be positive, got %d", sc.TileSize)
	}
	if sc.Timeout <= 0 {
		return SourceConfig{}, errors.New("invalid source.timeout")
	}
	if sc.URL == "" && sc.MBTiles == "" && sc.Dir == "" {
		return sc, ErrSourceUnconfigured
	}
	if sc.URL != "" && !(strings.Contains(sc.URL, "{z}") && strings.Contains(sc.URL, "{x}") && strings.Contains(sc.URL, "{y}")) {
		return SourceConfig{}, fmt.Errorf("source.url %q lacks {z}/{x}/{y} placeholders", sc.URL)
	}
	return sc, nil
}

// loadPalette reads the palette array, falling back to DefaultPalette.
func loadPalette(v *viper.Viper) (*Palette, error) {
	if !v.IsSet("palette") {
		return DefaultPalette(), nil
	}
	var entries []PaletteEntry
	if err := v.UnmarshalKey("palette", &entries); err != nil {
		return nil, fmt.Errorf("palette: %w", err)
	}
	return PaletteFromEntries(entries)
}

// loadConfig builds the Config. A missing elevation source is reported as
// ErrSourceUnconfigured alongside an otherwise complete Config.
func loadConfig(v *viper.Viper) (*Config, error) {
	palette, err := loadPalette(v)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Addr:    v.GetString("server.addr"),
		Public:  v.GetString("server.public"),
		Style:   v.GetString("server.style"),
		Scheme:  v.GetString("render.scheme"),
		Smooth:  v.GetBool("render.smooth"),
		Palette: palette,
		Layer: LayerConfig{
			SourceID: v.GetString("layer.source"),
			LayerID:  v.GetString("layer.id"),
			BeforeID: v.GetString("layer.before"),
		},
	}
	if cfg.Scheme == "" || strings.ContainsAny(cfg.Scheme, ":/") {
		return nil, fmt.Errorf("invalid render.scheme %q", cfg.Scheme)
	}
	src, err := loadSourceConfig(v)
	cfg.Source = src
	cfg.Layer.MaxZoom = src.MaxZoom
	if err != nil && !errors.Is(err, ErrSourceUnconfigured) {
		return nil, err
	}
	return cfg, err
}

// openSource builds the ElevationSource described by sc. An MBTiles file wins
// over a directory, which wins over a URL template.
func openSource(sc SourceConfig) (ElevationSource, error) {
	switch {
	case sc.MBTiles != "":
		return OpenMBTilesSource(sc.MBTiles)
	case sc.Dir != "":
		return DirSource{Dir: sc.Dir, Ext: sc.Ext}, nil
	case sc.URL != "":
		return NewHTTPSource(sc.URL, sc.Subdomains, sc.Timeout), nil
	}
	return nil, ErrSourceUnconfigured
}
