package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// flag
var (
	hf bool
	sf bool
	cf string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.BoolVar(&sf, "seed", false, "download the elevation tiles of [seed] into [output] and exit")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.Usage = usage
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.InfoLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, `slopetiler version: slopetiler/v0.1.0
Usage: slopetiler [-h] [-seed] [-c filename]
`)
	flag.PrintDefaults()
}

// initConf reads cfgFile into the global viper instance.
func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	setDefaults(viper.GetViper())
}

func main() {
	flag.Parse()
	if hf {
		flag.Usage()
		return
	}

	if cf == "" {
		cf = "conf.toml"
	}
	initConf(cf)
	if lvl, err := log.ParseLevel(viper.GetString("log.level")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil && !errors.Is(err, ErrSourceUnconfigured) {
		log.Fatalf("load config error ~ %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := NewMetrics()
	if sf {
		if cfg.Source.URL == "" {
			log.Fatal("seed needs source.url")
		}
		start := time.Now()
		if err := runSeed(ctx, viper.GetViper(), cfg, metrics); err != nil {
			log.Fatalf("seed error ~ %s", err)
		}
		log.Infof("%.3fs finished...", time.Since(start).Seconds())
		return
	}
	serve(ctx, cfg, metrics)
}

// serve runs the tile server until ctx is done.
func serve(ctx context.Context, cfg *Config, metrics *Metrics) {
	style := NewStyle(viper.GetString("app.title"))
	if cfg.Style != "" {
		s, err := LoadStyle(cfg.Style)
		if err != nil {
			log.Warnf("load style %s error, serving an empty style ~ %s", cfg.Style, err)
		} else {
			style = s
		}
	}

	registry := NewRegistry()
	controllers := attachLayers(cfg, registry, style, metrics)

	srv := NewServer(cfg.Addr, cfg.Public, registry, style, controllers...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server error ~ %s", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown error ~ %s", err)
	}
}

// attachLayers adds the slope overlay to style. A layer that cannot be built,
// for instance without an elevation source, is skipped with a warning and leaves
// registry and style untouched.
func attachLayers(cfg *Config, registry *Registry, style *Style, metrics *Metrics) []*LayerController {
	var controllers []*LayerController
	if c, err := newSlopeLayer(cfg, registry, metrics); err != nil {
		log.Warnf("slope layer skipped ~ %s", err)
	} else if err := c.AddLayer(style); err != nil {
		log.Warnf("slope layer skipped ~ %s", err)
	} else {
		controllers = append(controllers, c)
	}
	return controllers
}

// newSlopeLayer builds the renderer, protocol handler and layer controller
// for cfg. It fails with ErrSourceUnconfigured when there is no elevation source.
func newSlopeLayer(cfg *Config, registry *Registry, metrics *Metrics) (*LayerController, error) {
	source, err := openSource(cfg.Source)
	if err != nil {
		return nil, err
	}
	renderer := NewRenderer(RenderOptions{
		Source:   source,
		Encoding: cfg.Source.Encoding,
		TileSize: cfg.Source.TileSize,
		Palette:  cfg.Palette,
		Smooth:   cfg.Smooth,
		Metrics:  metrics,
	})
	protocol, err := NewSlopeProtocol(cfg.Scheme, renderer, metrics)
	if err != nil {
		return nil, err
	}
	return NewLayerController(registry, protocol, cfg.Layer, metrics), nil
}

// runSeed downloads the elevation tiles of the configured area.
func runSeed(ctx context.Context, v *viper.Viper, cfg *Config, metrics *Metrics) error {
	collection, err := loadCollection(v.GetString("seed.geojson"))
	if err != nil {
		return err
	}
	var layers []Layer
	for z := v.GetInt("seed.min"); z <= v.GetInt("seed.max"); z++ {
		layers = append(layers, Layer{Zoom: z, Collection: collection})
	}
	if len(layers) == 0 {
		return errors.New("seed.min must not exceed seed.max")
	}
	source := NewHTTPSource(cfg.Source.URL, cfg.Source.Subdomains, cfg.Source.Timeout)
	task := NewTask(layers, source, TaskOptions{
		Name:      v.GetString("seed.name"),
		Format:    v.GetString("output.format"),
		Directory: v.GetString("output.directory"),
		Workers:   v.GetInt("task.workers"),
		SavePipe:  v.GetInt("task.savepipe"),
		Ext:       cfg.Source.Ext,
		Encoding:  cfg.Source.Encoding,
		Metrics:   metrics,
	})
	return task.Download(ctx)
}
