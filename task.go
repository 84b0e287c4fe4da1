package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

//MBTileVersion mbtiles version
const MBTileVersion = "1.2"

//Layer one zoom level of a seed area
type Layer struct {
	Zoom       int
	Count      int64
	Collection orb.Collection
	tiles      maptile.Set
}

//TaskOptions seed task settings
type TaskOptions struct {
	Name      string
	Format    string // "mbtiles" or "files"
	Directory string
	Workers   int
	SavePipe  int
	Ext       string
	Encoding  Encoding
	Metrics   *Metrics
}

//Task downloads the elevation tiles covering an area so they can be served
//by MBTilesSource or DirSource without network access
type Task struct {
	ID           string
	Name         string
	File         string
	Min          int
	Max          int
	Layers       []Layer
	Total        int64
	Bar          *pb.ProgressBar
	db           *sql.DB
	source       ElevationSource
	workerCount  int
	savePipeSize int
	wg           sync.WaitGroup
	workers      chan maptile.Tile
	savingpipe   chan Tile
	saved        chan struct{}
	outformat    string
	outdir       string
	ext          string
	encoding     Encoding
	metrics      *Metrics
	mu           sync.Mutex
	failed       int64
}

//NewTask creates a seed task fetching from source
func NewTask(layers []Layer, source ElevationSource, opts TaskOptions) *Task {
	if len(layers) == 0 {
		return nil
	}
	id, _ := shortid.Generate()

	sort.Slice(layers, func(i, j int) bool { return layers[i].Zoom < layers[j].Zoom })
	task := Task{
		ID:     id,
		Name:   opts.Name,
		Layers: layers,
		Min:    layers[0].Zoom,
		Max:    layers[len(layers)-1].Zoom,
		source: source,
	}

	for i := range task.Layers {
		task.Layers[i].tiles = coverTiles(task.Layers[i].Collection, task.Layers[i].Zoom)
		task.Layers[i].Count = int64(len(task.Layers[i].tiles))
		log.Infof("zoom %d: %d tiles", task.Layers[i].Zoom, task.Layers[i].Count)
		task.Total += task.Layers[i].Count
	}

	task.workerCount = opts.Workers
	if task.workerCount <= 0 {
		task.workerCount = 1
	}
	task.savePipeSize = opts.SavePipe
	if task.savePipeSize <= 0 {
		task.savePipeSize = 1
	}
	task.workers = make(chan maptile.Tile, task.workerCount)
	task.savingpipe = make(chan Tile, task.savePipeSize)
	task.saved = make(chan struct{})
	task.outformat = opts.Format
	task.outdir = opts.Directory
	task.ext = opts.Ext
	if task.ext == "" {
		task.ext = PNG
	}
	task.encoding = opts.Encoding
	task.metrics = opts.Metrics
	return &task
}

//Bound area covered by all layers
func (task *Task) Bound() orb.Bound {
	var bound orb.Bound
	first := true
	for _, layer := range task.Layers {
		for _, g := range layer.Collection {
			if g == nil {
				continue
			}
			if first {
				bound = g.Bound()
				first = false
				continue
			}
			bound = bound.Union(g.Bound())
		}
	}
	return bound
}

//MetaItems mbtiles metadata
func (task *Task) MetaItems() map[string]string {
	b := task.Bound()
	c := b.Center()
	return map[string]string{
		"id":          task.ID,
		"name":        task.Name,
		"description": "elevation tiles (" + task.encoding.String() + " encoding)",
		"format":      task.ext,
		"type":        "baselayer",
		"encoding":    task.encoding.String(),
		"pixel_scale": strconv.Itoa(TileSize),
		"version":     MBTileVersion,
		"bounds":      fmt.Sprintf(`%f,%f,%f,%f`, b.Left(), b.Bottom(), b.Right(), b.Top()),
		"center":      fmt.Sprintf(`%f,%f,%d`, c.X(), c.Y(), (task.Min+task.Max)/2),
		"minzoom":     strconv.Itoa(task.Min),
		"maxzoom":     strconv.Itoa(task.Max),
	}
}

//SetupMBTileTables create the mbtiles file and its tables
func (task *Task) SetupMBTileTables() error {
	if task.File == "" {
		if err := os.MkdirAll(task.outdir, os.ModePerm); err != nil {
			return err
		}
		task.File = filepath.Join(task.outdir, task.ID+"."+task.Name+".mbtiles")
	}
	os.Remove(task.File)
	db, err := sql.Open("sqlite3", task.File)
	if err != nil {
		return err
	}

	err = optimizeConnection(db)
	if err != nil {
		return err
	}

	_, err = db.Exec("create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create table if not exists metadata (name text, value text);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create unique index name on metadata (name);")
	if err != nil {
		return err
	}

	_, err = db.Exec("create unique index tile_index on tiles(zoom_level, tile_column, tile_row);")
	if err != nil {
		return err
	}

	for name, value := range task.MetaItems() {
		_, err := db.Exec("insert into metadata (name, value) values (?, ?)", name, value)
		if err != nil {
			return err
		}
	}

	task.db = db
	return nil
}

//savePipe single writer into the mbtiles db
func (task *Task) savePipe() {
	defer close(task.saved)
	for tile := range task.savingpipe {
		err := saveToMBTile(tile, task.db)
		if err != nil {
			log.Errorf("save %v tile to mbtiles db error ~ %s", tile.T, err)
			task.count("error")
			continue
		}
		task.count("saved")
	}
}

func (task *Task) count(result string) {
	if task.metrics != nil {
		task.metrics.SeedTiles.WithLabelValues(result).Inc()
	}
	if result == "error" {
		task.mu.Lock()
		task.failed++
		task.mu.Unlock()
	}
}

//tileFetcher fetch one elevation tile and hand it to the writer
func (task *Task) tileFetcher(ctx context.Context, t maptile.Tile) {
	defer task.wg.Done()
	defer func() {
		<-task.workers
	}()
	start := time.Now()
	body, err := task.source.FetchTile(ctx, t)
	if err != nil {
		log.Warnf("fetch %v tile error ~ %s", t, err)
		task.count("error")
		return
	}
	tile := Tile{T: t, C: body}
	if task.outformat == "mbtiles" {
		task.savingpipe <- tile
	} else {
		if err := saveToFiles(tile, task.outdir, task.ext); err != nil {
			log.Errorf("create %v tile file error ~ %s", tile.T, err)
			task.count("error")
			return
		}
		task.count("saved")
	}
	log.Debugf("tile %v, %.3fs, %.2f kb", t, time.Since(start).Seconds(), float32(len(body))/1024.0)
}

//downloadLayer fetch all tiles of one zoom level
func (task *Task) downloadLayer(ctx context.Context, layer Layer) bool {
	bar := pb.New64(layer.Count).Prefix(fmt.Sprintf("Zoom %d : ", layer.Zoom))
	bar.Start()

	tiles := make([]maptile.Tile, 0, len(layer.tiles))
	for t := range layer.tiles {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Y != tiles[j].Y {
			return tiles[i].Y < tiles[j].Y
		}
		return tiles[i].X < tiles[j].X
	})

	for _, tile := range tiles {
		select {
		case task.workers <- tile:
			bar.Increment()
			task.Bar.Increment()
			task.wg.Add(1)
			go task.tileFetcher(ctx, tile)
		case <-ctx.Done():
			log.Infof("task %s got canceled.", task.ID)
			task.wg.Wait()
			return false
		}
	}
	task.wg.Wait()
	bar.FinishPrint(fmt.Sprintf("task %s zoom %d finished ~", task.ID, layer.Zoom))
	return true
}

//Download run the task until every layer is fetched or ctx is done
func (task *Task) Download(ctx context.Context) error {
	task.Bar = pb.New64(task.Total).Prefix("Task : ")
	task.Bar.Start()
	if task.outformat == "mbtiles" {
		if err := task.SetupMBTileTables(); err != nil {
			return fmt.Errorf("setup mbtiles: %w", err)
		}
		go task.savePipe()
	} else {
		close(task.saved)
	}
	for _, layer := range task.Layers {
		if !task.downloadLayer(ctx, layer) {
			break
		}
	}
	task.wg.Wait()
	close(task.savingpipe)
	<-task.saved
	if task.db != nil {
		if err := optimizeDatabase(task.db); err != nil {
			log.Warnf("optimize %s error ~ %s", task.File, err)
		}
		task.db.Close()
	}
	task.Bar.FinishPrint(fmt.Sprintf("task %s finished ~", task.ID))
	if task.failed > 0 {
		log.Warnf("task %s: %d of %d tiles failed", task.ID, task.failed, task.Total)
	}
	return ctx.Err()
}
