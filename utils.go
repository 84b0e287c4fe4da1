package main

import (
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
)

func saveToMBTile(tile Tile, db *sql.DB) error {
	_, err := db.Exec("insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);", tile.T.Z, tile.T.X, tile.flipY(), tile.C)
	if err != nil {
		return err
	}
	return nil
}

func saveToFiles(tile Tile, rootdir, ext string) error {
	dir := filepath.Join(rootdir, fmt.Sprintf(`%d`, tile.T.Z), fmt.Sprintf(`%d`, tile.T.X))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	fileName := filepath.Join(dir, fmt.Sprintf(`%d.%s`, tile.T.Y, ext))
	err := ioutil.WriteFile(fileName, tile.C, 0644)
	if err != nil {
		return err
	}
	log.Debug(fileName)
	return nil
}

func optimizeConnection(db *sql.DB) error {
	_, err := db.Exec("PRAGMA synchronous=0")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA locking_mode=EXCLUSIVE")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA journal_mode=DELETE")
	if err != nil {
		return err
	}
	return nil
}

func optimizeDatabase(db *sql.DB) error {
	_, err := db.Exec("ANALYZE;")
	if err != nil {
		return err
	}

	_, err = db.Exec("VACUUM;")
	if err != nil {
		return err
	}

	return nil
}

// loadCollection reads every geometry of a GeoJSON feature collection.
func loadCollection(path string) (orb.Collection, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal feature collection: %w", err)
	}

	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}

	return collection, nil
}

// coverTiles returns the tiles of zoom z intersecting the bounds of the
// collection's geometries, grown by one tile on every side so each covered
// tile has its full elevation neighborhood.
func coverTiles(c orb.Collection, z int) maptile.Set {
	set := make(maptile.Set)
	for _, g := range c {
		if g == nil {
			continue
		}
		b := g.Bound()
		nw := maptile.At(orb.Point{b.Left(), b.Top()}, maptile.Zoom(z))
		se := maptile.At(orb.Point{b.Right(), b.Bottom()}, maptile.Zoom(z))
		for y := int(nw.Y); y <= int(se.Y); y++ {
			for x := int(nw.X); x <= int(se.X); x++ {
				center := TileAddress{Z: z, X: x, Y: y}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if n, ok := center.Neighbor(dx, dy); ok {
							set[n.Tile()] = true
						}
					}
				}
			}
		}
	}
	return set
}
