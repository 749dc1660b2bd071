package main

import (
	"os"

	"gopkg.in/yaml.v2"
)

// A config is a job file. Every field provides the default of the flag with
// the same name.
type config struct {
	Driver     string  `yaml:"driver"`
	Raster     string  `yaml:"raster"`
	NoData     int64   `yaml:"nodata"`
	Classes    string  `yaml:"classes"`
	CodeColumn string  `yaml:"code_column"`
	NameColumn string  `yaml:"name_column"`
	X          int     `yaml:"x"`
	Y          int     `yaml:"y"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	BBox       string  `yaml:"bbox"`
	BBoxCRS    string  `yaml:"bbox_crs"`
	TileSize   int     `yaml:"tile_size"`
	Output     string  `yaml:"output"`
	Index      string  `yaml:"index"`
	Keep       []int64 `yaml:"keep"`
}

func defaultConfig() *config {
	return &config{
		Driver:  "geotiff",
		NoData:  255,
		BBoxCRS: "epsg:4326",
	}
}

// loadConfig returns the default config overridden by the job file name, if
// name is not empty.
func loadConfig(name string) (*config, error) {
	c := defaultConfig()
	if name == "" {
		return c, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
