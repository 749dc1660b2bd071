package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/twpayne/go-landcover"
	"github.com/twpayne/go-landcover/gdal"
)

const usage = "syntax: landcover [-config job.yaml] [-v] info|extract|tile|stats [flags]"

// A command is a subcommand and its flags.
type command struct {
	flags *flag.FlagSet
	run   func(ctx context.Context, stdout io.Writer) error
}

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	driver string
	raster string
	noData int64
}

// windowFlags select a sub-region of a raster.
type windowFlags struct {
	x, y, width, height int
	bbox                string
	bboxCRS             string
}

func newCommonFlags(flags *flag.FlagSet, c *config) *commonFlags {
	f := &commonFlags{}
	flags.StringVar(&f.driver, "driver", c.Driver, "raster driver (geotiff or gdal)")
	flags.StringVar(&f.raster, "raster", c.Raster, "raster path")
	flags.Int64Var(&f.noData, "nodata", c.NoData, "no-data value replaced by zero")
	return f
}

func newWindowFlags(flags *flag.FlagSet, c *config) *windowFlags {
	f := &windowFlags{}
	flags.IntVar(&f.x, "x", c.X, "x offset from the western edge, in world units")
	flags.IntVar(&f.y, "y", c.Y, "y offset from the northern edge, in world units")
	flags.IntVar(&f.width, "width", c.Width, "width, in world units")
	flags.IntVar(&f.height, "height", c.Height, "height, in world units")
	flags.StringVar(&f.bbox, "bbox", c.BBox, "bounding box minx,miny,maxx,maxy (overrides -x, -y, -width, and -height)")
	flags.StringVar(&f.bboxCRS, "bbox-crs", c.BBoxCRS, "CRS of -bbox")
	return f
}

func (f *commonFlags) driverValue() (landcover.Driver, error) {
	switch f.driver {
	case "geotiff":
		return landcover.NewGeoTIFFDriver(), nil
	case "gdal":
		return gdal.NewDriver(), nil
	default:
		return nil, fmt.Errorf("%s: unknown driver", f.driver)
	}
}

func (f *commonFlags) openRaster(ctx context.Context, logger logrus.FieldLogger) (landcover.Driver, *landcover.Raster, error) {
	if f.raster == "" {
		return nil, nil, errors.New("missing -raster")
	}
	driver, err := f.driverValue()
	if err != nil {
		return nil, nil, err
	}
	raster, err := landcover.NewRaster(ctx, driver, f.raster,
		landcover.WithNoData(f.noData),
		landcover.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return driver, raster, nil
}

// selection returns the selection of raster described by f.
func (f *windowFlags) selection(ctx context.Context, raster *landcover.Raster) (*landcover.Selection, error) {
	if f.bbox == "" {
		return raster.Select(ctx, landcover.Window{
			XOffset: f.x,
			YOffset: f.y,
			Width:   f.width,
			Height:  f.height,
		})
	}
	values, err := parseFloats(f.bbox)
	if err != nil {
		return nil, fmt.Errorf("-bbox: %w", err)
	}
	if len(values) != 4 {
		return nil, errors.New("-bbox: expected minx,miny,maxx,maxy")
	}
	envelope := landcover.Envelope{
		Left:   values[0],
		Right:  values[2],
		Bottom: values[1],
		Top:    values[3],
	}
	if srid := raster.SRID(); srid != 0 && !strings.EqualFold(f.bboxCRS, fmt.Sprintf("epsg:%d", srid)) {
		envelope, err = landcover.TransformEnvelope(envelope, f.bboxCRS, fmt.Sprintf("epsg:%d", srid))
		if err != nil {
			return nil, err
		}
	}
	envelope, err = raster.Shape().Intersection(envelope)
	if err != nil {
		return nil, err
	}
	return raster.SelectEnvelope(ctx, envelope)
}

func newInfoCommand(c *config, logger logrus.FieldLogger) *command {
	flags := flag.NewFlagSet("info", flag.ContinueOnError)
	common := newCommonFlags(flags, c)
	return &command{
		flags: flags,
		run: func(ctx context.Context, stdout io.Writer) error {
			_, raster, err := common.openRaster(ctx, logger)
			if err != nil {
				return err
			}
			defer raster.Close()
			width, height := raster.Size()
			fmt.Fprintf(stdout, "shape: %v\n", raster.Shape())
			fmt.Fprintf(stdout, "size: %dx%d\n", width, height)
			fmt.Fprintf(stdout, "cell_size: %g\n", raster.CellSize())
			fmt.Fprintf(stdout, "srid: %d\n", raster.SRID())
			fmt.Fprintf(stdout, "max_val: %d\n", raster.MaxValue())
			fmt.Fprintf(stdout, "precision: %d\n", raster.Precision())
			fmt.Fprintf(stdout, "n_classes: %d\n", raster.NClasses())
			fmt.Fprintf(stdout, "values: %v\n", raster.Values())
			return nil
		},
	}
}

func newExtractCommand(c *config, logger logrus.FieldLogger) *command {
	flags := flag.NewFlagSet("extract", flag.ContinueOnError)
	common := newCommonFlags(flags, c)
	window := newWindowFlags(flags, c)
	output := flags.String("o", c.Output, "output path")
	keep := flags.String("keep", formatInts(c.Keep), "comma-separated values to keep, others are set to zero")
	return &command{
		flags: flags,
		run: func(ctx context.Context, stdout io.Writer) error {
			if *output == "" {
				return errors.New("missing -o")
			}
			keepValues, err := parseInts(*keep)
			if err != nil {
				return fmt.Errorf("-keep: %w", err)
			}
			driver, raster, err := common.openRaster(ctx, logger)
			if err != nil {
				return err
			}
			defer raster.Close()
			selection, err := window.selection(ctx, raster)
			if err != nil {
				return err
			}
			if len(keepValues) != 0 {
				selection = selection.Keep(keepValues...)
			}
			logger.WithFields(logrus.Fields{
				"envelope": selection.Envelope,
				"output":   *output,
			}).Info("writing selection")
			return selection.Write(driver, *output)
		},
	}
}

func newTileCommand(c *config, logger logrus.FieldLogger) *command {
	flags := flag.NewFlagSet("tile", flag.ContinueOnError)
	common := newCommonFlags(flags, c)
	tileSize := flags.Int("size", c.TileSize, "tile size, in world units (0 for a single tile)")
	output := flags.String("o", c.Output, "output path format, containing %d")
	index := flags.String("index", c.Index, "GeoJSON tile index output path")
	return &command{
		flags: flags,
		run: func(ctx context.Context, stdout io.Writer) error {
			if *output == "" {
				return errors.New("missing -o")
			}
			if strings.Count(*output, "%d") != 1 || strings.Count(*output, "%") != 1 {
				return fmt.Errorf("-o %s: must contain exactly one %%d", *output)
			}
			driver, raster, err := common.openRaster(ctx, logger)
			if err != nil {
				return err
			}
			defer raster.Close()
			count, err := raster.WriteTiles(ctx, driver, *tileSize, func(index int) string {
				return fmt.Sprintf(*output, index)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %d tiles\n", count)
			if *index == "" {
				return nil
			}
			featureCollection := landcover.TileIndex(raster.TileEnvelopes(*tileSize))
			data, err := featureCollection.MarshalJSON()
			if err != nil {
				return err
			}
			return os.WriteFile(*index, data, 0o666)
		},
	}
}

func newStatsCommand(c *config, logger logrus.FieldLogger) *command {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	common := newCommonFlags(flags, c)
	window := newWindowFlags(flags, c)
	classes := flags.String("classes", c.Classes, "class table CSV path")
	codeColumn := flags.String("code-column", c.CodeColumn, "class code column (default first)")
	nameColumn := flags.String("name-column", c.NameColumn, "class name column (default second)")
	return &command{
		flags: flags,
		run: func(ctx context.Context, stdout io.Writer) error {
			if *classes == "" {
				return errors.New("missing -classes")
			}
			classTable, err := landcover.ReadClassTableFile(*classes,
				landcover.WithCodeColumn(*codeColumn),
				landcover.WithNameColumn(*nameColumn),
			)
			if err != nil {
				return err
			}
			_, raster, err := common.openRaster(ctx, logger)
			if err != nil {
				return err
			}
			defer raster.Close()
			selection, err := window.selection(ctx, raster)
			if err != nil {
				return err
			}
			classStats := selection.ClassStats(classTable)
			for _, dropped := range classStats.Dropped {
				logger.WithFields(logrus.Fields{
					"code":   dropped.Value,
					"pixels": dropped.Count,
				}).Warn("class code not in class table")
			}
			return classStats.WriteTable(stdout)
		},
	}
}

func parseFloats(s string) ([]float64, error) {
	var values []float64
	for _, field := range strings.Split(s, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func parseInts(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var values []int64
	for _, field := range strings.Split(s, ",") {
		value, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func formatInts(values []int64) string {
	fields := make([]string, len(values))
	for i, value := range values {
		fields[i] = strconv.FormatInt(value, 10)
	}
	return strings.Join(fields, ",")
}

func run(args []string, stdout io.Writer) error {
	globalFlags := flag.NewFlagSet("landcover", flag.ContinueOnError)
	configFile := globalFlags.String("config", "", "YAML job file providing flag defaults")
	verbose := globalFlags.Bool("v", false, "verbose")
	if err := globalFlags.Parse(args); err != nil {
		return err
	}

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	c, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	if globalFlags.NArg() == 0 {
		return errors.New(usage)
	}
	var cmd *command
	switch name := globalFlags.Arg(0); name {
	case "info":
		cmd = newInfoCommand(c, logger)
	case "extract":
		cmd = newExtractCommand(c, logger)
	case "tile":
		cmd = newTileCommand(c, logger)
	case "stats":
		cmd = newStatsCommand(c, logger)
	default:
		return fmt.Errorf("%s: unknown command\n%s", name, usage)
	}
	if err := cmd.flags.Parse(globalFlags.Args()[1:]); err != nil {
		return err
	}
	return cmd.run(context.Background(), stdout)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
