/*
Copyright © 2024 the stofsub authors.
This file is part of stofsub.

stofsub is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

stofsub is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with stofsub.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package stofsubutil provides the command-line interface and batch
// orchestration for the stofsub subsetting tool.
package stofsubutil

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oceanmodeling/stofsub"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// log carries CLI progress output; the stofsub package itself stays
// silent.
var log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel sets the logging verbosity (debug, info, warning, error).`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "in",
			usage: `
              in is the model output file to read: a local path or an
              http(s), s3://, gs://, or file:// URL.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), infoCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "out",
			usage: `
              out is the file the result is written to. The extract
              command writes to standard output when out is empty.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "bbox",
			usage: `
              bbox is the query bounding box, as
              'minLon,maxLon,minLat,maxLat' in the coordinate
              convention of the model file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags()},
		},
		{
			name: "connectivity",
			usage: `
              connectivity names a companion file (e.g. the fields.cwl
              product of the same cycle) to take the element table
              from when the input file does not carry one.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "start",
			usage: `
              start restricts the subset to records at or after this
              time (RFC 3339, e.g. 2024-05-16T06:00:00Z).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "end",
			usage: `
              end restricts the subset to records at or before this
              time (RFC 3339).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "drop",
			usage: `
              drop lists additional variables to leave out of the
              subset.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cropCmd.Flags()},
		},
		{
			name: "at",
			usage: `
              at is the query location for time-series extraction, as
              'lon,lat'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "variable",
			usage: `
              variable is the record variable to extract a time
              series from, e.g. zeta.`,
			defaultVal: "zeta",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "bucket",
			usage: `
              bucket is where the batch command fetches forecast files
              from: a blob bucket URL such as s3://noaa-gestofs-pds,
              or a local directory laid out the same way.`,
			defaultVal: "s3://noaa-gestofs-pds",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "model",
			usage: `
              model is the model run name, e.g. stofs_2d_glo.`,
			defaultVal: "stofs_2d_glo",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "dates",
			usage: `
              dates lists forecast dates in YYYYMMDD form.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "cycles",
			usage: `
              cycles lists forecast cycle hours in HH form
              (00, 06, 12, 18).`,
			defaultVal: []string{"00", "06", "12", "18"},
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "products",
			usage: `
              products lists the product file stems to subset,
              e.g. fields.cwl, fields.htp, fields.swl.`,
			defaultVal: []string{"fields.cwl"},
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "connectivityproduct",
			usage: `
              connectivityproduct names the product whose files carry
              the element table, used as the companion for products
              that omit it.`,
			defaultVal: "fields.cwl",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "regions",
			usage: `
              regions holds the query bounding boxes in the packed
              form '(minLon,maxLon,minLat,maxLat)(…)'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "names",
			usage: `
              names lists one name per region, used in the output
              directory layout.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "regionfile",
			usage: `
              regionfile is a TOML file defining named regions, as an
              alternative to the regions and names flags.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "outdir",
			usage: `
              outdir is where subsets are written:
              outdir/<region>/<date>/<model>.t<cycle>z.<product>.nc.
              It may be a blob bucket URL.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "jobs",
			usage: `
              jobs is the number of forecast files processed
              concurrently.`,
			shorthand:  "j",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("STOFSUB")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, v, option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, v, option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, v, option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(infoCmd)
	Root.AddCommand(cropCmd)
	Root.AddCommand(extractCmd)
	Root.AddCommand(batchCmd)
}

// setConfig finds and reads in the configuration file, if there is
// one, and configures logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("stofsub: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("loglevel"))
	if err != nil {
		return fmt.Errorf("stofsub: %v", err)
	}
	log.Level = level
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "stofsub",
	Short: "A subsetting tool for STOFS model output.",
	Long: `stofsub extracts spatial and temporal subsets from STOFS
(Surge and Tide Operational Forecast System) NetCDF model output on
unstructured meshes, either file by file or in batches that mirror
the layout of NOAA's public forecast buckets.

Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the
format 'STOFSUB_var' where 'var' is the name of the variable to be
set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of stofsub.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("stofsub v%s\n", stofsub.Version)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize a model output file.",
	Long: `info prints the mesh convention, sizes, horizontal extent,
time range, and variables of a model output file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openInput(context.Background(), false)
		if err != nil {
			return err
		}
		defer ds.Close()
		s, err := ds.Summarize()
		if err != nil {
			return err
		}
		cmd.Print(s.String())
		return nil
	},
	DisableAutoGenTag: true,
}

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Subset one model output file.",
	Long: `crop cuts the nodes and elements within the query bounding
box (and optionally a time window) out of one model output file and
writes them to a new self-contained NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := Cfg.GetString("out")
		if out == "" {
			return fmt.Errorf("stofsub: crop needs an output file (--out)")
		}
		box, err := ParseBBox(Cfg.GetString("bbox"))
		if err != nil {
			return err
		}
		window, err := timeWindowFromConfig()
		if err != nil {
			return err
		}

		drop, err := getStringSlice("drop")
		if err != nil {
			return err
		}

		start := time.Now()
		ds, err := openInput(ctx, true)
		if err != nil {
			return err
		}
		defer ds.Close()
		ds.Drop(drop...)
		log.WithField("elapsed", time.Since(start)).Info("read input")

		start = time.Now()
		mesh, err := ds.ReadMesh()
		if err != nil {
			return err
		}
		plan, err := stofsub.CropBounds(mesh, box)
		if err != nil {
			return err
		}
		if !window.IsZero() {
			times, err := ds.Times()
			if err != nil {
				return err
			}
			if err := plan.WithTimeWindow(times, window); err != nil {
				return err
			}
		}
		log.WithFields(logrus.Fields{
			"nodes":    len(plan.Nodes),
			"elements": len(plan.Elements),
			"elapsed":  time.Since(start),
		}).Info("planned subset")

		start = time.Now()
		if err := stofsub.WriteSubsetFile(ds, plan, out); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"out":     out,
			"elapsed": time.Since(start),
		}).Info("wrote subset")
		return nil
	},
	DisableAutoGenTag: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a time series at a location.",
	Long: `extract reads the record variable named by --variable at the
mesh node nearest to the --at location and writes the time series as
CSV.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePoint(Cfg.GetString("at"))
		if err != nil {
			return err
		}
		ds, err := openInput(context.Background(), false)
		if err != nil {
			return err
		}
		defer ds.Close()

		node, err := nearestNode(ds, p)
		if err != nil {
			return err
		}
		variable := Cfg.GetString("variable")
		series, err := ds.ReadSeries(variable, node)
		if err != nil {
			return err
		}
		times, err := ds.Times()
		if err != nil {
			return err
		}

		w := os.Stdout
		if out := Cfg.GetString("out"); out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("stofsub: creating output file: %v", err)
			}
			defer f.Close()
			w = f
		}
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"time", variable}); err != nil {
			return err
		}
		for i, v := range series {
			if err := cw.Write([]string{times[i].Format(time.RFC3339), strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	},
	DisableAutoGenTag: true,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Subset a set of forecast files.",
	Long: `batch fetches every (date × cycle × product) forecast file
from the bucket and writes one subset per region to
outdir/<region>/<date>/<model>.t<cycle>z.<product>.nc, matching the
layout the operational subsetting workflow produces.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, err := regionsFromConfig()
		if err != nil {
			return err
		}
		window, err := timeWindowFromConfig()
		if err != nil {
			return err
		}
		dates, err := getStringSlice("dates")
		if err != nil {
			return err
		}
		cycles, err := getStringSlice("cycles")
		if err != nil {
			return err
		}
		products, err := getStringSlice("products")
		if err != nil {
			return err
		}
		b := &Batch{
			Bucket:              Cfg.GetString("bucket"),
			Model:               Cfg.GetString("model"),
			Dates:               dates,
			Cycles:              cycles,
			Products:            products,
			ConnectivityProduct: Cfg.GetString("connectivityproduct"),
			Regions:             regions,
			Window:              window,
			OutDir:              Cfg.GetString("outdir"),
			Jobs:                Cfg.GetInt("jobs"),
			Log:                 log,
		}
		return b.Run(context.Background())
	},
	DisableAutoGenTag: true,
}

// openInput opens the file named by the in flag, downloading it
// first if it is remote. If needConnectivity is true the dataset is
// normalized for subsetting, attaching the companion named by the
// connectivity flag when necessary.
func openInput(ctx context.Context, needConnectivity bool) (*stofsub.Dataset, error) {
	in := os.ExpandEnv(Cfg.GetString("in"))
	if in == "" {
		return nil, fmt.Errorf("stofsub: no input file specified (--in)")
	}
	local, err := maybeDownload(ctx, in)
	if err != nil {
		return nil, err
	}
	ds, err := stofsub.OpenDataset(local)
	if err != nil {
		return nil, err
	}
	if !needConnectivity {
		return ds, nil
	}
	var companion *stofsub.Dataset
	if c := os.ExpandEnv(Cfg.GetString("connectivity")); c != "" {
		localC, err := maybeDownload(ctx, c)
		if err != nil {
			ds.Close()
			return nil, err
		}
		if companion, err = stofsub.OpenDataset(localC); err != nil {
			ds.Close()
			return nil, err
		}
		defer companion.Close()
	}
	if err := ds.Normalize(companion); err != nil {
		ds.Close()
		return nil, err
	}
	return ds, nil
}

// nearestNode locates the mesh node closest to p, using the element
// index when the dataset carries connectivity and a plain coordinate
// scan otherwise.
func nearestNode(ds *stofsub.Dataset, p geom.Point) (int, error) {
	if ds.HasConnectivity() {
		mesh, err := ds.ReadMesh()
		if err != nil {
			return 0, err
		}
		return mesh.NearestNode(p), nil
	}
	c, err := ds.Convention()
	if err != nil {
		return 0, err
	}
	x, err := ds.ReadFloat(c.XVar)
	if err != nil {
		return 0, err
	}
	y, err := ds.ReadFloat(c.YVar)
	if err != nil {
		return 0, err
	}
	best, bestDist := -1, -1.0
	for i := range x {
		dx, dy := x[i]-p.X, y[i]-p.Y
		if d := dx*dx + dy*dy; best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

func parsePoint(s string) (geom.Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return geom.Point{}, fmt.Errorf("stofsub: location %q must be 'lon,lat'", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("stofsub: location %q: %v", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("stofsub: location %q: %v", s, err)
	}
	return geom.Point{X: x, Y: y}, nil
}

// timeWindowFromConfig builds the record selection window from the
// start and end flags.
func timeWindowFromConfig() (stofsub.TimeWindow, error) {
	var w stofsub.TimeWindow
	if s := Cfg.GetString("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return w, fmt.Errorf("stofsub: parsing start time: %v", err)
		}
		w.Start = t
	}
	if s := Cfg.GetString("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return w, fmt.Errorf("stofsub: parsing end time: %v", err)
		}
		w.End = t
	}
	return w, nil
}

// regionsFromConfig assembles the batch regions from either the
// region file or the packed regions/names flags.
func regionsFromConfig() ([]Region, error) {
	if rf := os.ExpandEnv(Cfg.GetString("regionfile")); rf != "" {
		return LoadRegionFile(rf)
	}
	bounds, err := ParseRegions(Cfg.GetString("regions"))
	if err != nil {
		return nil, err
	}
	names, err := getStringSlice("names")
	if err != nil {
		return nil, err
	}
	return NamedRegions(bounds, names)
}
