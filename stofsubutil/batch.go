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

package stofsubutil

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"

	"github.com/oceanmodeling/stofsub"
)

// A Batch subsets a set of STOFS forecast products for several dates,
// forecast cycles, and regions, reproducing the operational layout of
// NOAA's public buckets.
type Batch struct {
	// Bucket is the location the products are fetched from: a blob
	// bucket URL such as s3://noaa-gestofs-pds, or a local
	// directory.
	Bucket string

	// Model is the model run name, e.g. stofs_2d_glo.
	Model string

	// Dates holds forecast dates in YYYYMMDD form.
	Dates []string

	// Cycles holds forecast cycle hours in HH form
	// (00, 06, 12, 18).
	Cycles []string

	// Products holds the product file stems to subset,
	// e.g. fields.cwl, fields.htp, fields.swl.
	Products []string

	// ConnectivityProduct names the product whose files carry the
	// element table, used as the companion for products that omit
	// it. fields.cwl if empty.
	ConnectivityProduct string

	// Regions holds the named query regions.
	Regions []Region

	// Window optionally restricts the records copied into each
	// subset.
	Window stofsub.TimeWindow

	// OutDir is where subsets are written:
	// OutDir/<region>/<date>/<model>.t<cycle>z.<product>.nc.
	// It may be a blob bucket URL.
	OutDir string

	// Jobs is the number of forecast files processed concurrently;
	// 1 if zero.
	Jobs int

	Log *logrus.Logger

	// meshCache deduplicates connectivity companion fetches; many
	// cycles of the same model share one mesh.
	meshCache *requestcache.Cache
	cacheOnce sync.Once
}

// batchTask is one forecast file to fetch and subset.
type batchTask struct {
	date, cycle, product string
}

// key returns the operational object key for one forecast file:
// <model>.<date>/<model>.t<cycle>z.<product>.nc.
func (b *Batch) key(t batchTask) string {
	return fmt.Sprintf("%s.%s/%s.t%sz.%s.nc", b.Model, t.date, b.Model, t.cycle, t.product)
}

func (b *Batch) source(t batchTask) string {
	if IsBlob(b.Bucket) || b.Bucket == "" {
		return b.Bucket + "/" + b.key(t)
	}
	return filepath.Join(b.Bucket, filepath.FromSlash(b.key(t)))
}

func (b *Batch) connectivityProduct() string {
	if b.ConnectivityProduct == "" {
		return "fields.cwl"
	}
	return b.ConnectivityProduct
}

func (b *Batch) check() error {
	if b.Bucket == "" {
		return fmt.Errorf("stofsub: batch needs a bucket or source directory")
	}
	if b.Model == "" {
		return fmt.Errorf("stofsub: batch needs a model name")
	}
	if len(b.Dates) == 0 || len(b.Cycles) == 0 || len(b.Products) == 0 {
		return fmt.Errorf("stofsub: batch needs at least one date, cycle, and product")
	}
	if len(b.Regions) == 0 {
		return fmt.Errorf("stofsub: batch needs at least one region")
	}
	return nil
}

// Run fetches and subsets every (date × cycle × product)
// combination. Failures are logged and counted but do not stop the
// remaining work, matching the operational scripts which push on to
// the next forecast file.
func (b *Batch) Run(ctx context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	if b.Log == nil {
		b.Log = logrus.New()
	}
	var tasks []batchTask
	for _, date := range b.Dates {
		for _, cycle := range b.Cycles {
			for _, product := range b.Products {
				tasks = append(tasks, batchTask{date: date, cycle: cycle, product: product})
			}
		}
	}
	jobs := b.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	taskChan := make(chan batchTask)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				if err := b.runTask(ctx, t); err != nil {
					b.Log.WithFields(logrus.Fields{
						"date": t.date, "cycle": t.cycle, "product": t.product,
					}).Error(err)
					mu.Lock()
					failures++
					mu.Unlock()
				}
			}
		}()
	}
	for _, t := range tasks {
		taskChan <- t
	}
	close(taskChan)
	wg.Wait()

	if failures > 0 {
		return fmt.Errorf("stofsub: %d of %d forecast files failed", failures, len(tasks))
	}
	return nil
}

// runTask fetches one forecast file and writes one subset per region.
func (b *Batch) runTask(ctx context.Context, t batchTask) error {
	log := b.Log.WithFields(logrus.Fields{
		"date": t.date, "cycle": t.cycle, "product": t.product,
	})

	start := time.Now()
	local, err := maybeDownload(ctx, b.source(t))
	if err != nil {
		return err
	}
	ds, err := stofsub.OpenDataset(local)
	if err != nil {
		return err
	}
	defer ds.Close()
	log.WithField("elapsed", time.Since(start)).Info("fetched forecast file")

	if err := b.normalize(ctx, ds, t); err != nil {
		return err
	}

	start = time.Now()
	mesh, err := ds.ReadMesh()
	if err != nil {
		return err
	}
	var times []time.Time
	if !b.Window.IsZero() {
		if times, err = ds.Times(); err != nil {
			return err
		}
	}
	log.WithField("elapsed", time.Since(start)).Info("read mesh")

	for _, region := range b.Regions {
		start = time.Now()
		plan, err := stofsub.CropBounds(mesh, region.Bounds)
		if err != nil {
			return fmt.Errorf("region %s: %v", region.Name, err)
		}
		if !b.Window.IsZero() {
			if err := plan.WithTimeWindow(times, b.Window); err != nil {
				return fmt.Errorf("region %s: %v", region.Name, err)
			}
		}
		if err := b.writeSubset(ctx, ds, plan, t, region); err != nil {
			return fmt.Errorf("region %s: %v", region.Name, err)
		}
		log.WithFields(logrus.Fields{
			"region":  region.Name,
			"nodes":   len(plan.Nodes),
			"elapsed": time.Since(start),
		}).Info("wrote subset")
	}
	return nil
}

// normalize prepares ds for subsetting, fetching the connectivity
// companion file for the same date and cycle if ds lacks an element
// table.
func (b *Batch) normalize(ctx context.Context, ds *stofsub.Dataset, t batchTask) error {
	if ds.HasConnectivity() {
		return ds.Normalize(nil)
	}
	companion, err := b.companion(ctx, batchTask{date: t.date, cycle: t.cycle, product: b.connectivityProduct()})
	if err != nil {
		return fmt.Errorf("fetching connectivity companion: %v", err)
	}
	return ds.Normalize(companion)
}

// companion fetches and opens a connectivity companion dataset,
// deduplicating concurrent requests and caching a few open datasets
// since every product of a forecast cycle shares the same mesh.
func (b *Batch) companion(ctx context.Context, t batchTask) (*stofsub.Dataset, error) {
	b.cacheOnce.Do(func() {
		b.meshCache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			tt := request.(batchTask)
			local, err := maybeDownload(ctx, b.source(tt))
			if err != nil {
				return nil, err
			}
			return stofsub.OpenDataset(local)
		}, 1, requestcache.Deduplicate(), requestcache.Memory(4))
	})
	req := b.meshCache.NewRequest(ctx, t, b.key(t))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*stofsub.Dataset), nil
}

// writeSubset writes one region subset to its place in the output
// layout, staging through a temporary file when the destination is a
// blob bucket.
func (b *Batch) writeSubset(ctx context.Context, ds *stofsub.Dataset, plan *stofsub.Plan, t batchTask, region Region) error {
	name := fmt.Sprintf("%s.t%sz.%s.nc", b.Model, t.cycle, t.product)
	if IsBlob(b.OutDir) {
		dir, err := os.MkdirTemp("", "stofsub")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		local := filepath.Join(dir, name)
		if err := stofsub.WriteSubsetFile(ds, plan, local); err != nil {
			return err
		}
		return uploadBlob(ctx, b.OutDir, path.Join(region.Name, t.date, name), local)
	}
	outDir := filepath.Join(b.OutDir, region.Name, t.date)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %v", err)
	}
	return stofsub.WriteSubsetFile(ds, plan, filepath.Join(outDir, name))
}
