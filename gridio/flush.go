// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/compress/zstd"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gridslice/grid"
)

// collective writes file f together with the other participants:
//
//  1. the participants agree on the header size;
//  2. rank 0 creates the file, writes the header and sizes the file;
//  3. status is reduced, so that a failure in (2) or a failure
//     reported by the caller stops everyone;
//  4. every participant writes its meshes at their offsets;
//  5. status is reduced again, followed by a barrier when flushing.
//
// Every participant makes the same sequence of collective calls
// regardless of local failures; failures travel as status values.
func (w *Writer) collective(ctx context.Context, f *bucket, status int64) error {
	h := w.fileHeader(f)
	enc, err := encodeHeader(h)
	if err != nil {
		log.Error.Printf("gridio.Writer: %s: %v", f.name, err)
		status = 1
	}
	n, err := w.comm.AllReduceMax(ctx, int64(len(enc)))
	if err != nil {
		return w.fail(f, err)
	}
	var (
		size = headerSize(n)
		base = dataOffset(size)
		out  *os.File
	)
	if w.rank == 0 && status == 0 {
		if out, err = w.create(f.name, enc, size, base+h.NumSteps()*h.RecordSize()); err != nil {
			log.Error.Printf("gridio.Writer: create %s: %v", f.name, err)
			status = 1
		}
	}
	closeOut := func() {
		if out == nil {
			return
		}
		if err := out.Close(); err != nil && status == 0 {
			log.Error.Printf("gridio.Writer: close %s: %v", f.name, err)
			status = 1
		}
		out = nil
	}
	if status, err = w.comm.AllReduceMax(ctx, status); err != nil || status != 0 {
		closeOut()
		return w.fail(f, err)
	}

	if f.have > 0 {
		if out == nil {
			if out, err = os.OpenFile(f.name, os.O_WRONLY, 0); err != nil {
				log.Error.Printf("gridio.Writer: open %s: %v", f.name, err)
				status = 1
			}
		}
		if status == 0 {
			if err := w.writeTiles(out, &h, f, base); err != nil {
				log.Error.Printf("gridio.Writer: write %s: %v", f.name, err)
				status = 1
			}
		}
	}
	if out != nil && status == 0 && w.config.FlushFiles {
		if err := out.Sync(); err != nil {
			log.Error.Printf("gridio.Writer: sync %s: %v", f.name, err)
			status = 1
		}
	}
	closeOut()
	if status, err = w.comm.AllReduceMax(ctx, status); err != nil || status != 0 {
		return w.fail(f, err)
	}
	if w.config.FlushFiles {
		if err := w.comm.Barrier(ctx); err != nil {
			return w.fail(f, err)
		}
	}
	w.stats.Int("files").Add(1)
	log.Debug.Printf("gridio.Writer: rank %d: wrote %s steps %v (%d local steps)", w.rank, f.name, f.steps, f.have)
	return nil
}

func (w *Writer) create(path string, enc []byte, size, total int64) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if w.config.Mode == NoClobber {
		flags |= os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.E(errors.Exists, fmt.Sprintf("gridio: %s exists", path), err)
		}
		return nil, err
	}
	pre := preamble(enc, size)
	if _, err = out.WriteAt(pre, 0); err == nil {
		err = out.Truncate(total)
	}
	if err != nil {
		out.Close()
		return nil, err
	}
	w.stats.Int("bytes").Add(int64(len(pre)))
	return out, nil
}

// writeTiles writes the local meshes of f at their offsets.
func (w *Writer) writeTiles(out io.WriterAt, h *Header, f *bucket, base int64) error {
	var (
		rec   = h.RecordSize()
		buf   []byte
		bytes = w.stats.Int("bytes")
	)
	for s, meshes := range f.tiles {
		var (
			step = f.steps[0] + int64(s)
			off  = base + int64(s)*rec
		)
		for _, m := range meshes {
			err := w.eachRow(h, m, step, func(pos int64, vals []float64) error {
				n := 8 * len(vals)
				if cap(buf) < n {
					buf = make([]byte, n)
				}
				buf = buf[:n]
				putFloats(buf, vals)
				if _, err := out.WriteAt(buf, off+pos); err != nil {
					return err
				}
				bytes.Add(int64(n))
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// stream writes file f sequentially through package file. It is
// used in ordered runs on a single participant, where compression and
// unlimited time dimensions are available.
func (w *Writer) stream(ctx context.Context, f *bucket, status int64) (err error) {
	defer func() {
		if err != nil {
			w.failed = errors.E(errors.Fatal, fmt.Sprintf("gridio.Writer: %s", f.name), err)
			log.Error.Printf("%v", w.failed)
			err = w.failed
		}
	}()
	if status != 0 {
		return errors.E(errors.Canceled, "the run failed")
	}
	h := w.fileHeader(f)
	enc, err := encodeHeader(h)
	if err != nil {
		return err
	}
	if w.config.Mode == NoClobber {
		if _, err := file.Stat(ctx, f.name); err == nil {
			return errors.E(errors.Exists, fmt.Sprintf("gridio: %s exists", f.name))
		}
	}
	out, err := file.Create(ctx, f.name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(ctx); err == nil && cerr != nil {
			err = cerr
		}
	}()
	wr := out.Writer(ctx)
	if _, err = wr.Write(preamble(enc, headerSize(int64(len(enc))))); err != nil {
		return err
	}
	if h.Compressed {
		zw, zerr := zstd.NewWriter(wr)
		if zerr != nil {
			return zerr
		}
		defer fileio.CloseAndReport(zw, &err)
		wr = zw
	}
	rec := make([]byte, h.RecordSize())
	for s := int64(0); s < f.steps.Len(); s++ {
		step := f.steps[0] + s
		for i := range rec {
			rec[i] = 0
		}
		var meshes []*grid.Mesh
		if f.tiles != nil {
			meshes = f.tiles[s]
		}
		for _, m := range meshes {
			err = w.eachRow(&h, m, step, func(pos int64, vals []float64) error {
				putFloats(rec[pos:], vals)
				return nil
			})
			if err != nil {
				return err
			}
		}
		if h.Unlimited {
			if err = binary.Write(wr, binary.LittleEndian, step); err != nil {
				return err
			}
		}
		if _, err = wr.Write(rec); err != nil {
			return err
		}
		w.stats.Int("bytes").Add(int64(len(rec)))
	}
	w.stats.Int("files").Add(1)
	log.Debug.Printf("gridio.Writer: streamed %s steps %v compressed=%v unlimited=%v", f.name, f.steps, h.Compressed, h.Unlimited)
	return nil
}
