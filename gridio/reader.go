// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/compress/zstd"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/gridslice"
)

// File is a gridio file read into memory.
type File struct {
	Header Header
	// records maps each step to the offset of its record in data.
	records map[int64]int64
	data    []byte
}

// Open reads the file at path, which may name any location supported
// by github.com/grailbio/base/file.
func Open(ctx context.Context, path string) (_ *File, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(ctx); err == nil && cerr != nil {
			err = cerr
		}
	}()
	r := f.Reader(ctx)
	h, _, err := readPreamble(r)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("gridio.Open %s", path), err)
	}
	var data []byte
	if h.Compressed {
		zr, zerr := zstd.NewReader(r)
		if zerr != nil {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("gridio.Open %s", path), zerr)
		}
		data, err = io.ReadAll(zr)
		fileio.CloseAndReport(zr, &err)
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, errors.E(fmt.Sprintf("gridio.Open %s", path), err)
	}
	return parse(h, data)
}

func parse(h Header, data []byte) (*File, error) {
	f := &File{Header: h, data: data, records: make(map[int64]int64)}
	size := h.RecordSize()
	if !h.Unlimited {
		if int64(len(data)) < h.NumSteps()*size {
			return nil, errors.E(errors.Integrity,
				fmt.Sprintf("gridio: have %d bytes of data, want %d", len(data), h.NumSteps()*size))
		}
		for s := int64(0); s < h.NumSteps(); s++ {
			f.records[h.Steps[0]+s] = s * size
		}
		return f, nil
	}
	r := bytes.NewReader(data)
	for off := int64(0); off < int64(len(data)); off += 8 + size {
		var step int64
		if err := binary.Read(r, binary.LittleEndian, &step); err != nil {
			return nil, errors.E(errors.Integrity, "gridio: truncated record", err)
		}
		if off+8+size > int64(len(data)) {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("gridio: truncated record for step %d", step))
		}
		f.records[step] = off + 8
		if _, err := r.Seek(size, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Steps returns the number of step records in the file.
func (f *File) Steps() int {
	return len(f.records)
}

func (f *File) record(step int64) ([]byte, error) {
	off, ok := f.records[step]
	if !ok {
		return nil, errors.E(gridslice.OutOfRange, fmt.Sprintf("gridio: no record for step %d", step))
	}
	return f.data[off : off+f.Header.RecordSize()], nil
}

// Point returns the values of point array name at the provided step.
func (f *File) Point(name string, step int64) ([]float64, error) {
	a := f.Header.pointIndex(name)
	if a < 0 {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("gridio: no point array %q", name))
	}
	rec, err := f.record(step)
	if err != nil {
		return nil, err
	}
	off := f.Header.PointOffset(a)
	return getFloats(rec[off : off+8*f.Header.Extent.Len()]), nil
}

// Info returns the values of information array name at the provided
// step.
func (f *File) Info(name string, step int64) ([]float64, error) {
	a := f.Header.infoIndex(name)
	if a < 0 {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("gridio: no information array %q", name))
	}
	rec, err := f.record(step)
	if err != nil {
		return nil, err
	}
	off := f.Header.InfoOffset(a)
	return getFloats(rec[off : off+8*int64(f.Header.InfoArrays[a].Size)]), nil
}
