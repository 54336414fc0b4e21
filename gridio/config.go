// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridio

import (
	"strings"

	"github.com/grailbio/base/config"
)

func init() {
	config.Register("gridslice/writer", func(inst *config.Constructor) {
		c := DefaultConfig()
		var mode, points, infos string
		inst.StringVar(&c.FileName, "file-name", c.FileName, "output file name template; "+TimePlaceholder+" is replaced by the date or step of each file")
		inst.StringVar(&c.DateFormat, "date-format", c.DateFormat, "strftime format of dates in file names")
		inst.IntVar(&c.StepsPerFile, "steps-per-file", c.StepsPerFile, "number of time steps per file")
		inst.StringVar(&mode, "mode", c.Mode.String(), "clobber or noclobber")
		inst.BoolVar(&c.UnlimitedDim, "unlimited", false, "write an unlimited time dimension (ordered runs only)")
		inst.IntVar(&c.CompressionLevel, "compression-level", 0, "compress files when positive (ordered runs only)")
		inst.BoolVar(&c.FlushFiles, "flush-files", false, "sync each file before it is considered written")
		inst.StringVar(&points, "point-arrays", "", "comma separated point arrays to write; all when empty")
		inst.StringVar(&infos, "information-arrays", "", "comma separated information arrays to write; all when empty")
		inst.Doc = "gridslice/writer configures the collective file writer"
		inst.New = func() (interface{}, error) {
			m, err := ParseMode(mode)
			if err != nil {
				return nil, err
			}
			c.Mode = m
			c.PointArrays = splitList(points)
			c.InfoArrays = splitList(infos)
			return NewWriter(c), nil
		}
	})
}

func splitList(s string) []string {
	var list []string
	for _, elem := range strings.Split(s, ",") {
		if elem = strings.TrimSpace(elem); elem != "" {
			list = append(list, elem)
		}
	}
	return list
}
