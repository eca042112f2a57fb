// Package czi reads pixel data from Carl Zeiss CZI microscopy files.
//
// A CZI file stores an image as sub-blocks (tiles) listed in a directory.
// Opening a file groups the tiles into series, each a pyramid of
// resolution levels, and indexes every level by plane. Regions are
// assembled on demand from the intersecting tiles, which are decoded in
// parallel and kept in a byte-bounded cache shared by all duplicates of a
// reader.
//
//	r, err := czi.Open("slide.czi", czi.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	buf, err := r.OpenBytes(ctx, 0, 0, 0, 512, 512)
package czi
