// Package container reads and writes DBC1 dataset containers.
//
// A container is a single file holding named sets (e.g. "train", "test"),
// each a flat group of named n-dimensional arrays called fields. Arrays are
// stored back to back after a fixed 64-byte header and indexed by a
// directory at the end of the file. Header and directory carry CRC32-C
// checksums.
//
// # Basic Usage
//
//	r, err := container.Open(path)
//	if err != nil {
//	    // [ErrCorrupt]/[ErrIncompatible]: regenerate the file
//	}
//	defer r.Close()
//
//	labels, err := r.Get("train", "labels", nil)        // whole field
//	img, err := r.Get("train", "images", container.At(3)) // one row
//	n, err := r.Size("train", "")                         // number of objects
//
// # Objects
//
// A set may carry an object layout: "object_ids" holds one id vector per
// object, and "object_fields" (in the train set) names the field each column
// of the vector points into. [Reader.GetObject] returns raw id vectors, or,
// with resolve set, the referenced rows of every field.
//
// # Writing
//
//	w := container.NewWriter()
//	w.Put("train", "labels", labels)
//	w.PutObjects("train", []string{"images", "labels"}, ids)
//	err := w.WriteFile(path)
//
// # Concurrency
//
// [Reader] methods are safe for concurrent use. Readers never write, so any
// number of processes may open the same file. [Writer] is not safe for
// concurrent use.
package container
