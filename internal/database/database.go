// Package database reads and writes the binary photon databases:
// one record per photon leaving through a tracked surface, and for
// perturbation runs the matching per-region collision records.
//
// Records are little-endian. A photon record is x, y, z, ux, uy, uz,
// weight and time as float64 followed by the state flag as int32.
// A collision record is, for every region, the collision count as int64
// followed by the path length as float64.
// Each file has a TOML header named after it with a .txt extension.
package database

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

const (
	PhotonRecordSize    = 8*8 + 4
	CollisionRecordSize = 8 + 8 // per region
)

// Header is the text sidecar describing a database file.
type Header struct {
	VirtualBoundaryType string `toml:"VirtualBoundaryType"`
	NumberOfElements    int64  `toml:"NumberOfElements"`
	NumberOfSubRegions  int    `toml:"NumberOfSubRegions,omitempty"`
}

func (h Header) recordSize() int64 {
	if h.NumberOfSubRegions > 0 {
		return int64(h.NumberOfSubRegions) * CollisionRecordSize
	}
	return PhotonRecordSize
}

func headerPath(dir, name string) string {
	return filepath.Join(dir, name+".txt")
}

// Writer appends records to one database file.
// The header is written by Close.
type Writer struct {
	name   string
	dir    string
	f      *os.File
	bw     *bufio.Writer
	header Header
	buf    []byte
}

// Create starts a photon database; regions > 0 starts a collision database instead.
func Create(dir, name, virtualBoundary string, regions int) (*Writer, error) {
	f, err := utils.OpenFile(dir, name)
	if err != nil {
		return nil, errs.IO(err, "database %s", name)
	}
	w := &Writer{
		name:   name,
		dir:    dir,
		f:      f,
		bw:     bufio.NewWriter(f),
		header: Header{VirtualBoundaryType: virtualBoundary, NumberOfSubRegions: regions},
	}
	w.buf = make([]byte, w.header.recordSize())
	log.Debug().Str("database", filepath.Join(dir, name)).Msg("database created")
	return w, nil
}

func (w *Writer) Name() string { return w.name }

func (w *Writer) Count() int64 { return w.header.NumberOfElements }

func (w *Writer) WriteDataPoint(dp photon.DataPoint) error {
	if w.header.NumberOfSubRegions > 0 {
		return errs.IO(nil, "database %s holds collision records", w.name)
	}
	b := w.buf
	for i, v := range []float64{
		dp.Position.X, dp.Position.Y, dp.Position.Z,
		dp.Direction.X, dp.Direction.Y, dp.Direction.Z,
		dp.Weight, dp.TotalTime,
	} {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	binary.LittleEndian.PutUint32(b[64:], uint32(dp.StateFlag))
	return w.write(b)
}

func (w *Writer) WriteCollisionInfo(info photon.CollisionInfo) error {
	if len(info) != w.header.NumberOfSubRegions {
		return errs.IO(nil, "database %s: %d regions in a record of %d", w.name, len(info), w.header.NumberOfSubRegions)
	}
	b := w.buf
	for i, s := range info {
		binary.LittleEndian.PutUint64(b[16*i:], uint64(s.NumberOfCollisions))
		binary.LittleEndian.PutUint64(b[16*i+8:], math.Float64bits(s.PathLength))
	}
	return w.write(b)
}

func (w *Writer) write(b []byte) error {
	if _, err := w.bw.Write(b); err != nil {
		return errs.IO(err, "database %s", w.name)
	}
	w.header.NumberOfElements++
	return nil
}

// Close flushes the records and writes the header.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return errs.IO(err, "database %s", w.name)
	}
	if err := w.f.Close(); err != nil {
		return errs.IO(err, "database %s", w.name)
	}
	hf, err := os.Create(headerPath(w.dir, w.name))
	if err != nil {
		return errs.IO(err, "database %s header", w.name)
	}
	if err := toml.NewEncoder(hf).Encode(w.header); err != nil {
		hf.Close()
		return errs.IO(err, "database %s header", w.name)
	}
	if err := hf.Close(); err != nil {
		return errs.IO(err, "database %s header", w.name)
	}
	log.Debug().Str("database", w.name).Int64("records", w.header.NumberOfElements).Msg("database closed")
	return nil
}

// Reader iterates over the records of one database file.
// Readers share nothing and may be used from different goroutines.
type Reader struct {
	name   string
	f      *os.File
	br     *bufio.Reader
	header Header
	read   int64
	buf    []byte
}

// Open checks the header against the file size.
func Open(dir, name string) (*Reader, error) {
	var h Header
	if _, err := toml.DecodeFile(headerPath(dir, name), &h); err != nil {
		return nil, errs.IO(err, "database %s header", name)
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, errs.IO(err, "database %s", name)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.IO(err, "database %s", name)
	}
	if want := h.NumberOfElements * h.recordSize(); st.Size() != want {
		f.Close()
		return nil, errs.IO(nil, "database %s: %d bytes, header announces %d records (%d bytes)", name, st.Size(), h.NumberOfElements, want)
	}
	return &Reader{name: name, f: f, br: bufio.NewReader(f), header: h, buf: make([]byte, h.recordSize())}, nil
}

func (r *Reader) Header() Header { return r.header }

func (r *Reader) next() error {
	if r.read >= r.header.NumberOfElements {
		return io.EOF
	}
	if _, err := io.ReadFull(r.br, r.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.IO(err, "database %s: short read at record %d", r.name, r.read)
		}
		return errs.IO(err, "database %s", r.name)
	}
	r.read++
	return nil
}

// NextDataPoint returns io.EOF after the last record.
func (r *Reader) NextDataPoint() (photon.DataPoint, error) {
	var dp photon.DataPoint
	if r.header.NumberOfSubRegions > 0 {
		return dp, errs.IO(nil, "database %s holds collision records", r.name)
	}
	if err := r.next(); err != nil {
		return dp, err
	}
	f := func(i int) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(r.buf[8*i:])) }
	dp.Position = r3.Vec{X: f(0), Y: f(1), Z: f(2)}
	dp.Direction = r3.Vec{X: f(3), Y: f(4), Z: f(5)}
	dp.Weight = f(6)
	dp.TotalTime = f(7)
	dp.StateFlag = photon.StateFlag(int32(binary.LittleEndian.Uint32(r.buf[64:])))
	return dp, nil
}

// NextCollisionInfo returns io.EOF after the last record.
func (r *Reader) NextCollisionInfo() (photon.CollisionInfo, error) {
	if r.header.NumberOfSubRegions == 0 {
		return nil, errs.IO(nil, "database %s holds photon records", r.name)
	}
	if err := r.next(); err != nil {
		return nil, err
	}
	info := photon.NewCollisionInfo(r.header.NumberOfSubRegions)
	for i := range info {
		info[i].NumberOfCollisions = int64(binary.LittleEndian.Uint64(r.buf[16*i:]))
		info[i].PathLength = math.Float64frombits(binary.LittleEndian.Uint64(r.buf[16*i+8:]))
	}
	return info, nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}
