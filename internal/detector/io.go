package detector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/stat"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

// Metadata is the text companion of the binary detector arrays.
type Metadata struct {
	Name              string    `toml:"Name"`
	TallyType         TallyType `toml:"TallyType"`
	Axes              []Axis    `toml:"Axes"`
	Dims              []int     `toml:"Dims"`
	Complex           bool      `toml:"Complex"`
	TallySecondMoment bool      `toml:"TallySecondMoment"`
	TallyCount        int64     `toml:"TallyCount"`
}

const IndexFile = "detectors.csv"

func metadataOf(d Detector) Metadata {
	h := d.Tally()
	return Metadata{
		Name:              d.Name(),
		TallyType:         d.TallyType(),
		Axes:              h.Axes,
		Dims:              h.Dims,
		Complex:           h.Complex,
		TallySecondMoment: h.TallySecondMoment,
		TallyCount:        h.Count,
	}
}

// Write stores d in dir as name.txt (metadata), name (mean),
// name_2 (second moment) and name.csv.
func Write(dir string, d Detector) error {
	h := d.Tally()
	f, err := utils.OpenFile(dir, d.Name()+".txt")
	if err != nil {
		return errs.IO(err, "detector %s", d.Name())
	}
	if err := toml.NewEncoder(f).Encode(metadataOf(d)); err != nil {
		f.Close()
		return errs.IO(err, "detector %s metadata", d.Name())
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "detector %s metadata", d.Name())
	}

	var mean, second any = h.Mean, h.SecondMoment
	if h.Complex {
		mean, second = h.ComplexMean, h.ComplexSecondMoment
	}
	if err := writeArray(dir, d.Name(), mean); err != nil {
		return err
	}
	if h.TallySecondMoment {
		if err := writeArray(dir, d.Name()+"_2", second); err != nil {
			return err
		}
	}
	return writeCSV(dir, d)
}

func writeArray(dir, name string, data any) error {
	f, err := utils.OpenFile(dir, name)
	if err != nil {
		return errs.IO(err, "detector array %s", name)
	}
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		f.Close()
		return errs.IO(err, "detector array %s", name)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errs.IO(err, "detector array %s", name)
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "detector array %s", name)
	}
	return nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(dir string, d Detector) error {
	h := d.Tally()
	var columns []string
	for _, a := range h.Axes {
		columns = append(columns, a.Name)
	}
	if h.Complex {
		columns = append(columns, "MeanReal", "MeanImag")
	} else {
		columns = append(columns, "Mean")
	}
	if h.TallySecondMoment {
		columns = append(columns, "StandardError", "HalfWidth95")
	}

	rows := make(utils.CSV, 0, h.Size())
	for i := range h.Size() {
		var row []string
		for k, j := range h.Unflatten(i) {
			row = append(row, format(h.Axes[k].Value(j)))
		}
		if h.Complex {
			row = append(row, format(real(h.ComplexMean[i])), format(imag(h.ComplexMean[i])))
		} else {
			row = append(row, format(h.Mean[i]))
		}
		if h.TallySecondMoment {
			se := h.StandardError(i)
			row = append(row, format(se), format(constants.Quantile95*se))
		}
		rows = append(rows, row)
	}
	if err := utils.WriteAsCSV(rows, dir, d.Name()+".csv", columns, false); err != nil {
		return errs.IO(err, "detector %s csv", d.Name())
	}
	return nil
}

// meanRelativeError averages stderr/|mean| over the bins holding data.
func meanRelativeError(h *Histogram) float64 {
	if !h.TallySecondMoment {
		return 0
	}
	var rel []float64
	for i := range h.Size() {
		var m float64
		if h.Complex {
			m = cmplx.Abs(h.ComplexMean[i])
		} else {
			m = math.Abs(h.Mean[i])
		}
		if m != 0 {
			rel = append(rel, h.StandardError(i)/m)
		}
	}
	if len(rel) == 0 {
		return 0
	}
	return stat.Mean(rel, nil)
}

// WriteIndex lists the detectors of a run in dir/detectors.csv,
// in natural order of their names.
func WriteIndex(dir string, detectors []Detector) error {
	rows := make(utils.CSV, 0, len(detectors))
	for _, d := range detectors {
		h := d.Tally()
		rows = append(rows, []string{
			d.Name(),
			string(d.TallyType()),
			fmt.Sprint(h.Dims),
			strconv.FormatInt(h.Count, 10),
			format(h.Total()),
			format(meanRelativeError(h)),
		})
	}
	columns := []string{"Name", "TallyType", "Dims", "TallyCount", "Total", "MeanRelativeError"}
	if err := utils.WriteAsCSV(rows, dir, IndexFile, columns, true); err != nil {
		return errs.IO(err, "detector index")
	}
	return nil
}

// Read loads the detector name written by Write in dir.
func Read(dir, name string) (Metadata, *Histogram, error) {
	var md Metadata
	if _, err := toml.DecodeFile(filepath.Join(dir, name+".txt"), &md); err != nil {
		return md, nil, errs.IO(err, "detector %s metadata", name)
	}
	h := newHistogram(md.Complex, md.TallySecondMoment, md.Axes...)
	h.Count = md.TallyCount
	h.Normalized = true
	if err := readArray(dir, name, h.Mean, h.ComplexMean); err != nil {
		return md, nil, err
	}
	if md.TallySecondMoment {
		if err := readArray(dir, name+"_2", h.SecondMoment, h.ComplexSecondMoment); err != nil {
			return md, nil, err
		}
	}
	return md, &h, nil
}

func readArray(dir, name string, values []float64, cplx []complex128) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return errs.IO(err, "detector array %s", name)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if cplx != nil {
		err = binary.Read(r, binary.LittleEndian, cplx)
	} else {
		err = binary.Read(r, binary.LittleEndian, values)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.IO(err, "detector array %s is shorter than its metadata", name)
	}
	if err != nil {
		return errs.IO(err, "detector array %s", name)
	}
	return nil
}
