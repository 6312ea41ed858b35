package catalogue

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ctessum/cdf"

	"github.com/climdiff/climdiff/internal/grid"
)

// Axis variable names used by CMIP5 files.
const (
	latVar = "lat"
	lonVar = "lon"
)

var (
	zipMagic = []byte("PK\x03\x04")
	cdfMagic = []byte("CDF")
)

// DecodeArchive turns a catalogue download into a Series for req. The
// download is either a zip of NetCDF files (members are read in name order
// and joined along time) or a single NetCDF file.
func DecodeArchive(data []byte, req Request) (*grid.Series, error) {
	start, err := req.StartMonth()
	if err != nil {
		return nil, fmt.Errorf("catalogue: decode: %w", err)
	}
	name := req.Variable.ShortName()
	if name == "" {
		return nil, fmt.Errorf("catalogue: decode: no netcdf name for variable %q", req.Variable)
	}

	var s *grid.Series
	switch {
	case bytes.HasPrefix(data, zipMagic):
		s, err = decodeZip(data, name, start)
	case bytes.HasPrefix(data, cdfMagic):
		s, err = DecodeNetCDF(&memFile{b: data}, name, start)
	default:
		return nil, fmt.Errorf("catalogue: decode %s: unrecognised archive format", req.FileStem())
	}
	if err != nil {
		return nil, fmt.Errorf("catalogue: decode %s: %w", req.FileStem(), err)
	}

	if p, perr := grid.ParsePeriod(req.Period); perr == nil && s.Len() != p.Len() {
		slog.Warn("catalogue: series length differs from requested period",
			"request", req.FileStem(), "months", s.Len(), "period_months", p.Len())
	}
	return s, nil
}

func decodeZip(data []byte, name string, start grid.Month) (*grid.Series, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var members []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".nc") {
			members = append(members, f)
		}
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("zip contains no .nc files")
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	parts := make([]*grid.Series, 0, len(members))
	next := start
	for _, m := range members {
		b, err := readMember(m)
		if err != nil {
			return nil, err
		}
		part, err := DecodeNetCDF(&memFile{b: b}, name, next)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		parts = append(parts, part)
		next = next.AddMonths(part.Len())
	}
	return grid.Concat(parts...)
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return b, nil
}

// DecodeNetCDF reads variable name with dimensions [time, lat, lon] from a
// NetCDF classic file whose first time step is start.
func DecodeNetCDF(r cdf.ReaderWriterAt, name string, start grid.Month) (*grid.Series, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open netcdf: %w", err)
	}
	if !hasVariable(f, name) {
		return nil, fmt.Errorf("variable %q not found", name)
	}
	if dims := f.Header.Dimensions(name); len(dims) != 3 {
		return nil, fmt.Errorf("variable %q has dimensions %v, want [time lat lon]", name, dims)
	}

	lat, err := readFloats(f, latVar)
	if err != nil {
		return nil, err
	}
	lon, err := readFloats(f, lonVar)
	if err != nil {
		return nil, err
	}
	vals, err := readFloats(f, name)
	if err != nil {
		return nil, err
	}

	units, _ := f.Header.GetAttribute(name, "units").(string)
	return grid.NewSeries(name, units, start, lat, lon, vals)
}

func hasVariable(f *cdf.File, name string) bool {
	for _, v := range f.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// readFloats reads a whole numeric variable and widens it to float64.
func readFloats(f *cdf.File, name string) ([]float64, error) {
	if !hasVariable(f, name) {
		return nil, fmt.Errorf("variable %q not found", name)
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}

	var out []float64
	switch v := buf.(type) {
	case []float32:
		out = make([]float64, n)
		for i := range out {
			out[i] = float64(v[i])
		}
	case []float64:
		out = append(out, v[:n]...)
	case []int32:
		out = make([]float64, n)
		for i := range out {
			out[i] = float64(v[i])
		}
	case []int16:
		out = make([]float64, n)
		for i := range out {
			out[i] = float64(v[i])
		}
	default:
		return nil, fmt.Errorf("read %q: unsupported type %T", name, buf)
	}
	return out, nil
}

// EncodeSeries writes s as a NetCDF classic file with a float32 variable
// [time, lat, lon], the layout CMIP5 archives use.
func EncodeSeries(s *grid.Series) ([]byte, error) {
	h := cdf.NewHeader([]string{"time", latVar, lonVar}, []int{s.Len(), len(s.Lat), len(s.Lon)})
	h.AddAttribute("", "period", s.Period().String())
	addAxes(h)
	h.AddVariable(s.Name, []string{"time", latVar, lonVar}, []float32{0})
	h.AddAttribute(s.Name, "units", s.Units)
	h.Define()

	buf := new(memFile)
	f, err := cdf.Create(buf, h)
	if err != nil {
		return nil, fmt.Errorf("catalogue: encode series: %w", err)
	}
	data := make([]float32, len(s.Data.Elements))
	for i, v := range s.Data.Elements {
		data[i] = float32(v)
	}
	for _, w := range []struct {
		name string
		vals interface{}
	}{{latVar, s.Lat}, {lonVar, s.Lon}, {s.Name, data}} {
		if err := writeVar(f, w.name, w.vals); err != nil {
			return nil, fmt.Errorf("catalogue: encode series: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeField writes f as a NetCDF classic file with a float64 variable
// [lat, lon]. Non-finite cells are written as-is.
func EncodeField(fd *grid.Field) ([]byte, error) {
	h := cdf.NewHeader([]string{latVar, lonVar}, []int{len(fd.Lat), len(fd.Lon)})
	addAxes(h)
	h.AddVariable(fd.Name, []string{latVar, lonVar}, []float64{0})
	h.AddAttribute(fd.Name, "units", fd.Units)
	h.Define()

	buf := new(memFile)
	f, err := cdf.Create(buf, h)
	if err != nil {
		return nil, fmt.Errorf("catalogue: encode field: %w", err)
	}
	for _, w := range []struct {
		name string
		vals interface{}
	}{{latVar, fd.Lat}, {lonVar, fd.Lon}, {fd.Name, fd.Data.Elements}} {
		if err := writeVar(f, w.name, w.vals); err != nil {
			return nil, fmt.Errorf("catalogue: encode field: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeField reads a file produced by EncodeField.
func DecodeField(r cdf.ReaderWriterAt, name string) (*grid.Field, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("catalogue: open netcdf: %w", err)
	}
	lat, err := readFloats(f, latVar)
	if err != nil {
		return nil, err
	}
	lon, err := readFloats(f, lonVar)
	if err != nil {
		return nil, err
	}
	vals, err := readFloats(f, name)
	if err != nil {
		return nil, err
	}
	units, _ := f.Header.GetAttribute(name, "units").(string)
	return grid.NewField(name, units, lat, lon, vals)
}

func addAxes(h *cdf.Header) {
	h.AddVariable(latVar, []string{latVar}, []float64{0})
	h.AddAttribute(latVar, "units", "degrees_north")
	h.AddAttribute(latVar, "standard_name", "latitude")
	h.AddVariable(lonVar, []string{lonVar}, []float64{0})
	h.AddAttribute(lonVar, "units", "degrees_east")
	h.AddAttribute(lonVar, "standard_name", "longitude")
}

func writeVar(f *cdf.File, name string, vals interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(vals); err != nil {
		return fmt.Errorf("write %q: %w", name, err)
	}
	return nil
}

// memFile is an in-memory cdf.ReaderWriterAt.
type memFile struct {
	b []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	copy(m.b[off:], p)
	return len(p), nil
}

func (m *memFile) Bytes() []byte {
	return m.b
}
