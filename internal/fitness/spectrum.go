package fitness

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"
)

// Spectrum is a sampled flux curve. Uncertainty is optional and, when set,
// has the same length as Flux.
type Spectrum struct {
	Wavelength  []float64
	Flux        []float64
	Uncertainty []float64
}

// Len returns the number of samples.
func (s Spectrum) Len() int {
	return len(s.Wavelength)
}

// Validate checks shape and ordering.
func (s Spectrum) Validate() error {
	if len(s.Wavelength) == 0 {
		return errors.New("spectrum has no samples")
	}
	if len(s.Flux) != len(s.Wavelength) {
		return fmt.Errorf("spectrum has %d wavelengths but %d flux values", len(s.Wavelength), len(s.Flux))
	}
	if s.Uncertainty != nil && len(s.Uncertainty) != len(s.Wavelength) {
		return fmt.Errorf("spectrum has %d wavelengths but %d uncertainties", len(s.Wavelength), len(s.Uncertainty))
	}
	return nil
}

// Ascending returns s with wavelengths sorted in increasing order.
func (s Spectrum) Ascending() Spectrum {
	if sort.Float64sAreSorted(s.Wavelength) {
		return s
	}
	idx := make([]int, len(s.Wavelength))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Wavelength[idx[a]] < s.Wavelength[idx[b]] })
	out := Spectrum{
		Wavelength: make([]float64, len(idx)),
		Flux:       make([]float64, len(idx)),
	}
	if s.Uncertainty != nil {
		out.Uncertainty = make([]float64, len(idx))
	}
	for j, i := range idx {
		out.Wavelength[j] = s.Wavelength[i]
		out.Flux[j] = s.Flux[i]
		if s.Uncertainty != nil {
			out.Uncertainty[j] = s.Uncertainty[i]
		}
	}
	return out
}

// Interpolate linearly resamples values defined on xp onto x. Points left
// or right of xp take the first or last value. xp must be ascending; a
// repeated wavelength keeps its first sample.
func Interpolate(x, xp, fp []float64) ([]float64, error) {
	if len(xp) != len(fp) {
		return nil, fmt.Errorf("interpolate: %d wavelengths but %d values", len(xp), len(fp))
	}
	xs, ys := strictlyIncreasing(xp, fp)
	out := make([]float64, len(x))
	switch len(xs) {
	case 0:
		return out, nil
	case 1:
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("interpolate: %w", err)
	}
	for i, v := range x {
		out[i] = pl.Predict(v)
	}
	return out, nil
}

func strictlyIncreasing(xp, fp []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(xp))
	ys := make([]float64, 0, len(fp))
	for i, v := range xp {
		if n := len(xs); n > 0 && v <= xs[n-1] {
			continue
		}
		xs = append(xs, v)
		ys = append(ys, fp[i])
	}
	return xs, ys
}

// ResampleOnto returns the flux (and uncertainty, when present) of s
// interpolated onto grid.
func (s Spectrum) ResampleOnto(grid []float64) (Spectrum, error) {
	asc := s.Ascending()
	flux, err := Interpolate(grid, asc.Wavelength, asc.Flux)
	if err != nil {
		return Spectrum{}, err
	}
	out := Spectrum{
		Wavelength: append([]float64(nil), grid...),
		Flux:       flux,
	}
	if asc.Uncertainty != nil {
		if out.Uncertainty, err = Interpolate(grid, asc.Wavelength, asc.Uncertainty); err != nil {
			return Spectrum{}, err
		}
	}
	return out, nil
}

// ReadSpectrum parses whitespace or comma separated columns
// "wavelength flux [uncertainty]". Lines starting with # are skipped.
func ReadSpectrum(r io.Reader) (Spectrum, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var s Spectrum
	withUncertainty := false
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Spectrum{}, fmt.Errorf("read spectrum line %d: %w", line, err)
		}
		fields := splitFields(record)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 || len(fields) > 3 {
			return Spectrum{}, fmt.Errorf("read spectrum line %d: expected 2 or 3 columns, got %d", line, len(fields))
		}
		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Spectrum{}, fmt.Errorf("read spectrum line %d: %w", line, err)
			}
			values[i] = v
		}
		if s.Len() == 0 {
			withUncertainty = len(values) == 3
		} else if withUncertainty != (len(values) == 3) {
			return Spectrum{}, fmt.Errorf("read spectrum line %d: inconsistent column count", line)
		}
		s.Wavelength = append(s.Wavelength, values[0])
		s.Flux = append(s.Flux, values[1])
		if withUncertainty {
			s.Uncertainty = append(s.Uncertainty, values[2])
		}
	}
	if err := s.Validate(); err != nil {
		return Spectrum{}, err
	}
	return s, nil
}

// LoadSpectrum reads a spectrum file.
func LoadSpectrum(path string) (Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spectrum{}, fmt.Errorf("failed to open spectrum: %w", err)
	}
	defer f.Close()
	s, err := ReadSpectrum(f)
	if err != nil {
		return Spectrum{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// splitFields accepts both comma separated records and a single field
// holding whitespace separated values.
func splitFields(record []string) []string {
	var out []string
	for _, field := range record {
		out = append(out, strings.Fields(field)...)
	}
	return out
}
