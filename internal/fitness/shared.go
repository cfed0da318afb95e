package fitness

import (
	"encoding/base64"
	"fmt"
	"os"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// Shared is the read-only resource pushed once to every worker: the fitness
// selection, the observed spectrum and an optional opaque dataset such as
// atomic data.
type Shared struct {
	Fitness  config.FitnessSpec
	Observed Spectrum
	Dataset  []byte
}

// LoadShared reads the files referenced by a fitter document.
func LoadShared(doc *config.Document) (Shared, error) {
	shared := Shared{Fitness: doc.Fitness}
	if doc.Fitness.Observed != "" {
		observed, err := LoadSpectrum(doc.Fitness.Observed)
		if err != nil {
			return Shared{}, err
		}
		shared.Observed = observed
	}
	if doc.Workers.SharedData != "" {
		data, err := os.ReadFile(doc.Workers.SharedData)
		if err != nil {
			return Shared{}, fmt.Errorf("failed to read shared data: %w", err)
		}
		shared.Dataset = data
	}
	return shared, nil
}

// Struct encodes the resource for the broadcast call.
func (s Shared) Struct() (*structpb.Struct, error) {
	m := map[string]any{
		"fitness": map[string]any{
			"name":                 s.Fitness.Name,
			"simulator":            s.Fitness.Simulator,
			"observed_uncertainty": s.Fitness.ObservedUncertainty,
		},
		"observed": map[string]any{
			"wavelength": floatList(s.Observed.Wavelength),
			"flux":       floatList(s.Observed.Flux),
		},
		"dataset": base64.StdEncoding.EncodeToString(s.Dataset),
	}
	if s.Observed.Uncertainty != nil {
		m["observed"].(map[string]any)["uncertainty"] = floatList(s.Observed.Uncertainty)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shared resource: %w", err)
	}
	return st, nil
}

// SharedFromStruct decodes a broadcast payload.
func SharedFromStruct(st *structpb.Struct) (Shared, error) {
	var s Shared
	if st == nil {
		return s, fmt.Errorf("empty shared resource")
	}
	f := st.GetFields()["fitness"].GetStructValue().GetFields()
	s.Fitness = config.FitnessSpec{
		Name:                f["name"].GetStringValue(),
		Simulator:           f["simulator"].GetStringValue(),
		ObservedUncertainty: f["observed_uncertainty"].GetNumberValue(),
	}
	obs := st.GetFields()["observed"].GetStructValue().GetFields()
	s.Observed.Wavelength = numberList(obs["wavelength"])
	s.Observed.Flux = numberList(obs["flux"])
	if u, ok := obs["uncertainty"]; ok {
		s.Observed.Uncertainty = numberList(u)
	}
	if enc := st.GetFields()["dataset"].GetStringValue(); enc != "" {
		data, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return Shared{}, fmt.Errorf("failed to decode shared dataset: %w", err)
		}
		s.Dataset = data
	}
	return s, nil
}

func floatList(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func numberList(v *structpb.Value) []float64 {
	list := v.GetListValue().GetValues()
	if list == nil {
		return nil
	}
	out := make([]float64, len(list))
	for i, item := range list {
		out[i] = item.GetNumberValue()
	}
	return out
}
