package camera

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/omnivis/omnicam/distortion"
)

// DistortionParameters is the JSON form of a distortion model.
type DistortionParameters struct {
	Model      distortion.Type `json:"model"`
	Parameters []float64       `json:"parameters"`
}

// ModelParameters is the JSON form of a camera model. The params vector uses
// the model's fixed intrinsics ordering ([xi fu fv cu cv] for the unified
// model, [fu fv cu cv] for pinhole).
type ModelParameters struct {
	Model      ModelType             `json:"model"`
	Width      int                   `json:"width_px"`
	Height     int                   `json:"height_px"`
	Parameters []float64             `json:"params"`
	Distortion *DistortionParameters `json:"distortion,omitempty"`
}

// Build constructs the camera model the parameters describe.
func (mp *ModelParameters) Build() (Model, error) {
	var dist distortion.Model
	if mp.Distortion != nil {
		var err error
		dist, err = distortion.New(mp.Distortion.Model, mp.Distortion.Parameters)
		if err != nil {
			return nil, err
		}
	}
	return New(mp.Model, mp.Parameters, mp.Width, mp.Height, dist)
}

// ParametersFromModel captures a camera model in its JSON form.
func ParametersFromModel(m Model) *ModelParameters {
	mp := &ModelParameters{
		Model:      m.Type(),
		Width:      m.ImageWidth(),
		Height:     m.ImageHeight(),
		Parameters: m.Parameters(),
	}
	if dist := m.Distortion(); dist != nil {
		mp.Distortion = &DistortionParameters{
			Model:      dist.Type(),
			Parameters: dist.Parameters(),
		}
	}
	return mp
}

// NewModelFromJSONFile reads a ModelParameters JSON file and builds the
// camera model it describes.
func NewModelFromJSONFile(jsonPath string) (Model, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	data, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	var mp ModelParameters
	if err := json.Unmarshal(data, &mp); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return mp.Build()
}

// WriteModelToJSONFile saves a camera model's parameters as JSON.
func WriteModelToJSONFile(m Model, jsonPath string) error {
	data, err := json.MarshalIndent(ParametersFromModel(m), "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding camera parameters")
	}
	//nolint:gosec
	return os.WriteFile(jsonPath, data, 0o644)
}
