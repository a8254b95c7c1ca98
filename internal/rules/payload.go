package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davidahmann/renoguard/pkg/types"
)

var (
	ErrUnknownTarget    = errors.New("unknown decision target")
	ErrMalformedPayload = errors.New("malformed decision payload")
)

// Payload is the option under evaluation. Each target has exactly one
// concrete payload type; the interface is sealed to this package.
type Payload interface {
	Target() types.Target
	Validate() error
	isPayload()
}

type Material string

const (
	MaterialPETGloss  Material = "PET_GLOSS"
	MaterialQuartz    Material = "QUARTZ"
	MaterialPorcelain Material = "PORCELAIN"
)

// Materials lists the countertop options rules exist for.
func Materials() []Material {
	return []Material{MaterialPETGloss, MaterialQuartz, MaterialPorcelain}
}

func (m Material) Known() bool {
	switch m {
	case MaterialPETGloss, MaterialQuartz, MaterialPorcelain:
		return true
	default:
		return false
	}
}

type CountertopPayload struct {
	Material Material `json:"material"`
}

func (CountertopPayload) Target() types.Target { return types.TargetKitchenCountertop }

func (p CountertopPayload) Validate() error {
	if p.Material == "" {
		return fmt.Errorf("%w: material is required", ErrMalformedPayload)
	}
	if !p.Material.Known() {
		return fmt.Errorf("%w: unrecognized material", ErrMalformedPayload)
	}
	return nil
}

func (CountertopPayload) isPayload() {}

// DecodePayload maps raw JSON onto the payload type for target. Fields outside
// the payload type are dropped here and never reach rules or storage.
func DecodePayload(target types.Target, raw []byte) (Payload, error) {
	switch target {
	case types.TargetKitchenCountertop:
		var p CountertopPayload
		if err := decodeObject(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

func decodeObject(raw []byte, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
