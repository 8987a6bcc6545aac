// Package job describes a stamping pass declaratively so the HTTP API and
// the CLI share one format.
//
// A job stages the font before any operation and then applies its
// operations in order:
//
//	{
//	  "font": "Helvetica",
//	  "metadata": {"Title": "Intake"},
//	  "operations": [
//	    {"type": "text", "field": "first_name", "value": "Jason"},
//	    {"type": "checkbox", "field": "hungry"},
//	    {"type": "image", "field": "photo", "asset": "photo.jpg", "centered": true},
//	    {"type": "barcode", "symbology": "PDF417", "field": "code", "value": "...", "options": {"aspect_ratio": 0.5}},
//	    {"type": "rectangle", "x": 10, "y": 10, "width": 100, "height": 20}
//	  ]
//	}
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cast"

	"go-pdfstamper/internal/barcode"
	"go-pdfstamper/internal/layout"
	"go-pdfstamper/internal/stamper"
)

var (
	// ErrInvalid is returned for malformed jobs.
	ErrInvalid = errors.New("invalid job")
	// ErrAssetNotFound is returned by Assets for names they cannot resolve.
	ErrAssetNotFound = errors.New("asset not found")
)

// Operation types.
const (
	OpText       = "text"
	OpCheckbox   = "checkbox"
	OpImage      = "image"
	OpBarcode    = "barcode"
	OpDatamatrix = "datamatrix"
	OpCircle     = "circle"
	OpEllipse    = "ellipse"
	OpRectangle  = "rectangle"
)

// Job is one stamping pass.
type Job struct {
	Font             string            `json:"font,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	ResetXMPMetadata bool              `json:"reset_xmp_metadata,omitempty"`
	Operations       []Operation       `json:"operations"`
}

// Operation is a single binding or drawing step. Which fields apply
// depends on Type.
type Operation struct {
	Type string `json:"type"`

	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`

	// image
	Asset    string `json:"asset,omitempty"`
	Centered bool   `json:"centered,omitempty"`
	Page     int    `json:"page,omitempty"`

	// barcode
	Symbology string         `json:"symbology,omitempty"`
	Options   map[string]any `json:"options,omitempty"`

	// shapes
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	R      float64 `json:"r,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Decode reads a JSON job.
func Decode(r io.Reader) (*Job, error) {
	var j Job
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Load reads a JSON job file.
func Load(path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Validate checks that every operation carries what its type needs.
// Field existence is checked when the job is applied.
func (j *Job) Validate() error {
	for i, op := range j.Operations {
		if err := op.validate(); err != nil {
			return fmt.Errorf("%w: operation %d (%s): %w", ErrInvalid, i, op.Type, err)
		}
	}
	return nil
}

func (op Operation) validate() error {
	switch op.Type {
	case OpText, OpCheckbox:
		if op.Field == "" {
			return errors.New("field is required")
		}
	case OpImage:
		if op.Field == "" || op.Asset == "" {
			return errors.New("field and asset are required")
		}
		if op.Page < 0 {
			return errors.New("page must not be negative")
		}
	case OpBarcode:
		if op.Symbology == "" {
			return errors.New("symbology is required")
		}
		if _, err := barcode.ParseSymbology(op.Symbology); err != nil {
			return err
		}
		fallthrough
	case OpDatamatrix:
		if op.Field == "" {
			return errors.New("field is required")
		}
	case OpCircle:
		if op.R <= 0 {
			return errors.New("r must be positive")
		}
	case OpEllipse, OpRectangle:
		if op.Width < 0 || op.Height < 0 {
			return errors.New("width and height must not be negative")
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// Assets opens image assets referenced by name.
type Assets interface {
	Open(name string) (io.ReadCloser, error)
}

// Dir resolves assets inside a directory. Names may not leave it.
type Dir string

// Open implements Assets.
func (d Dir) Open(name string) (io.ReadCloser, error) {
	clean := filepath.Clean("/" + name)
	if clean == "/" {
		return nil, fmt.Errorf("invalid asset name %q", name)
	}
	f, err := os.Open(filepath.Join(string(d), clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrAssetNotFound, name)
	}
	return f, err
}

// Apply runs the job against s. The first failing operation stops the job.
func Apply(s *stamper.Session, j *Job, assets Assets) error {
	if j.Font != "" {
		if err := s.SetFont(j.Font); err != nil {
			return err
		}
	}
	for i, op := range j.Operations {
		if err := applyOperation(s, op, assets); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op.Type, err)
		}
	}
	for k, v := range j.Metadata {
		if err := s.SetMetadata(k, v); err != nil {
			return err
		}
	}
	if j.ResetXMPMetadata {
		return s.ResetXMPMetadata()
	}
	return nil
}

func applyOperation(s *stamper.Session, op Operation, assets Assets) error {
	switch op.Type {
	case OpText:
		return s.Text(op.Field, op.Value)
	case OpCheckbox:
		return s.Checkbox(op.Field)
	case OpImage:
		if assets == nil {
			return errors.New("no asset source")
		}
		r, err := assets.Open(op.Asset)
		if err != nil {
			return fmt.Errorf("failed to open asset: %w", err)
		}
		defer r.Close()
		opts := stamper.PlaceOptions{Page: op.Page}
		if op.Centered {
			opts.Anchor = layout.AnchorCenter
		}
		return s.ImageReader(op.Field, r, opts)
	case OpBarcode:
		return s.Barcode(op.Symbology, op.Field, cast.ToString(op.Value), op.Options)
	case OpDatamatrix:
		return s.Datamatrix(op.Field, cast.ToString(op.Value), op.Options)
	case OpCircle:
		return s.Circle(op.X, op.Y, op.R)
	case OpEllipse:
		return s.Ellipse(op.X, op.Y, op.Width, op.Height)
	case OpRectangle:
		return s.Rectangle(op.X, op.Y, op.Width, op.Height)
	}
	return fmt.Errorf("%w: unknown operation type %q", ErrInvalid, op.Type)
}
