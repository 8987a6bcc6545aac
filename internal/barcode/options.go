package barcode

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cast"
)

// ErrConfiguration is returned for unknown symbologies and unrecognized or
// invalid option keys.
var ErrConfiguration = errors.New("barcode configuration error")

// ConfigError describes a rejected barcode configuration.
type ConfigError struct {
	Symbology string
	Key       string
	Reason    string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("barcode %s: option %q: %s", e.Symbology, e.Key, e.Reason)
	}
	return fmt.Sprintf("barcode %s: %s", e.Symbology, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Options is the validated configuration for one encoder. Only the block
// matching the symbology is consulted.
type Options struct {
	// Page overrides the page of every located placement when > 0.
	Page int
	// Height and Width request a raster size from the encoder. Zero keeps
	// the symbol's natural size.
	Height int
	Width  int

	PDF417     PDF417Options
	Datamatrix DatamatrixOptions
	QR         QROptions
	Linear     LinearOptions
	Aztec      AztecOptions
}

type PDF417Options struct {
	// ErrorLevel is the security level, 0 to 8.
	ErrorLevel int
	// AspectRatio is the requested height/width ratio of the rendered
	// symbol. Rows are stretched to reach it; the symbol is never squashed.
	AspectRatio float64
}

type DatamatrixOptions struct {
	// Pixels per module in the offscreen template.
	ModuleHeight int
	ModuleWidth  int
}

type QROptions struct {
	RecoveryLevel qrcode.RecoveryLevel
	Border        bool
}

// LinearOptions covers Code128 and Code39.
type LinearOptions struct {
	BarHeight int
	Checksum  bool
	FullASCII bool
}

type AztecOptions struct {
	MinECCPercent int
	Layers        int
}

const (
	defaultPDF417ErrorLevel = 2
	defaultLinearBarHeight  = 40
	defaultAztecECC         = 33

	// MaxModuleSize caps module_width and module_height in pixels.
	MaxModuleSize = 32
	// MaxRasterSide caps height, width and bar_height in pixels.
	MaxRasterSide = 4096
	// MaxRasterPixels caps the area of any rendered symbol.
	MaxRasterPixels = 4 << 20

	maxAspectRatio = 64
	maxAztecLayers = 32
	minAztecLayers = -4
)

func defaultOptions() Options {
	return Options{
		PDF417:     PDF417Options{ErrorLevel: defaultPDF417ErrorLevel},
		Datamatrix: DatamatrixOptions{ModuleHeight: 1, ModuleWidth: 1},
		QR:         QROptions{RecoveryLevel: qrcode.Medium},
		Linear:     LinearOptions{BarHeight: defaultLinearBarHeight},
		Aztec:      AztecOptions{MinECCPercent: defaultAztecECC},
	}
}

type setter func(o *Options, v any) error

var commonSetters = map[string]setter{
	"page": func(o *Options, v any) error {
		return setBoundedInt(&o.Page, v, 0, math.MaxInt32)
	},
	"height": func(o *Options, v any) error {
		return setBoundedInt(&o.Height, v, 0, MaxRasterSide)
	},
	"width": func(o *Options, v any) error {
		return setBoundedInt(&o.Width, v, 0, MaxRasterSide)
	},
}

var symbologySetters = map[Symbology]map[string]setter{
	PDF417: {
		"errorlevel": func(o *Options, v any) error {
			n, err := cast.ToIntE(v)
			if err != nil {
				return err
			}
			if n < 0 || n > 8 {
				return fmt.Errorf("must be between 0 and 8, got %d", n)
			}
			o.PDF417.ErrorLevel = n
			return nil
		},
		"aspectratio": func(o *Options, v any) error {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return err
			}
			if f < 0 || f > maxAspectRatio || math.IsNaN(f) {
				return fmt.Errorf("must be between 0 and %d, got %g", maxAspectRatio, f)
			}
			o.PDF417.AspectRatio = f
			return nil
		},
	},
	Datamatrix: {
		"moduleheight": func(o *Options, v any) error {
			return setBoundedInt(&o.Datamatrix.ModuleHeight, v, 1, MaxModuleSize)
		},
		"modulewidth": func(o *Options, v any) error {
			return setBoundedInt(&o.Datamatrix.ModuleWidth, v, 1, MaxModuleSize)
		},
	},
	QR: {
		"recoverylevel": func(o *Options, v any) error {
			level, err := parseRecoveryLevel(v)
			if err != nil {
				return err
			}
			o.QR.RecoveryLevel = level
			return nil
		},
		"border": func(o *Options, v any) error {
			b, err := cast.ToBoolE(v)
			o.QR.Border = b
			return err
		},
	},
	Code128: {
		"barheight": func(o *Options, v any) error {
			return setBoundedInt(&o.Linear.BarHeight, v, 1, MaxRasterSide)
		},
	},
	Code39: {
		"barheight": func(o *Options, v any) error {
			return setBoundedInt(&o.Linear.BarHeight, v, 1, MaxRasterSide)
		},
		"checksum": func(o *Options, v any) error {
			b, err := cast.ToBoolE(v)
			o.Linear.Checksum = b
			return err
		},
		"fullascii": func(o *Options, v any) error {
			b, err := cast.ToBoolE(v)
			o.Linear.FullASCII = b
			return err
		},
	},
	Aztec: {
		"minecc": func(o *Options, v any) error {
			n, err := cast.ToIntE(v)
			if err != nil {
				return err
			}
			if n < 1 || n > 99 {
				return fmt.Errorf("must be between 1 and 99, got %d", n)
			}
			o.Aztec.MinECCPercent = n
			return nil
		},
		// Negative layers select a compact symbol, 0 picks the smallest fit.
		"layers": func(o *Options, v any) error {
			return setBoundedInt(&o.Aztec.Layers, v, minAztecLayers, maxAztecLayers)
		},
	},
}

// ParseOptions validates an option map for symbology. Keys are matched
// ignoring case, underscores and dashes, so "AspectRatio", "aspect_ratio"
// and "aspect-ratio" are the same key.
func ParseOptions(symbology Symbology, raw map[string]any) (Options, error) {
	opts := defaultOptions()
	specific, ok := symbologySetters[symbology]
	if !ok {
		return Options{}, &ConfigError{Symbology: string(symbology), Reason: "unsupported symbology"}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		norm := normalizeKey(key)
		set, ok := commonSetters[norm]
		if !ok {
			set, ok = specific[norm]
		}
		if !ok {
			return Options{}, &ConfigError{
				Symbology: string(symbology),
				Key:       key,
				Reason:    "unknown option, expected one of " + strings.Join(KnownOptions(symbology), ", "),
			}
		}
		if err := set(&opts, raw[key]); err != nil {
			return Options{}, &ConfigError{Symbology: string(symbology), Key: key, Reason: err.Error()}
		}
	}
	return opts, nil
}

// KnownOptions lists the accepted (normalized) option keys for symbology.
func KnownOptions(symbology Symbology) []string {
	var keys []string
	for k := range commonSetters {
		keys = append(keys, k)
	}
	for k := range symbologySetters[symbology] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(key))
}

func setBoundedInt(dst *int, v any, lo, hi int) error {
	n, err := cast.ToInt64E(v)
	if err != nil {
		return err
	}
	if n < int64(lo) || n > int64(hi) {
		return fmt.Errorf("must be between %d and %d, got %d", lo, hi, n)
	}
	*dst = int(n)
	return nil
}

// checkRaster rejects symbol sizes that would exceed the raster limits.
// It runs before the raster is allocated.
func checkRaster(symbology Symbology, w, h int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if w > MaxRasterSide || h > MaxRasterSide || int64(w)*int64(h) > MaxRasterPixels {
		return &ConfigError{
			Symbology: string(symbology),
			Reason:    fmt.Sprintf("rendered symbol %dx%d exceeds the %d pixel raster limit", w, h, MaxRasterPixels),
		}
	}
	return nil
}

func parseRecoveryLevel(v any) (qrcode.RecoveryLevel, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(s) {
		case "l", "low":
			return qrcode.Low, nil
		case "m", "medium":
			return qrcode.Medium, nil
		case "q", "high":
			return qrcode.High, nil
		case "h", "highest":
			return qrcode.Highest, nil
		}
		return 0, fmt.Errorf("unknown recovery level %q", s)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, err
	}
	if n < int(qrcode.Low) || n > int(qrcode.Highest) {
		return 0, fmt.Errorf("recovery level out of range: %d", n)
	}
	return qrcode.RecoveryLevel(n), nil
}
