package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func (d *Document) infoDict(create bool) (types.Dict, error) {
	if d.ctx.Info != nil {
		info, err := d.ctx.DereferenceDict(*d.ctx.Info)
		if err != nil {
			return nil, fmt.Errorf("failed to read info dict: %w", err)
		}
		if info != nil {
			return info, nil
		}
	}
	if !create {
		return nil, nil
	}
	info := types.Dict{}
	ref, err := d.ctx.IndRefForNewObject(info)
	if err != nil {
		return nil, err
	}
	d.ctx.Info = ref
	return info, nil
}

// SetMetadata writes entries into the document information dictionary.
// An empty value removes the entry. Producer, CreationDate and ModDate are
// rewritten by pdfcpu on every Write, so values set for them do not reach
// the output.
func (d *Document) SetMetadata(entries map[string]string) error {
	info, err := d.infoDict(true)
	if err != nil {
		return err
	}
	for k, v := range entries {
		if v == "" {
			delete(info, k)
			continue
		}
		info[k] = encodeTextString(v)
	}
	return nil
}

// Metadata returns the text entries of the document information dictionary.
func (d *Document) Metadata() (map[string]string, error) {
	info, err := d.infoDict(false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(info))
	for k := range info {
		if s, ok := d.text(info, k); ok {
			out[k] = s
		}
	}
	return out, nil
}

// ResetXMPMetadata drops the catalog's XMP metadata stream so readers fall
// back to the information dictionary.
func (d *Document) ResetXMPMetadata() error {
	cat, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	delete(cat, "Metadata")
	return nil
}
