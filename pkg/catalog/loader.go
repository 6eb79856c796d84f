package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"molten/pkg/domain"
)

var (
	// ErrDecodingFailed indicates empty or malformed loader input.
	ErrDecodingFailed = errors.New("catalog decoding failed")

	// ErrFileNotFound indicates no candidate catalog file exists.
	ErrFileNotFound = errors.New("catalog file not found")
)

// FileNotFoundError carries every location that was probed, so a missing
// bundle is diagnosable from the error alone.
type FileNotFoundError struct {
	Attempted []string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("catalog file not found; tried: %s", strings.Join(e.Attempted, ", "))
}

func (e *FileNotFoundError) Unwrap() error { return ErrFileNotFound }

// ItemRecord is the wire shape of one entry in the generated catalog file.
type ItemRecord struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Manufacturer    string   `json:"manufacturer"`
	Description     string   `json:"manufacturer_description"`
	Synonyms        []string `json:"synonyms"`
	Tags            []string `json:"tags"`
	COE             string   `json:"coe"`
	StockType       string   `json:"stock_type"`
	ManufacturerURL string   `json:"manufacturer_url"`
	ImageURL        string   `json:"image_url"`
	ImagePath       string   `json:"image_path"`
}

type catalogFile struct {
	Version    string            `json:"version"`
	Generated  string            `json:"generated"`
	ItemCount  int               `json:"item_count"`
	GlassItems []json.RawMessage `json:"glassitems"`
}

// SkippedItem reports one record the decoder dropped and why.
type SkippedItem struct {
	Index  int
	Reason string
}

// DecodeResult is the outcome of decoding a catalog payload. A bad record
// never fails the batch; it lands in Skipped instead.
type DecodeResult struct {
	Version   string
	Generated string
	Items     []domain.GlassItem
	Skipped   []SkippedItem
}

// Decode parses the canonical nested catalog shape: an object carrying a
// "glassitems" array. Legacy flat-array and dictionary-keyed payloads are
// rejected as unsupported.
func Decode(data []byte) (DecodeResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return DecodeResult{}, fmt.Errorf("%w: empty input", ErrDecodingFailed)
	}
	if trimmed[0] == '[' {
		return DecodeResult{}, fmt.Errorf("%w: flat-array catalogs are no longer supported", ErrDecodingFailed)
	}

	var file catalogFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return DecodeResult{}, fmt.Errorf("%w: %v", ErrDecodingFailed, err)
	}
	if file.GlassItems == nil {
		return DecodeResult{}, fmt.Errorf("%w: missing \"glassitems\" array", ErrDecodingFailed)
	}

	result := DecodeResult{Version: file.Version, Generated: file.Generated}
	now := time.Now().UTC()
	for i, raw := range file.GlassItems {
		var record ItemRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: i, Reason: err.Error()})
			continue
		}
		item, err := record.ToDomain(now)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: i, Reason: err.Error()})
			continue
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// ToDomain converts a wire record into a domain item, enforcing the required
// fields. COE arrives as a string in the wire format and is parsed leniently;
// an unparseable COE is left at zero rather than dropping the record.
func (r ItemRecord) ToDomain(now time.Time) (domain.GlassItem, error) {
	manufacturer := strings.TrimSpace(r.Manufacturer)
	code := strings.TrimSpace(r.Code)
	name := strings.TrimSpace(r.Name)
	if manufacturer == "" {
		return domain.GlassItem{}, errors.New("manufacturer is required")
	}
	if code == "" {
		return domain.GlassItem{}, errors.New("code is required")
	}
	if name == "" {
		return domain.GlassItem{}, errors.New("name is required")
	}

	coe := 0
	if v := strings.TrimSpace(r.COE); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			coe = parsed
		}
	}
	var stockTypes []string
	if st := strings.TrimSpace(r.StockType); st != "" {
		stockTypes = []string{st}
	}
	return domain.GlassItem{
		NaturalKey:      domain.NaturalKey(manufacturer, code, 0),
		StableID:        StableID(manufacturer, code),
		Name:            name,
		Manufacturer:    manufacturer,
		SKU:             code,
		COE:             coe,
		Status:          domain.StatusAvailable,
		Description:     strings.TrimSpace(r.Description),
		Tags:            cleanList(r.Tags),
		Synonyms:        cleanList(r.Synonyms),
		StockTypes:      stockTypes,
		ManufacturerURL: strings.TrimSpace(r.ManufacturerURL),
		ImageURL:        strings.TrimSpace(r.ImageURL),
		ImagePath:       strings.TrimSpace(r.ImagePath),
		AddedDate:       now,
		LastSeen:        now,
	}, nil
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(strings.Trim(strings.TrimSpace(v), `"'`))
		if v == "" || v == "unknown" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DefaultCandidates is the ordered list of locations probed for the bundled
// catalog when no explicit path is configured.
var DefaultCandidates = []string{
	"glassitems.json",
	"data/glassitems.json",
	"catalog/glassitems.json",
	"assets/glassitems.json",
}

// ResolveFile returns the first candidate path that exists. When none does,
// the returned error lists every location tried.
func ResolveFile(candidates []string) (string, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	attempted := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		attempted = append(attempted, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", &FileNotFoundError{Attempted: attempted}
}

// LoadFile reads and decodes a catalog file.
func LoadFile(path string) (DecodeResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DecodeResult{}, fmt.Errorf("read catalog: %w", err)
	}
	return Decode(data)
}
