// ABOUTME: Codec registry mapping file paths to decoders and encoders
// ABOUTME: Selects an implementation by extension and content probe
package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/encode"
)

// ErrUnsupported is returned when no registered codec handles a path
var ErrUnsupported = errors.New("codec: unsupported format")

// Reader describes a decodable file format
type Reader struct {
	Name  string
	Probe func(path string) bool
	Open  func(path string) (decode.Decoder, error)
}

// Writer describes an encodable file format
type Writer struct {
	Name   string
	Create func(path string, format audio.Format) (encode.Encoder, error)
}

// Registry indexes readers and writers by lower-case file extension
type Registry struct {
	mu      sync.RWMutex
	readers map[string][]Reader
	writers map[string]Writer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string][]Reader),
		writers: make(map[string]Writer),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry with every built-in codec
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()

		opusReader := Reader{Name: "opus", Probe: decode.ProbeOpus, Open: decode.OpenOpus}
		vorbisReader := Reader{Name: "vorbis", Probe: decode.ProbeVorbis, Open: decode.OpenVorbis}
		for _, ext := range []string{".opus", ".ogg", ".oga"} {
			r.RegisterReader(ext, opusReader)
			r.RegisterReader(ext, vorbisReader)
		}
		r.RegisterReader(".mp3", Reader{Name: "mp3", Probe: decode.ProbeMP3, Open: decode.OpenMP3})
		r.RegisterReader(".flac", Reader{Name: "flac", Probe: decode.ProbeFLAC, Open: decode.OpenFLAC})
		r.RegisterReader(".wav", Reader{Name: "wav", Probe: decode.ProbeWAV, Open: decode.OpenWAV})
		aiffReader := Reader{Name: "aiff", Probe: decode.ProbeAIFF, Open: decode.OpenAIFF}
		r.RegisterReader(".aiff", aiffReader)
		r.RegisterReader(".aif", aiffReader)

		opusWriter := Writer{Name: "opus", Create: encode.CreateOpus}
		r.RegisterWriter(".opus", opusWriter)
		r.RegisterWriter(".ogg", opusWriter)
		r.RegisterWriter(".wav", Writer{Name: "wav", Create: encode.CreateWAV})

		defaultRegistry = r
	})
	return defaultRegistry
}

// RegisterReader adds a reader for ext. Readers for the same extension are
// probed in registration order.
func (r *Registry) RegisterReader(ext string, reader Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext = normalizeExt(ext)
	r.readers[ext] = append(r.readers[ext], reader)
}

// RegisterWriter sets the writer for ext
func (r *Registry) RegisterWriter(ext string, writer Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[normalizeExt(ext)] = writer
}

// Probe reports whether some registered reader can decode path
func (r *Registry) Probe(path string) bool {
	_, ok := r.match(path)
	return ok
}

// Open opens path with the first reader whose probe accepts it
func (r *Registry) Open(path string) (decode.Decoder, error) {
	reader, ok := r.match(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	dec, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s as %s: %w", path, reader.Name, err)
	}
	return dec, nil
}

// Create opens path for writing with the writer registered for its extension
func (r *Registry) Create(path string, format audio.Format) (encode.Encoder, error) {
	r.mu.RLock()
	writer, ok := r.writers[extOf(path)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	enc, err := writer.Create(path, format)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s as %s: %w", path, writer.Name, err)
	}
	return enc, nil
}

// ReadExtensions lists the extensions with at least one reader
func (r *Registry) ReadExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		exts = append(exts, ext)
	}
	return exts
}

func (r *Registry) match(path string) (Reader, bool) {
	if path == "" {
		return Reader{}, false
	}

	r.mu.RLock()
	candidates := r.readers[extOf(path)]
	r.mu.RUnlock()

	for _, reader := range candidates {
		if reader.Probe(path) {
			return reader, true
		}
	}
	return Reader{}, false
}

func extOf(path string) string {
	return normalizeExt(filepath.Ext(path))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
