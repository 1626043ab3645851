package agent

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// extension to MIME type for cover uploads
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// ContentTypeFor resolves the MIME type of an object key, preferring the
// declared type when it is an image type.
func ContentTypeFor(key, declared string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(declared), "image/") {
		return strings.ToLower(declared), true
	}
	mime, ok := extToMIME[strings.ToLower(filepath.Ext(key))]
	return mime, ok
}

// Registry keeps the configured strands by name.
type Registry struct {
	strands map[string]Strand
	order   []string
	logger  logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		strands: make(map[string]Strand),
		logger:  log,
	}
}

// Register adds s. Names must be unique.
func (r *Registry) Register(s Strand) error {
	if _, ok := r.strands[s.Name()]; ok {
		return fmt.Errorf("strand %s already registered", s.Name())
	}
	r.strands[s.Name()] = s
	r.order = append(r.order, s.Name())
	r.logger.Info("Registered strand",
		logger.String("strand", s.Name()),
		logger.String("kind", string(s.Kind())),
	)
	return nil
}

func (r *Registry) Get(name string) (Strand, error) {
	s, ok := r.strands[name]
	if !ok {
		r.logger.Error("No strand found", logger.String("strand", name))
		return nil, fmt.Errorf("no strand registered under %s", name)
	}
	return s, nil
}

// ByKind returns strands of kind k in registration order.
func (r *Registry) ByKind(k models.StrandKind) []Strand {
	var out []Strand
	for _, name := range r.order {
		if s := r.strands[name]; s.Kind() == k {
			out = append(out, s)
		}
	}
	return out
}

// Cheapest returns the priced strand of kind k with the lowest base rate.
// Ties keep registration order.
func (r *Registry) Cheapest(k models.StrandKind) (Strand, bool) {
	candidates := r.ByKind(k)
	priced := make([]Strand, 0, len(candidates))
	for _, s := range candidates {
		if _, ok := s.(Priced); ok {
			priced = append(priced, s)
		}
	}
	if len(priced) == 0 {
		return nil, false
	}
	sort.SliceStable(priced, func(i, j int) bool {
		return priced[i].(Priced).BaseRate() < priced[j].(Priced).BaseRate()
	})
	return priced[0], true
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
