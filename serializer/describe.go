package serializer

import (
	"reflect"
	"runtime/debug"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/recordstream/model"
)

// DefaultDescribeCacheSize bounds the number of cached type descriptions.
const DefaultDescribeCacheSize = 1024

// Describer maps Go types to TypeRepresentations. Named types use their
// package path as namespace and the owning module as assembly, versioned
// by the module version recorded in the build info.
type Describer struct {
	cache *lru.Cache[reflect.Type, model.TypeRepresentation]
}

// NewDescriber creates a describer caching up to size types.
func NewDescriber(size int) *Describer {
	if size < 1 {
		size = DefaultDescribeCacheSize
	}
	cache, err := lru.New[reflect.Type, model.TypeRepresentation](size)
	if err != nil {
		panic("failed to create describe cache: " + err.Error())
	}
	return &Describer{cache: cache}
}

// Describe returns the representation of obj's type. Pointers are
// described by their element type.
func (d *Describer) Describe(obj any) model.TypeRepresentation {
	t := reflect.TypeOf(obj)
	if t == nil {
		return model.TypeRepresentation{}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return d.DescribeType(t)
}

// DescribeType returns the representation of t.
func (d *Describer) DescribeType(t reflect.Type) model.TypeRepresentation {
	if tr, ok := d.cache.Get(t); ok {
		return tr
	}
	tr := describe(t)
	d.cache.Add(t, tr)
	return tr
}

// Len returns the number of cached descriptions.
func (d *Describer) Len() int {
	return d.cache.Len()
}

func describe(t reflect.Type) model.TypeRepresentation {
	if t.Name() == "" || t.PkgPath() == "" {
		// builtin or unnamed composite type
		return model.TypeRepresentation{Name: t.String(), AssemblyName: "builtin"}
	}
	mod, version := moduleOf(t.PkgPath())
	return model.TypeRepresentation{
		Namespace:       t.PkgPath(),
		Name:            t.Name(),
		AssemblyName:    mod,
		AssemblyVersion: version,
	}
}

type module struct {
	path    string
	version string
}

var (
	buildModulesOnce sync.Once
	buildModules     []module
)

func loadBuildModules() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	buildModules = append(buildModules, module{path: info.Main.Path, version: info.Main.Version})
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		buildModules = append(buildModules, module{path: dep.Path, version: dep.Version})
	}
}

// moduleOf finds the module owning pkgPath. Unknown packages are their own
// assembly with no version.
func moduleOf(pkgPath string) (string, string) {
	buildModulesOnce.Do(loadBuildModules)

	best := module{path: pkgPath}
	matched := false
	for _, m := range buildModules {
		if m.path == "" {
			continue
		}
		if pkgPath != m.path && !strings.HasPrefix(pkgPath, m.path+"/") {
			continue
		}
		if !matched || len(m.path) > len(best.path) {
			best = m
			matched = true
		}
	}
	if best.version == "(devel)" {
		best.version = ""
	}
	return best.path, best.version
}
