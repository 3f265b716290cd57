package filter

import (
	"errors"
	"testing"

	"github.com/maxpert/recordstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchType(t *testing.T) {
	v1 := model.TypeRepresentation{Namespace: "Acme", Name: "Order", AssemblyName: "Acme", AssemblyVersion: "1.0"}
	v2 := v1
	v2.AssemblyVersion = "2.0"
	other := model.TypeRepresentation{Namespace: "Acme", Name: "Invoice", AssemblyName: "Acme", AssemblyVersion: "1.0"}
	stored := model.NewTypeRepresentationWithAndWithoutVersion(v1)

	tests := []struct {
		name     string
		query    *model.TypeRepresentation
		strategy model.VersionMatchStrategy
		want     bool
	}{
		{"nil query", nil, model.VersionMatchSpecific, true},
		{"any same version", &v1, model.VersionMatchAny, true},
		{"any other version", &v2, model.VersionMatchAny, true},
		{"any other type", &other, model.VersionMatchAny, false},
		{"specific same version", &v1, model.VersionMatchSpecific, true},
		{"specific other version", &v2, model.VersionMatchSpecific, false},
	}
	for _, tt := range tests {
		got, err := MatchType(tt.query, stored, tt.strategy)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}

	_, err := MatchType(&v1, stored, model.VersionMatchStrategy(9))
	assert.True(t, errors.Is(err, model.ErrNotSupported))
}

func TestMatchTypes_BothMustPass(t *testing.T) {
	idType := model.TypeRepresentation{Name: "string"}
	objType := model.TypeRepresentation{Namespace: "Acme", Name: "Order"}
	meta := &model.RecordMetadata{
		TypeOfID:     model.NewTypeRepresentationWithAndWithoutVersion(idType),
		TypeOfObject: model.NewTypeRepresentationWithAndWithoutVersion(objType),
	}

	ok, err := MatchTypes(&idType, &objType, meta, model.VersionMatchAny)
	require.NoError(t, err)
	assert.True(t, ok)

	wrong := model.TypeRepresentation{Name: "int"}
	ok, err = MatchTypes(&wrong, &objType, meta, model.VersionMatchAny)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = MatchTypes(&idType, &wrong, meta, model.VersionMatchAny)
	require.NoError(t, err)
	assert.False(t, ok)
}
