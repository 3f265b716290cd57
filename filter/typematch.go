package filter

import "github.com/maxpert/recordstream/model"

// MatchType compares a queried type against a stored one. A nil query
// always matches.
func MatchType(query *model.TypeRepresentation, stored model.TypeRepresentationWithAndWithoutVersion, strategy model.VersionMatchStrategy) (bool, error) {
	if query == nil {
		return true, nil
	}
	switch strategy {
	case model.VersionMatchAny:
		return query.RemoveVersion() == stored.WithoutVersion, nil
	case model.VersionMatchSpecific:
		return *query == stored.WithVersion, nil
	default:
		return false, &model.NotSupportedError{What: "version match strategy", Value: strategy}
	}
}

// MatchTypes applies MatchType to the identifier type and the object type;
// both must pass.
func MatchTypes(idType, objectType *model.TypeRepresentation, meta *model.RecordMetadata, strategy model.VersionMatchStrategy) (bool, error) {
	ok, err := MatchType(idType, meta.TypeOfID, strategy)
	if err != nil || !ok {
		return false, err
	}
	return MatchType(objectType, meta.TypeOfObject, strategy)
}
